package moderation

// CheckRequest is published to moderation.check when a message needs
// async content review.
type CheckRequest struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
}

// CheckResult is published back to the requester with the review outcome
// and the user's warning count after any recorded violation.
type CheckResult struct {
	Username string `json:"username"`
	Bad      bool   `json:"bad"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Warnings int    `json:"warnings"`
}

// AppealRequest is published to moderation.appeal to spend a user's
// one-time appeal.
type AppealRequest struct {
	Username string `json:"username"`
}

// AppealResult is published back with the appeal outcome and the user's
// remaining warning count.
type AppealResult struct {
	Username string `json:"username"`
	Granted  bool   `json:"granted"`
	Warnings int    `json:"warnings"`
}
