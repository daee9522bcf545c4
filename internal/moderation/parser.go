package moderation

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

// rejectionKeywords signal a violation when the classifier answers in prose
// instead of the JSON it was asked for.
var rejectionKeywords = []string{
	"bad", "profanity", "insult", "hate", "offensive",
	"inappropriate", "violation", "warning", "true",
}

// ParseVerdict converts the classifier's raw reply into a Verdict. The reply
// is untrusted free text, not a typed API: this function is total and never
// fails, degrading to a clean verdict on uncertainty so infrastructure
// glitches never block legitimate users.
//
// The verdict's Source field is left empty; the pipeline tags provenance.
func ParseVerdict(raw string) Verdict {
	// Look for the first JSON-shaped substring: leftmost "{" to the last "}".
	// Classifiers often wrap the JSON in prose despite instructions.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")

	if start >= 0 && end > start {
		return decodeVerdict(raw[start : end+1])
	}

	// No JSON at all: sniff the prose for rejection-signaling words.
	lower := strings.ToLower(raw)
	for _, keyword := range rejectionKeywords {
		if strings.Contains(lower, keyword) {
			return Verdict{
				Bad:      true,
				Reason:   "AI flagged: " + truncate(raw, 80),
				Severity: SeverityMedium,
				Category: CategoryAIDetected,
			}
		}
	}

	return Verdict{
		Bad:      false,
		Reason:   "Message appears clean",
		Severity: SeverityLow,
		Category: CategoryNone,
	}
}

// decodeVerdict unmarshals a JSON-shaped substring and fills in any missing
// fields with defaults so consumers always see a fully-populated verdict.
// Fields present with the wrong type fall back to the same defaults.
func decodeVerdict(jsonStr string) Verdict {
	var fields map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		logrus.Warnf("[parser] undecodable classifier JSON: %v", err)
		return Verdict{
			Bad:      false,
			Reason:   "Failed to parse AI response",
			Severity: SeverityLow,
			Category: CategoryParseError,
		}
	}

	v := Verdict{
		Bad:      false,
		Reason:   "AI response missing reason field",
		Severity: SeverityMedium,
		Category: CategoryUnknown,
	}
	if bad, ok := fields["bad"].(bool); ok {
		v.Bad = bad
	}
	if reason, ok := fields["reason"].(string); ok {
		v.Reason = reason
	}
	if severity, ok := fields["severity"].(string); ok {
		v.Severity = severity
	}
	if category, ok := fields["category"].(string); ok {
		v.Category = category
	}
	return v
}

// truncate returns at most n runes of s, appending "..." when cut short.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
