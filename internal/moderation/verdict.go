package moderation

// Severity levels for a violation, from least to most serious.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Categories describing the kind of violation detected.
const (
	CategoryNone            = "none"
	CategoryProfanity       = "profanity"
	CategoryInsult          = "insult"
	CategoryHate            = "hate"
	CategoryThreat          = "threat"
	CategorySexual          = "sexual"
	CategoryHarassment      = "harassment"
	CategoryExplicitContent = "explicit_content"
	CategoryAIDetected      = "ai_detected"
	CategoryUnknown         = "unknown"
	CategoryParseError      = "parse_error"
)

// Sources identify which pipeline stage produced the final verdict.
const (
	SourceLocalFilter  = "local_filter"
	SourceAI           = "ai"
	SourceShortMessage = "short_message"
	SourceTimeout      = "timeout"
	SourceAPIError     = "api_error"
	SourceParseError   = "parse_error"
)

// Verdict is the outcome of evaluating a single message. Every field is
// always populated: the parser and pipeline fill defaults so consumers never
// see a partial verdict.
type Verdict struct {
	Bad      bool   `json:"bad"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"` // low | medium | high
	Category string `json:"category"`
	Source   string `json:"source"` // which stage decided
}

// CleanVerdict returns a non-violating verdict with the given reason and source.
func CleanVerdict(reason, source string) Verdict {
	return Verdict{
		Bad:      false,
		Reason:   reason,
		Severity: SeverityLow,
		Category: CategoryNone,
		Source:   source,
	}
}
