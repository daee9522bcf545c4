package moderation

import (
	"regexp"
	"strings"
)

// Compiled once at package init and reused for every call, making them safe
// for concurrent use.
var (
	// nonWordPattern matches any run of characters that is not a letter,
	// digit, underscore, or whitespace. Each run is replaced with a single
	// space so punctuation separates tokens instead of gluing them together.
	// Spelled with \p{L}\p{N} instead of \w: RE2's \w is ASCII-only and
	// would erase non-Latin letters.
	nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

	// multiSpacePattern collapses consecutive whitespace into one space.
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes raw text for lexical matching: lower-cases,
// replaces punctuation/symbols with spaces, collapses whitespace, and trims.
// It is purely functional and never fails.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, " ")
	text = multiSpacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
