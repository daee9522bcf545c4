// Package moderation implements the message moderation pipeline: a fast
// local lexical filter for unambiguous profanity, an AI classifier fallback
// for context-dependent content, and strict normalization of the classifier's
// free-text reply into a typed verdict.
package moderation

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultBlocklist is the fixed set of terms the local filter blocks on an
// exact whole-token match. Only unambiguous severe content belongs here:
// anything context-dependent (insults, sarcasm, threats) is left to the AI
// classifier so this stage never produces false positives.
var defaultBlocklist = []string{
	// Profanity (explicit)
	"fuck", "fucker", "fucking",
	"shit", "shitting",
	"asshole", "ass",
	"bitch", "bitches",
	"bastard",
	"motherfucker", "motherfucking", "mofo",
	"damn", "crap", "hell",

	// Strong racial slurs (only the worst)
	"nigger", "nigga",
	"chink", "spic", "kike", "gook",

	// Severe sexual terms
	"rape", "raping", "rapist",
	"pedo", "pedophile",
	"molest",

	// Extreme insults
	"retard", "retarded",
}

// spacedPatterns catch block-listed roots with whitespace inserted between
// letters ("f u c k"), which would otherwise split into harmless tokens.
// The leading guard prevents matches starting mid-word; "ass" also needs a
// trailing guard so words like "assess" or "class" stay clean. Boundaries
// are spelled out with \p{L}\p{N} because RE2's \b is ASCII-only and would
// treat a letter like "é" as a word edge.
var spacedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])f\s*u\s*c\s*k`),
	regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])s\s*h\s*i\s*t`),
	regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])a\s*s\s*s(?:$|[^\p{L}\p{N}_])`),
	regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])b\s*i\s*t\s*c\s*h`),
}

// defaultPhrases are literal multi-word combinations checked as substrings
// of the raw lower-cased text.
var defaultPhrases = []string{
	"fuck you", "fuck off", "shit head", "ass hole",
}

// FilterResult is the outcome of a local filter check.
type FilterResult struct {
	Blocked bool
	Reason  string // human-readable explanation, set when Blocked
	Term    string // the matched token, pattern, or phrase
}

// Filter screens messages against a fixed blocklist and obfuscation
// patterns. It is cheap, deterministic, and makes zero network calls, so it
// is safe to run on every message before consulting the AI classifier.
// A Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	words   map[string]struct{}
	phrases []string
}

// NewFilter creates a Filter with the default blocklist and phrase set.
func NewFilter() *Filter {
	return NewFilterWithTerms(append(append([]string{}, defaultBlocklist...), defaultPhrases...))
}

// NewFilterWithTerms creates a Filter from a custom term list. Single-word
// terms are matched as whole tokens; terms containing spaces are matched as
// phrase substrings. Empty and whitespace-only terms are ignored.
func NewFilterWithTerms(terms []string) *Filter {
	f := &Filter{words: make(map[string]struct{})}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.ContainsRune(term, ' ') {
			f.phrases = append(f.phrases, term)
		} else {
			f.words[term] = struct{}{}
		}
	}
	return f
}

// Check screens a message and returns a blocking FilterResult on the first
// match. Checks run in order: exact blocklist tokens on the normalized text,
// spaced-out profanity patterns on the raw text, then profane phrase
// substrings. If nothing matches, the zero-value result is returned.
func (f *Filter) Check(text string) FilterResult {
	lower := strings.ToLower(text)

	for _, word := range strings.Fields(Normalize(text)) {
		if _, ok := f.words[word]; ok {
			return FilterResult{
				Blocked: true,
				Reason:  fmt.Sprintf("Contains explicit profanity: '%s'", word),
				Term:    word,
			}
		}
	}

	// Spaced patterns run against the raw lower-cased text, not the
	// normalized form: normalization would strip the separators that make
	// the evasion visible.
	for _, pattern := range spacedPatterns {
		if pattern.MatchString(lower) {
			return FilterResult{
				Blocked: true,
				Reason:  "Contains spaced-out profanity",
				Term:    pattern.String(),
			}
		}
	}

	for _, phrase := range f.phrases {
		if strings.Contains(lower, phrase) {
			return FilterResult{
				Blocked: true,
				Reason:  "Contains profane phrase",
				Term:    phrase,
			}
		}
	}

	return FilterResult{}
}
