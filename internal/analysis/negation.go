package analysis

import (
	"regexp"
	"strings"
)

// negationPatterns flag questions that ask for the wrong option. Any one
// match is enough. Patterns run on lower-cased text.
var negationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnot\s+(?:correct|true|valid|a|an)\b`),
	regexp.MustCompile(`\bincorrect\b`),
	regexp.MustCompile(`\bfalse\s+statement`),
	regexp.MustCompile(`\binvalid\b`),
	regexp.MustCompile(`\bwrong\b`),
	regexp.MustCompile(`\bwhich\b[^?.]*\bnot\b`),
	regexp.MustCompile(`\bexcept\b`),
	regexp.MustCompile(`\bleast\s+likely\b`),
	regexp.MustCompile(`\bdoes\s+not\b|\bdoesn't\b`),
	regexp.MustCompile(`\bis\s+not\b|\bisn't\b`),
	regexp.MustCompile(`\bare\s+not\b|\baren't\b`),
	regexp.MustCompile(`\bcannot\b|\bcan't\b`),
}

// IsNegated reports whether text asks for the incorrect option(s).
func IsNegated(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range negationPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
