package normalize

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	disallowedChars   = regexp.MustCompile(`[^\w\s.,?!-]`)
)

// NormalizeText implements §4.1 normalize_text: lower-case, strip URLs,
// collapse whitespace, drop characters outside [\w\s.,?!-], trim. Used for
// both fingerprinting and near-duplicate comparison, so its output must be
// stable across calls on identical input.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = urlPattern.ReplaceAllString(s, "")
	s = disallowedChars.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
