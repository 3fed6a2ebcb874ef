package normalize

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// layouts are tried in the order §4.1 documents: RFC 1123-style Twitter
// format, ISO-8601 (with/without fractional seconds, with/without Z),
// space-separated with a 4- or 5-digit timezone, then a couple of common
// locale strings.
var layouts = []string{
	time.RubyDate,                  // Twitter-style: "Mon Jan 02 15:04:05 -0700 2006"
	time.RFC1123Z,                  // RFC 1123 with numeric zone: "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC3339Nano,               // ISO-8601 with fractional seconds + Z/offset
	time.RFC3339,                   // ISO-8601 without fractional seconds
	"2006-01-02T15:04:05",          // ISO-8601, no zone
	"2006-01-02 15:04:05 -0700",    // space-separated, 5-digit offset
	"2006-01-02 15:04:05 -07",      // space-separated, 2-digit offset (still "4-or-5 digit" per spec intent)
	"2006-01-02 15:04:05",          // space-separated, no zone
	"15:04 02 Jan 2006",            // "HH:MM DD Mon YYYY" locale string
	"02 Jan 2006 15:04",            // "DD Mon YYYY HH:MM" locale variant
	"January 2, 2006 3:04 PM",      // long-form English locale string
}

var nlParser = newNaturalLanguageParser()

func newNaturalLanguageParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseTimestamp attempts each documented layout in turn, then falls back to
// a natural-language parse (github.com/olebedev/when) for the remaining
// "several locale strings" §4.1 alludes to but doesn't enumerate exhaustively
// (e.g. "yesterday at 3pm", "3 hours ago" emitted by some scraped sources).
// Returns ok=false on total failure; callers fall back to CollectedAt.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if res, err := nlParser.Parse(s, time.Now()); err == nil && res != nil {
		return res.Time, true
	}

	return time.Time{}, false
}
