// Package normalize implements the Record Normalizer (C1): a pure function
// that turns a raw, source-specific record into the canonical Mention shape,
// plus the deterministic fingerprint used for deduplication.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/clariona/mediawatch/internal/types"
)

// RejectReason is why normalize() refused to produce a Mention.
type RejectReason string

const (
	RejectMissingRequiredField RejectReason = "missing_required_field"
	RejectUnsupportedLanguage  RejectReason = "unsupported_language"
	RejectMalformedTimestamp   RejectReason = "malformed_timestamp"
)

// Error wraps a RejectReason so callers can errors.As-dispatch on it,
// following the sentinel-wrapper pattern used throughout the teacher's
// storage package for its error taxonomy.
type Error struct {
	Reason RejectReason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Source describes the platform a raw record came from, enough context for
// normalize() to canonicalize it.
type Source struct {
	Platform       string
	SourceType     types.SourceType
	SourceName     string
	Query          string
	AllowedLangs   []string // empty = no allow-list, any language passes
	DefaultCountry string
}

// Raw is the untyped shape a Collector hands to the normalizer. Field
// presence varies by source; normalize() is defensive about missing keys.
type Raw map[string]any

func str(r Raw, key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func num(r Raw, key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func boolean(r Raw, key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// Normalize converts a raw record into a canonical Mention, or returns an
// *Error describing why the record was rejected. No I/O; the clock is read
// only when published_at falls through to ParseTimestamp's natural-language
// fallback, which resolves relative phrases against time.Now.
func Normalize(raw Raw, source Source, collectedAt time.Time) (*types.Mention, error) {
	text := str(raw, "text")
	title := str(raw, "title")
	url := str(raw, "url")

	if text == "" && title == "" && url == "" {
		return nil, &Error{Reason: RejectMissingRequiredField, Detail: "no content and no url"}
	}

	lang := str(raw, "language")
	if lang != "" && len(source.AllowedLangs) > 0 && !contains(source.AllowedLangs, lang) {
		return nil, &Error{Reason: RejectUnsupportedLanguage, Detail: lang}
	}

	published := collectedAt
	if ts := str(raw, "published_at"); ts != "" {
		parsed, ok := ParseTimestamp(ts)
		if !ok {
			return nil, &Error{Reason: RejectMalformedTimestamp, Detail: ts}
		}
		published = parsed
	}

	country := str(raw, "country")
	if country == "" {
		country = source.DefaultCountry
	}

	m := &types.Mention{
		SourceID:   str(raw, "source_id"),
		URL:        url,
		Platform:   source.Platform,
		SourceType: source.SourceType,
		SourceName: source.SourceName,
		Query:      source.Query,

		CollectedAt: collectedAt,
		PublishedAt: published,
		Language:    lang,
		Country:     country,

		Title: title,
		Text:  text,

		AuthorHandle:      str(raw, "author_handle"),
		AuthorDisplayName: str(raw, "author_display_name"),
		AuthorAvatar:      str(raw, "author_avatar"),
		AuthorLocation:    str(raw, "author_location"),
		AuthorVerified:    boolean(raw, "author_verified"),

		Likes:           num(raw, "likes"),
		Shares:          num(raw, "shares"),
		Comments:        num(raw, "comments"),
		DirectReach:     num(raw, "direct_reach"),
		CumulativeReach: num(raw, "cumulative_reach"),
		ReachTier:       reachTier(num(raw, "direct_reach")),

		ProcessingStatus: types.StatusPending,
	}

	return m, nil
}

func reachTier(directReach int64) types.ReachTier {
	switch {
	case directReach >= 100_000:
		return types.ReachHigh
	case directReach >= 10_000:
		return types.ReachMedium
	default:
		return types.ReachLow
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
