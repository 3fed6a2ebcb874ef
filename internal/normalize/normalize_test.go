package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRejectsEmptyRecord(t *testing.T) {
	_, err := Normalize(Raw{}, Source{Platform: "twitter"}, time.Now())
	require.Error(t, err)

	var nErr *Error
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, RejectMissingRequiredField, nErr.Reason)
}

func TestNormalizeRejectsDisallowedLanguage(t *testing.T) {
	raw := Raw{"text": "hola mundo", "language": "es"}
	source := Source{Platform: "twitter", AllowedLangs: []string{"en", "fr"}}

	_, err := Normalize(raw, source, time.Now())
	require.Error(t, err)

	var nErr *Error
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, RejectUnsupportedLanguage, nErr.Reason)
}

func TestNormalizeRejectsMalformedTimestamp(t *testing.T) {
	raw := Raw{"text": "hello", "published_at": "not-a-date"}
	_, err := Normalize(raw, Source{Platform: "twitter"}, time.Now())
	require.Error(t, err)

	var nErr *Error
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, RejectMalformedTimestamp, nErr.Reason)
}

func TestNormalizeFallsBackToCollectedAt(t *testing.T) {
	collected := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := Raw{"text": "hello"}

	m, err := Normalize(raw, Source{Platform: "twitter"}, collected)
	require.NoError(t, err)
	assert.Equal(t, collected, m.PublishedAt)
	assert.Equal(t, types.StatusPending, m.ProcessingStatus)
}

func TestNormalizeParsesDocumentedLayouts(t *testing.T) {
	tests := []string{
		"Mon Jan 02 15:04:05 -0700 2006",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.123Z",
		"2006-01-02 15:04:05 -0700",
		"2006-01-02 15:04:05",
	}

	for _, ts := range tests {
		t.Run(ts, func(t *testing.T) {
			_, ok := ParseTimestamp(ts)
			assert.True(t, ok, "expected %q to parse", ts)
		})
	}
}

func TestNormalizeTextCollapsesAndStrips(t *testing.T) {
	in := "Check THIS out:   https://example.com/path?q=1   it's  great!!"
	got := NormalizeText(in)
	assert.NotContains(t, got, "https://")
	assert.Equal(t, got, NormalizeText(in), "must be deterministic")
}

func TestFingerprintPrefersSourceIDThenURLThenText(t *testing.T) {
	byID := &types.Mention{Platform: "x", SourceID: "123", URL: "https://a", Text: "hello"}
	byID2 := &types.Mention{Platform: "x", SourceID: "123", URL: "https://b", Text: "world"}
	assert.Equal(t, Fingerprint(byID), Fingerprint(byID2), "source_id alone determines fingerprint")

	byURL := &types.Mention{Platform: "x", URL: "https://a", Text: "hello"}
	byURL2 := &types.Mention{Platform: "x", URL: "https://a", Text: "world"}
	assert.Equal(t, Fingerprint(byURL), Fingerprint(byURL2), "url alone determines fingerprint when no source_id")

	byText := &types.Mention{Platform: "x", Text: "hello world"}
	byText2 := &types.Mention{Platform: "x", Text: "hello   world"}
	assert.Equal(t, Fingerprint(byText), Fingerprint(byText2), "normalized text determines fingerprint as last resort")
}
