package issues

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSlug generates the cosmetic {topic}-{YYYYMMDD}-{random6} identifier
// from §4.5.3. It is never the identity of an issue — issue_id is (§9
// "Issue identity that must survive drift").
func NewSlug(topicKey string, at time.Time) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", fmt.Errorf("issues: generate slug suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", topicKey, at.Format("20060102"), suffix), nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(n)
	for _, v := range buf {
		b.WriteByte(slugAlphabet[int(v)%len(slugAlphabet)])
	}
	return b.String(), nil
}

// MostFrequentKeyword is the fallback label source (§4.5.3) when the
// classifier summary call fails: the keyword appearing in the most
// cluster-member texts, case-insensitive, first-seen order breaking ties.
func MostFrequentKeyword(texts []string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	counts := make(map[string]int, len(candidates))
	for _, kw := range candidates {
		lower := strings.ToLower(kw)
		for _, text := range texts {
			if strings.Contains(strings.ToLower(text), lower) {
				counts[kw]++
			}
		}
	}
	best := candidates[0]
	bestCount := -1
	for _, kw := range candidates {
		if counts[kw] > bestCount {
			bestCount = counts[kw]
			best = kw
		}
	}
	return best
}
