// Package topics implements Phase T of the analysis pipeline (§4.4):
// scoring a mention's text and embedding against every active topic, and
// deciding which associations to retain.
package topics

import (
	"math"
	"regexp"
	"strings"

	"github.com/clariona/mediawatch/internal/types"
)

// Thresholds bundles the four processing.topic.* config keys Phase T reads
// (§6.4), so callers don't thread four scalars through every call.
type Thresholds struct {
	MinScore        float64 // processing.topic.min_score_threshold, default 0.2
	Confidence      float64 // processing.topic.confidence_threshold, default 0.85
	KeywordScore    float64 // processing.topic.keyword_score_threshold, default 0.3
	EmbeddingScore  float64 // processing.topic.embedding_score_threshold, default 0.5
}

// KeywordScore scores text against a topic's keyword evidence: the fraction
// of KeywordGroups that are satisfied, where an AND group needs every
// keyword present and an OR group needs at least one. A keyword is present
// when it occurs as a whole word (case-insensitive), so "price" does not
// match "prices". Bare Keywords behave as independent OR terms. Returns 0
// if the topic carries no keyword evidence.
func KeywordScore(text string, topic *types.Topic) float64 {
	lower := strings.ToLower(text)

	totalTerms := len(topic.Keywords) + len(topic.KeywordGroups)
	if totalTerms == 0 {
		return 0
	}

	hits := 0
	for _, kw := range topic.Keywords {
		if containsWord(lower, kw) {
			hits++
		}
	}
	for _, group := range topic.KeywordGroups {
		if groupSatisfied(lower, group) {
			hits++
		}
	}
	return float64(hits) / float64(totalTerms)
}

func groupSatisfied(lowerText string, group types.KeywordGroup) bool {
	if len(group.Keywords) == 0 {
		return false
	}
	switch group.Operator {
	case types.KeywordAnd:
		for _, kw := range group.Keywords {
			if !containsWord(lowerText, kw) {
				return false
			}
		}
		return true
	default: // OR
		for _, kw := range group.Keywords {
			if containsWord(lowerText, kw) {
				return true
			}
		}
		return false
	}
}

// containsWord reports whether kw occurs in lowerText bounded by word
// boundaries on both sides.
func containsWord(lowerText, kw string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(lowerText)
}

// EmbeddingScore computes cosine similarity between a mention embedding and
// a topic's centroid, mapped from [-1,1] to [0,1].
func EmbeddingScore(mentionEmbedding, centroid []float32) float64 {
	if len(mentionEmbedding) == 0 || len(mentionEmbedding) != len(centroid) {
		return 0
	}
	var dot, magA, magB float64
	for i := range mentionEmbedding {
		a := float64(mentionEmbedding[i])
		b := float64(centroid[i])
		dot += a * b
		magA += a * a
		magB += b * b
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return (cos + 1) / 2
}

// Score is the per-topic evaluation Phase T produces before acceptance
// filtering.
type Score struct {
	TopicKey        string
	KeywordScore    float64
	EmbeddingScore  float64
	TopicConfidence float64
}

// confidence combines keyword and embedding evidence per §4.4:
// topic_confidence = 0.4*keyword_score + 0.6*embedding_score.
func confidence(keywordScore, embeddingScore float64) float64 {
	return 0.4*keywordScore + 0.6*embeddingScore
}

// ScoreAll evaluates text/embedding against every active topic.
func ScoreAll(text string, embedding []float32, active []*types.Topic) []Score {
	out := make([]Score, 0, len(active))
	for _, topic := range active {
		ks := KeywordScore(text, topic)
		es := EmbeddingScore(embedding, topic.CentroidEmbedding)
		out = append(out, Score{
			TopicKey:        topic.TopicKey,
			KeywordScore:    ks,
			EmbeddingScore:  es,
			TopicConfidence: confidence(ks, es),
		})
	}
	return out
}

// Retain applies §4.4's acceptance rule to a scored topic list: every topic
// with topic_confidence >= t.Confidence, OR (keyword_score >= t.KeywordScore
// AND embedding_score >= t.EmbeddingScore). If nothing qualifies, retain the
// single top-scoring topic if its confidence >= t.MinScore; otherwise
// retain nothing. The returned slice is never nil when at least one topic
// is retained; the first element is always the highest-confidence pick
// (the one mirrored into Mention.ministry_hint).
func Retain(scores []Score, t Thresholds) []Score {
	var retained []Score
	for _, s := range scores {
		if s.TopicConfidence >= t.Confidence || (s.KeywordScore >= t.KeywordScore && s.EmbeddingScore >= t.EmbeddingScore) {
			retained = append(retained, s)
		}
	}

	if len(retained) == 0 {
		top, ok := topScore(scores)
		if ok && top.TopicConfidence >= t.MinScore {
			retained = []Score{top}
		}
		return retained
	}

	sortByConfidenceDesc(retained)
	return retained
}

func topScore(scores []Score) (Score, bool) {
	if len(scores) == 0 {
		return Score{}, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.TopicConfidence > best.TopicConfidence {
			best = s
		}
	}
	return best, true
}

func sortByConfidenceDesc(scores []Score) {
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].TopicConfidence > scores[j-1].TopicConfidence; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
}
