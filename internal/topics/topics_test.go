package topics

import (
	"testing"

	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScoreMixesBareAndGroupTerms(t *testing.T) {
	topic := &types.Topic{
		Keywords: []string{"fuel"},
		KeywordGroups: []types.KeywordGroup{
			{Operator: types.KeywordAnd, Keywords: []string{"price", "hike"}},
			{Operator: types.KeywordOr, Keywords: []string{"diesel", "petrol"}},
		},
	}

	// Matches "fuel" and the OR group ("petrol"), not the AND group (needs both).
	score := KeywordScore("fuel and petrol prices are rising, no hike mentioned", topic)
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
}

func TestKeywordScoreZeroWithNoEvidence(t *testing.T) {
	topic := &types.Topic{}
	assert.Equal(t, 0.0, KeywordScore("anything", topic))
}

func TestEmbeddingScoreIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, EmbeddingScore(v, v), 1e-6)
}

func TestEmbeddingScoreOppositeVectorsIsZero(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{-1, 0, 0}
	assert.InDelta(t, 0.0, EmbeddingScore(a, b), 1e-6)
}

func TestEmbeddingScoreMismatchedLengthIsZero(t *testing.T) {
	assert.Equal(t, 0.0, EmbeddingScore([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestRetainHighConfidenceTopic(t *testing.T) {
	scores := []Score{{TopicKey: "fuel", KeywordScore: 0.9, EmbeddingScore: 0.9, TopicConfidence: 0.9}}
	retained := Retain(scores, Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5})
	require.Len(t, retained, 1)
	assert.Equal(t, "fuel", retained[0].TopicKey)
}

func TestRetainViaKeywordAndEmbeddingBranch(t *testing.T) {
	scores := []Score{{TopicKey: "health", KeywordScore: 0.4, EmbeddingScore: 0.6, TopicConfidence: 0.52}}
	retained := Retain(scores, Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5})
	require.Len(t, retained, 1)
}

func TestRetainFallsBackToTopWhenNoneQualify(t *testing.T) {
	scores := []Score{
		{TopicKey: "low-a", TopicConfidence: 0.1},
		{TopicKey: "low-b", TopicConfidence: 0.25},
	}
	retained := Retain(scores, Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5})
	require.Len(t, retained, 1)
	assert.Equal(t, "low-b", retained[0].TopicKey)
}

func TestRetainNoneWhenEvenTopBelowMinScore(t *testing.T) {
	scores := []Score{{TopicKey: "low", TopicConfidence: 0.05}}
	retained := Retain(scores, Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5})
	assert.Empty(t, retained)
}

func TestRetainOrdersByConfidenceDescending(t *testing.T) {
	scores := []Score{
		{TopicKey: "a", TopicConfidence: 0.9},
		{TopicKey: "b", TopicConfidence: 0.95},
	}
	retained := Retain(scores, Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5})
	require.Len(t, retained, 2)
	assert.Equal(t, "b", retained[0].TopicKey, "highest confidence is first, mirrored into ministry_hint")
}
