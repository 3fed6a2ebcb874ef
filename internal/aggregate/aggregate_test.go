package aggregate

import (
	"testing"
	"time"

	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStartSnapsToMultiple(t *testing.T) {
	now := time.Unix(0, 0).UTC().Add(95 * time.Minute)
	start := WindowStart(now, types.Window1h)
	assert.Equal(t, time.Unix(0, 0).UTC().Add(time.Hour), start)
}

func TestComputeEmptyWindowIsZeroed(t *testing.T) {
	a := Compute(types.SubjectTopic, "fuel", types.Window1h, time.Now(), nil)
	assert.Equal(t, 0, a.MentionCount)
	assert.Equal(t, 0, a.SentimentIndex)
}

func TestComputeWeightedSentimentAndIndex(t *testing.T) {
	mentions := []MentionInput{
		{SentimentLabel: types.SentimentNegative, SentimentScore: -1.0, InfluenceWeight: 1, ConfidenceWeight: 1,
			EmotionDistribution: map[types.EmotionLabel]float64{types.EmotionAnger: 0.8, types.EmotionJoy: 0.2}},
		{SentimentLabel: types.SentimentPositive, SentimentScore: 1.0, InfluenceWeight: 1, ConfidenceWeight: 1,
			EmotionDistribution: map[types.EmotionLabel]float64{types.EmotionJoy: 1.0}},
	}
	a := Compute(types.SubjectTopic, "fuel", types.Window1h, time.Now(), mentions)

	require.Equal(t, 2, a.MentionCount)
	assert.InDelta(t, 0.0, a.WeightedSentimentScore, 1e-9)
	assert.Equal(t, 50, a.SentimentIndex)
	assert.InDelta(t, 0.5, a.SentimentDistribution[types.SentimentNegative], 1e-9)
	assert.InDelta(t, 0.5, a.SentimentDistribution[types.SentimentPositive], 1e-9)
}

func TestComputeAllNegativeMinimizesIndex(t *testing.T) {
	mentions := []MentionInput{
		{SentimentScore: -1.0, InfluenceWeight: 1, ConfidenceWeight: 1},
	}
	a := Compute(types.SubjectTopic, "fuel", types.Window1h, time.Now(), mentions)
	assert.Equal(t, 0, a.SentimentIndex)
}

func TestComputeZeroWeightSumAvoidsDivideByZero(t *testing.T) {
	mentions := []MentionInput{
		{SentimentScore: -1.0, InfluenceWeight: 0, ConfidenceWeight: 0},
	}
	a := Compute(types.SubjectTopic, "fuel", types.Window1h, time.Now(), mentions)
	assert.Equal(t, 0.0, a.WeightedSentimentScore)
}

func TestTrendDirections(t *testing.T) {
	assert.Equal(t, types.TrendImproving, Trend(60, 50).Direction)
	assert.Equal(t, types.TrendDeteriorating, Trend(40, 50).Direction)
	assert.Equal(t, types.TrendStable, Trend(52, 50).Direction)
	assert.Equal(t, 10, Trend(60, 50).Magnitude)
}

func TestBaselineMedianEvenAndOdd(t *testing.T) {
	assert.InDelta(t, 50.0, Baseline([]int{40, 50, 60}), 1e-9)
	assert.InDelta(t, 45.0, Baseline([]int{40, 50, 60, 30}), 1e-9)
	assert.Equal(t, 0.0, Baseline(nil))
}

func TestNormalizedSentimentScore(t *testing.T) {
	assert.InDelta(t, 10.0, NormalizedSentimentScore(60, 50.0), 1e-9)
}
