// Package aggregate implements §4.5.6-4.5.8: windowed rollups, trend
// deltas, and topic baselines.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/clariona/mediawatch/internal/types"
)

// MentionInput is the minimal per-mention data aggregation needs; callers
// assemble it from analyzed types.Mention rows in the target window.
type MentionInput struct {
	SentimentLabel      types.SentimentLabel
	SentimentScore      float64
	EmotionDistribution map[types.EmotionLabel]float64
	InfluenceWeight     float64
	ConfidenceWeight    float64
}

// WindowStart snaps now to the most recent integer multiple of w.Duration()
// since a fixed epoch (Unix zero), giving every component the same
// window boundaries regardless of when the tick actually runs.
func WindowStart(now time.Time, w types.WindowSize) time.Time {
	d := w.Duration()
	if d <= 0 {
		return now
	}
	epoch := time.Unix(0, 0).UTC()
	elapsed := now.Sub(epoch)
	snapped := elapsed / d * d
	return epoch.Add(snapped)
}

// Compute builds one Aggregation row from the mentions populating the
// window (§4.5.6). Returns a row with zeroed scores if mentions is empty.
func Compute(kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time, mentions []MentionInput) *types.Aggregation {
	windowEnd := windowStart.Add(w.Duration())
	out := &types.Aggregation{
		SubjectKind:           kind,
		SubjectKey:            key,
		WindowSize:            w,
		WindowStart:           windowStart,
		WindowEnd:             windowEnd,
		SentimentDistribution: map[types.SentimentLabel]float64{},
		EmotionDistribution:   map[types.EmotionLabel]float64{},
		MentionCount:          len(mentions),
	}
	if len(mentions) == 0 {
		return out
	}

	var weightedSum, weightSum, totalInfluence float64
	sentimentCounts := map[types.SentimentLabel]int{}
	emotionSums := map[types.EmotionLabel]float64{}

	for _, m := range mentions {
		w := m.InfluenceWeight * m.ConfidenceWeight
		weightedSum += m.SentimentScore * w
		weightSum += w
		totalInfluence += m.InfluenceWeight

		sentimentCounts[m.SentimentLabel]++
		for emo, p := range m.EmotionDistribution {
			emotionSums[emo] += p
		}
	}

	if weightSum > 0 {
		out.WeightedSentimentScore = weightedSum / weightSum
	}
	out.SentimentIndex = sentimentIndex(out.WeightedSentimentScore)
	out.TotalInfluenceWeight = totalInfluence

	n := float64(len(mentions))
	for label, count := range sentimentCounts {
		out.SentimentDistribution[label] = float64(count) / n
	}
	for emo, sum := range emotionSums {
		out.EmotionDistribution[emo] = sum / n
	}

	out.EmotionAdjustedSeverity = emotionAdjustedSeverity(out.EmotionDistribution, out.WeightedSentimentScore)

	return out
}

func sentimentIndex(weighted float64) int {
	idx := int(math.Round(50 * (weighted + 1)))
	if idx < 0 {
		return 0
	}
	if idx > 100 {
		return 100
	}
	return idx
}

// emotionAdjustedSeverity is the max mean probability among the four
// "negative" emotions, scaled by how negative the window's weighted
// sentiment is (§4.5.6).
func emotionAdjustedSeverity(dist map[types.EmotionLabel]float64, weightedSentiment float64) float64 {
	negativeEmotions := []types.EmotionLabel{types.EmotionAnger, types.EmotionFear, types.EmotionDisgust, types.EmotionSadness}
	var maxP float64
	for _, emo := range negativeEmotions {
		if p := dist[emo]; p > maxP {
			maxP = p
		}
	}
	sentimentFactor := -weightedSentiment
	if sentimentFactor < 0 {
		sentimentFactor = 0
	}
	return maxP * sentimentFactor
}

// Trend compares currentIndex to previousIndex per §4.5.7.
func Trend(currentIndex, previousIndex int) types.Trend {
	delta := currentIndex - previousIndex
	direction := types.TrendStable
	switch {
	case delta >= 5:
		direction = types.TrendImproving
	case delta <= -5:
		direction = types.TrendDeteriorating
	}
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	return types.Trend{
		CurrentSentimentIndex:  currentIndex,
		PreviousSentimentIndex: previousIndex,
		Direction:              direction,
		Magnitude:              magnitude,
	}
}

// Baseline computes the median of a topic's historical 24h-window
// sentiment_index values (§4.5.8).
func Baseline(history []int) float64 {
	if len(history) == 0 {
		return 0
	}
	sorted := append([]int(nil), history...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

// NormalizedSentimentScore is current_index - baseline_index (§4.5.8).
func NormalizedSentimentScore(currentIndex int, baselineIndex float64) float64 {
	return float64(currentIndex) - baselineIndex
}
