// Package weights computes Phase C of the analysis pipeline (§4.4):
// influence_weight and confidence_weight, the two scalars priority scoring
// and aggregation weighting build on.
package weights

import "github.com/clariona/mediawatch/internal/types"

var baseBySourceType = map[types.SourceType]float64{
	types.SourceCitizen:    1.0,
	types.SourceJournalist: 2.0,
	types.SourceOfficial:   3.0,
	types.SourceMinister:   4.0,
	types.SourcePresidency: 5.0,
}

var reachMultiplier = map[types.ReachTier]float64{
	types.ReachLow:    1.0,
	types.ReachMedium: 1.15,
	types.ReachHigh:   1.3,
}

// Influence computes influence_weight: base-by-source-type, times a
// verification bonus, times a reach multiplier, clipped to [1,5].
func Influence(sourceType types.SourceType, verified bool, reach types.ReachTier) float64 {
	base, ok := baseBySourceType[sourceType]
	if !ok {
		base = baseBySourceType[types.SourceCitizen]
	}
	if verified {
		base *= 1.5
	}
	mult, ok := reachMultiplier[reach]
	if !ok {
		mult = reachMultiplier[types.ReachLow]
	}
	w := base * mult
	if w < 1 {
		return 1
	}
	if w > 5 {
		return 5
	}
	return w
}

// Confidence computes confidence_weight: the mean of |sentiment_score| and
// emotion_score, clipped to [0,1].
func Confidence(sentimentScore, emotionScore float64) float64 {
	abs := sentimentScore
	if abs < 0 {
		abs = -abs
	}
	c := (abs + emotionScore) / 2
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
