package issues

import "math"

// PriorityInput carries the three components §4.5.5 combines into
// priority_score.
type PriorityInput struct {
	WeightedSentimentScore float64 // [-1,1]
	MentionCount           int
	VolumeSaturation       int     // processing.issues.volume_saturation, default 200
	HoursSinceLastActivity float64
}

// Priority computes priority_score and its band (§4.5.5).
func Priority(in PriorityInput) (score float64, band string) {
	sentimentComponent := 100 * clamp01(-in.WeightedSentimentScore)

	saturation := in.VolumeSaturation
	if saturation <= 0 {
		saturation = 200
	}
	volumeComponent := 100 * math.Min(1, float64(in.MentionCount)/float64(saturation))

	timeComponent := 100 * math.Exp(-in.HoursSinceLastActivity/24)

	score = 0.4*sentimentComponent + 0.35*volumeComponent + 0.25*timeComponent

	switch {
	case score >= 80:
		band = "critical"
	case score >= 60:
		band = "high"
	case score >= 40:
		band = "medium"
	default:
		band = "low"
	}
	return score, band
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
