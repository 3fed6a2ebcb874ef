package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityAllNegativeHighVolumeRecent(t *testing.T) {
	score, band := Priority(PriorityInput{
		WeightedSentimentScore: -1.0,
		MentionCount:           200,
		VolumeSaturation:       200,
		HoursSinceLastActivity: 0,
	})
	assert.InDelta(t, 100.0, score, 1e-6)
	assert.Equal(t, "critical", band)
}

func TestPriorityPositiveLowVolumeOld(t *testing.T) {
	score, band := Priority(PriorityInput{
		WeightedSentimentScore: 1.0, // positive sentiment contributes 0
		MentionCount:           0,
		VolumeSaturation:       200,
		HoursSinceLastActivity: 1000,
	})
	assert.Less(t, score, 5.0)
	assert.Equal(t, "low", band)
}

func TestPriorityBandsBoundaries(t *testing.T) {
	_, band := Priority(PriorityInput{WeightedSentimentScore: -0.8, MentionCount: 200, VolumeSaturation: 200, HoursSinceLastActivity: 0})
	assert.Equal(t, "critical", band)
}

func TestPriorityDefaultsSaturationWhenUnset(t *testing.T) {
	a, _ := Priority(PriorityInput{MentionCount: 100, HoursSinceLastActivity: 1})
	b, _ := Priority(PriorityInput{MentionCount: 100, VolumeSaturation: 200, HoursSinceLastActivity: 1})
	assert.InDelta(t, b, a, 1e-9)
}
