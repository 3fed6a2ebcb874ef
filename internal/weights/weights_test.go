package weights

import (
	"testing"

	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestInfluenceBaseCases(t *testing.T) {
	assert.InDelta(t, 1.0, Influence(types.SourceCitizen, false, types.ReachLow), 1e-9)
	assert.InDelta(t, 5.0, Influence(types.SourcePresidency, false, types.ReachHigh), 1e-9) // 5*1.3 clipped to 5
}

func TestInfluenceVerifiedBonusAndClip(t *testing.T) {
	// minister=4.0, verified*1.5=6.0, reach high*1.3=7.8 -> clipped to 5
	assert.InDelta(t, 5.0, Influence(types.SourceMinister, true, types.ReachHigh), 1e-9)

	// citizen=1.0, verified*1.5=1.5, reach medium*1.15=1.725
	assert.InDelta(t, 1.725, Influence(types.SourceCitizen, true, types.ReachMedium), 1e-9)
}

func TestInfluenceNeverBelowOne(t *testing.T) {
	assert.GreaterOrEqual(t, Influence(types.SourceCitizen, false, types.ReachLow), 1.0)
}

func TestConfidenceClipsToUnitInterval(t *testing.T) {
	assert.InDelta(t, 0.5, Confidence(-1.0, 0.0), 1e-9)
	assert.InDelta(t, 1.0, Confidence(1.0, 1.0), 1e-9)
	assert.InDelta(t, 0.0, Confidence(0, 0), 1e-9)
}
