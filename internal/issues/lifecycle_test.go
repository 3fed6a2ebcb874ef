package issues

import (
	"testing"

	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmergingToActive(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueEmerging, MentionCount: 3, AgeHours: 24})
	require.True(t, ok)
	assert.Equal(t, types.IssueActive, tr.To)
}

func TestEmergingStaysWhenTooYoung(t *testing.T) {
	_, ok := Evaluate(TickInput{State: types.IssueEmerging, MentionCount: 5, AgeHours: 1})
	assert.False(t, ok)
}

func TestActiveToEscalatedOnHighPriority(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueActive, PriorityScore: 85})
	require.True(t, ok)
	assert.Equal(t, types.IssueEscalated, tr.To)
}

func TestActiveToEscalatedOnSentimentSpike(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueActive, PriorityScore: 50, WeightedSentimentScore: -0.6, MentionsLastHour: 6})
	require.True(t, ok)
	assert.Equal(t, types.IssueEscalated, tr.To)
}

func TestActiveToStabilizingOnVelocityDrop(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueActive, PriorityScore: 10, VelocityLast6h: 1, VelocityPrior6h: 4})
	require.True(t, ok)
	assert.Equal(t, types.IssueStabilizing, tr.To)
}

func TestActiveStaysStableOtherwise(t *testing.T) {
	_, ok := Evaluate(TickInput{State: types.IssueActive, PriorityScore: 10, VelocityLast6h: 3, VelocityPrior6h: 4})
	assert.False(t, ok)
}

func TestEscalatedToActiveWhenPriorityDrops(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueEscalated, PriorityScore: 59})
	require.True(t, ok)
	assert.Equal(t, types.IssueActive, tr.To)
}

func TestStabilizingToActiveOnRebound(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueStabilizing, VelocityLast6h: 5, VelocityPrior6h: 2})
	require.True(t, ok)
	assert.Equal(t, types.IssueActive, tr.To)
}

func TestStabilizingToResolvedAfterSevenDaysQuiet(t *testing.T) {
	tr, ok := Evaluate(TickInput{State: types.IssueStabilizing, VelocityLast6h: 1, VelocityPrior6h: 2, HasAnyMention: true, DaysSinceLastMention: 8})
	require.True(t, ok)
	assert.Equal(t, types.IssueResolved, tr.To)
}

func TestResolvedAndArchivedAreTerminalToThisFunction(t *testing.T) {
	_, ok := Evaluate(TickInput{State: types.IssueResolved})
	assert.False(t, ok)
	_, ok = Evaluate(TickInput{State: types.IssueArchived})
	assert.False(t, ok)
}
