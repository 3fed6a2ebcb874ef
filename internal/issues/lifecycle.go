package issues

import "github.com/clariona/mediawatch/internal/types"

// TickInput carries every metric the lifecycle state machine (§4.5.4) needs
// to evaluate one issue for one tick.
type TickInput struct {
	State        types.IssueState
	MentionCount int
	AgeHours     float64

	PriorityScore          float64
	WeightedSentimentScore float64
	MentionsLastHour       int

	VelocityLast6h     float64
	VelocityPrior6h     float64
	DaysSinceLastMention float64
	HasAnyMention        bool
}

// Transition is the outcome of evaluating one issue for one tick: at most
// one transition per issue per tick, matching §5's ordering guarantee.
type Transition struct {
	To     types.IssueState
	Reason string
}

// Evaluate returns the next lifecycle transition for in, or ok=false if the
// issue stays in its current state this tick. archived is never reached
// here: it is administrative-only (§4.5.4).
func Evaluate(in TickInput) (t Transition, ok bool) {
	switch in.State {
	case types.IssueEmerging:
		if in.MentionCount >= 3 && in.AgeHours >= 24 {
			return Transition{To: types.IssueActive, Reason: "mention_count >= 3 and age >= 24h"}, true
		}

	case types.IssueActive:
		if in.PriorityScore >= 80 {
			return Transition{To: types.IssueEscalated, Reason: "priority_score >= 80"}, true
		}
		if in.WeightedSentimentScore <= -0.5 && in.MentionsLastHour >= 5 {
			return Transition{To: types.IssueEscalated, Reason: "weighted_sentiment_score <= -0.5 and mentions_last_hour >= 5"}, true
		}
		if in.VelocityPrior6h > 0 && in.VelocityLast6h < in.VelocityPrior6h/2 {
			return Transition{To: types.IssueStabilizing, Reason: "velocity dropped below half of preceding window"}, true
		}

	case types.IssueEscalated:
		if in.PriorityScore < 60 {
			return Transition{To: types.IssueActive, Reason: "priority_score dropped below 60"}, true
		}

	case types.IssueStabilizing:
		if in.VelocityLast6h > in.VelocityPrior6h {
			return Transition{To: types.IssueActive, Reason: "velocity rebounded above prior window"}, true
		}
		if in.HasAnyMention && in.DaysSinceLastMention >= 7 {
			return Transition{To: types.IssueResolved, Reason: "no new mentions for >= 7 days"}, true
		}
	}

	return Transition{}, false
}
