package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

// windows are the five fixed rollup granularities every tick computes
// (§3 Aggregation row, processing.aggregation.windows).
var windows = []types.WindowSize{types.Window15m, types.Window1h, types.Window24h, types.Window7d, types.Window30d}

// EngineOptions bundles the processing.aggregation.* config keys the tick needs.
type EngineOptions struct {
	TickInterval   time.Duration
	BaselinePeriod time.Duration // processing.aggregation.baseline_period_days
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{TickInterval: 15 * time.Minute, BaselinePeriod: 30 * 24 * time.Hour}
}

// Engine drives the §4.5.6-4.5.8 aggregation tick: windowed rollups per
// topic and issue, trend deltas against the previous window, and topic
// baselines.
type Engine struct {
	topics   store.TopicStore
	mentions store.MentionStore
	issues   store.IssueStore
	aggs     store.AggregationStore
	opts     EngineOptions
	log      *slog.Logger
}

func NewEngine(topics store.TopicStore, mentions store.MentionStore, issues store.IssueStore, aggs store.AggregationStore, opts EngineOptions, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{topics: topics, mentions: mentions, issues: issues, aggs: aggs, opts: opts, log: log}
}

func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.log.Error("aggregate: tick failed", "error", err)
			}
		}
	}
}

// Tick computes every window-sized Aggregation row for every active topic
// and non-archived issue, then trends and topic baselines.
func (e *Engine) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	topics, err := e.topics.ActiveTopics(ctx)
	if err != nil {
		return fmt.Errorf("aggregate: list active topics: %w", err)
	}
	for _, t := range topics {
		for _, w := range windows {
			if err := e.rollupTopic(ctx, t.TopicKey, w, now); err != nil {
				e.log.Error("aggregate: topic rollup failed", "topic", t.TopicKey, "window", w, "error", err)
			}
		}
		if err := e.updateBaseline(ctx, t.TopicKey, now); err != nil {
			e.log.Error("aggregate: baseline update failed", "topic", t.TopicKey, "error", err)
		}
	}

	issues, err := e.issues.AllNonArchivedIssues(ctx)
	if err != nil {
		return fmt.Errorf("aggregate: list non-archived issues: %w", err)
	}
	for _, iss := range issues {
		for _, w := range windows {
			if err := e.rollupIssue(ctx, iss.IssueID, w, now); err != nil {
				e.log.Error("aggregate: issue rollup failed", "issue_id", iss.IssueID, "window", w, "error", err)
			}
		}
	}
	return nil
}

func (e *Engine) rollupTopic(ctx context.Context, topicKey string, w types.WindowSize, now time.Time) error {
	windowStart := WindowStart(now, w)
	windowEnd := windowStart.Add(w.Duration())

	entryIDs, err := e.mentions.MentionIDsForTopic(ctx, topicKey, windowStart, windowEnd)
	if err != nil {
		return err
	}
	return e.computeAndStore(ctx, types.SubjectTopic, topicKey, w, windowStart, windowEnd, entryIDs)
}

func (e *Engine) rollupIssue(ctx context.Context, issueID int64, w types.WindowSize, now time.Time) error {
	windowStart := WindowStart(now, w)
	windowEnd := windowStart.Add(w.Duration())

	entryIDs, err := e.issues.MentionIDsForIssue(ctx, issueID)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%d", issueID)
	return e.computeAndStore(ctx, types.SubjectIssue, key, w, windowStart, windowEnd, entryIDs)
}

func (e *Engine) computeAndStore(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart, windowEnd time.Time, entryIDs []int64) error {
	mentions, err := e.mentions.MentionsInWindow(ctx, entryIDs, windowStart, windowEnd)
	if err != nil {
		return err
	}

	inputs := make([]MentionInput, 0, len(mentions))
	for _, m := range mentions {
		if !m.Analyzed() {
			continue
		}
		inputs = append(inputs, MentionInput{
			SentimentLabel:      *m.SentimentLabel,
			SentimentScore:      derefFloat(m.SentimentScore),
			EmotionDistribution: m.EmotionDistribution,
			InfluenceWeight:     derefFloat(m.InfluenceWeight),
			ConfidenceWeight:    derefFloat(m.ConfidenceWeight),
		})
	}

	agg := Compute(kind, key, w, windowStart, inputs)
	if err := e.aggs.UpsertAggregation(ctx, agg); err != nil {
		return err
	}

	prev, err := e.aggs.PreviousAggregation(ctx, kind, key, w, windowStart)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	prevIndex := 0
	if prev != nil {
		prevIndex = prev.SentimentIndex
	}
	trend := Trend(agg.SentimentIndex, prevIndex)
	trend.SubjectKind = kind
	trend.SubjectKey = key
	trend.WindowSize = w
	trend.WindowStart = windowStart
	return e.aggs.UpsertTrend(ctx, &trend)
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// updateBaseline recomputes a topic's historical median 24h sentiment
// index over the configured baseline period (§4.5.8).
func (e *Engine) updateBaseline(ctx context.Context, topicKey string, now time.Time) error {
	since := now.Add(-e.opts.BaselinePeriod)
	history, err := e.aggs.SentimentIndexHistory(ctx, topicKey, types.Window24h, since)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	baseline := Baseline(history)
	return e.aggs.UpsertBaseline(ctx, &types.Baseline{
		TopicKey:               topicKey,
		BaselineSentimentIndex: baseline,
		ComputedAt:             now,
	})
}
