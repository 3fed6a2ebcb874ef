package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/store/memstore"
	"github.com/clariona/mediawatch/internal/types"
)

func seedAnalyzedMention(t *testing.T, s *memstore.Store, topicKey string, label types.SentimentLabel, score float64, publishedAt time.Time) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), &types.Mention{
		Platform:    "twitter",
		SourceID:    topicKey + time.Now().String(),
		Text:        "sample",
		SourceType:  types.SourceCitizen,
		ReachTier:   types.ReachLow,
		PublishedAt: publishedAt,
	})
	require.NoError(t, err)
	require.NoError(t, s.CommitAnalysis(context.Background(), &store.AnalysisResult{
		EntryID:          id,
		SentimentLabel:   label,
		SentimentScore:   score,
		EmotionLabel:     types.EmotionNeutral,
		InfluenceWeight:  1,
		ConfidenceWeight: 1,
		Topics:           []types.MentionTopic{{MentionID: id, TopicKey: topicKey, TopicConfidence: 0.9}},
	}))
	return id
}

func TestRollupTopicWritesAggregationAndTrend(t *testing.T) {
	s := memstore.New()
	s.SeedTopic(&types.Topic{TopicKey: "roads", DisplayName: "Roads", Active: true})

	now := time.Now().UTC()
	windowStart := WindowStart(now, types.Window1h)
	mid := windowStart.Add(30 * time.Minute)
	seedAnalyzedMention(t, s, "roads", types.SentimentNegative, -0.8, mid)
	seedAnalyzedMention(t, s, "roads", types.SentimentNegative, -0.4, mid)

	e := NewEngine(s, s, s, s, DefaultEngineOptions(), nil)
	require.NoError(t, e.rollupTopic(context.Background(), "roads", types.Window1h, now))

	agg, err := s.GetAggregation(context.Background(), types.SubjectTopic, "roads", types.Window1h, windowStart)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.MentionCount)
	assert.InDelta(t, -0.6, agg.WeightedSentimentScore, 0.01)
	assert.Less(t, agg.SentimentIndex, 50)
}

func TestRollupTopicSkipsUnanalyzedMentions(t *testing.T) {
	s := memstore.New()
	s.SeedTopic(&types.Topic{TopicKey: "roads", DisplayName: "Roads", Active: true})

	now := time.Now().UTC()
	windowStart := WindowStart(now, types.Window1h)
	_, err := s.Insert(context.Background(), &types.Mention{
		Platform:    "twitter",
		SourceID:    "unanalyzed",
		PublishedAt: windowStart.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	e := NewEngine(s, s, s, s, DefaultEngineOptions(), nil)
	require.NoError(t, e.rollupTopic(context.Background(), "roads", types.Window1h, now))

	agg, err := s.GetAggregation(context.Background(), types.SubjectTopic, "roads", types.Window1h, windowStart)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.MentionCount)
}

func TestUpdateBaselineComputesMedianOfHistory(t *testing.T) {
	s := memstore.New()
	now := time.Now().UTC()

	for i, idx := range []int{20, 40, 60} {
		start := now.Add(-time.Duration(i+1) * 24 * time.Hour)
		require.NoError(t, s.UpsertAggregation(context.Background(), &types.Aggregation{
			SubjectKind:    types.SubjectTopic,
			SubjectKey:     "roads",
			WindowSize:     types.Window24h,
			WindowStart:    start,
			SentimentIndex: idx,
		}))
	}

	e := NewEngine(s, s, s, s, DefaultEngineOptions(), nil)
	require.NoError(t, e.updateBaseline(context.Background(), "roads", now))

	baseline, err := s.GetBaseline(context.Background(), "roads")
	require.NoError(t, err)
	assert.Equal(t, 40.0, baseline.BaselineSentimentIndex)
}

func TestTickRollsUpEveryActiveTopicAndIssue(t *testing.T) {
	s := memstore.New()
	s.SeedTopic(&types.Topic{TopicKey: "roads", DisplayName: "Roads", Active: true})
	now := time.Now().UTC()
	windowStart := WindowStart(now, types.Window15m)
	seedAnalyzedMention(t, s, "roads", types.SentimentPositive, 0.5, windowStart.Add(time.Minute))

	issueID, err := s.CreateIssue(context.Background(), &types.Issue{
		IssueSlug: "roads-20260101-abcdef",
		TopicKey:  "roads",
		State:     types.IssueActive,
		StartTime: now,
	})
	require.NoError(t, err)

	e := NewEngine(s, s, s, s, DefaultEngineOptions(), nil)
	require.NoError(t, e.Tick(context.Background()))

	_, err = s.GetAggregation(context.Background(), types.SubjectTopic, "roads", types.Window15m, windowStart)
	assert.NoError(t, err)

	_, err = s.GetAggregation(context.Background(), types.SubjectIssue, fmt.Sprintf("%d", issueID), types.Window15m, windowStart)
	assert.NoError(t, err)
}
