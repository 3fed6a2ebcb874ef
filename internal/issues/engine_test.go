package issues

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clariona/mediawatch/internal/classify"
	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/store/memstore"
	"github.com/clariona/mediawatch/internal/types"
)

type stubClassifier struct{}

func (stubClassifier) Sentiment(ctx context.Context, text string) (*classify.SentimentResult, error) {
	return &classify.SentimentResult{Label: "negative", Score: -0.5}, nil
}

func (stubClassifier) Emotion(ctx context.Context, text string) (*classify.EmotionResult, error) {
	return &classify.EmotionResult{Distribution: map[string]float64{"anger": 1}}, nil
}

func (stubClassifier) SummarizeCluster(ctx context.Context, sampleTexts []string) (*classify.SummaryResult, error) {
	return &classify.SummaryResult{Label: "pothole reports"}, nil
}

var _ classify.Classifier = stubClassifier{}

// analyzedMention inserts a mention and commits fake analysis onto it so it
// becomes a valid discoverForTopic candidate: sentiment set, embedding set,
// not yet linked to any issue.
func analyzedMention(t *testing.T, s *memstore.Store, text string, embedding []float32, publishedAt time.Time) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), &types.Mention{
		Platform:    "twitter",
		SourceID:    text,
		Text:        text,
		SourceType:  types.SourceCitizen,
		ReachTier:   types.ReachLow,
		PublishedAt: publishedAt,
	})
	require.NoError(t, err)

	require.NoError(t, s.CommitAnalysis(context.Background(), &store.AnalysisResult{
		EntryID:        id,
		SentimentLabel: types.SentimentNegative,
		SentimentScore: -0.5,
		EmotionLabel:   types.EmotionAnger,
		EmotionScore:   0.8,
		Embedding:      embedding,
		Topics:         []types.MentionTopic{{MentionID: id, TopicKey: "roads", TopicConfidence: 0.9}},
	}))
	return id
}

func TestDiscoverForTopicCreatesIssueFromCluster(t *testing.T) {
	s := memstore.New()
	topic := &types.Topic{TopicKey: "roads", DisplayName: "Roads", Keywords: []string{"pothole"}, Active: true}
	s.SeedTopic(topic)

	now := time.Now().UTC()
	sim := []float32{1, 0, 0}
	analyzedMention(t, s, "pothole on main street", sim, now)
	analyzedMention(t, s, "another pothole downtown", sim, now)
	analyzedMention(t, s, "potholes everywhere this week", sim, now)

	e := NewEngine(s, s, s, s, stubClassifier{}, DefaultEngineOptions(), nil)
	require.NoError(t, e.Tick(context.Background()))

	issues, err := s.AllNonArchivedIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "roads", issues[0].TopicKey)
	assert.Equal(t, types.IssueEmerging, issues[0].State)
	assert.Equal(t, 3, issues[0].MentionCount)
	assert.Equal(t, "pothole reports", issues[0].IssueLabel)
}

func TestDiscoverForTopicMergesIntoExistingIssue(t *testing.T) {
	s := memstore.New()
	topic := &types.Topic{TopicKey: "roads", DisplayName: "Roads", Active: true}
	s.SeedTopic(topic)

	now := time.Now().UTC()
	sim := []float32{1, 0, 0}
	issueID, err := s.CreateIssue(context.Background(), &types.Issue{
		IssueSlug:         "roads-20260101-abcdef",
		TopicKey:          "roads",
		State:             types.IssueActive,
		MentionCount:      5,
		StartTime:         now.Add(-48 * time.Hour),
		LastActivity:      now.Add(-time.Hour),
		CentroidEmbedding: sim,
	})
	require.NoError(t, err)

	analyzedMention(t, s, "pothole on main street", sim, now)
	analyzedMention(t, s, "another pothole downtown", sim, now)
	analyzedMention(t, s, "potholes everywhere this week", sim, now)

	e := NewEngine(s, s, s, s, stubClassifier{}, DefaultEngineOptions(), nil)
	require.NoError(t, e.Tick(context.Background()))

	issues, err := s.AllNonArchivedIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, issueID, issues[0].IssueID)
	assert.Equal(t, 8, issues[0].MentionCount)
}

func TestEvaluateLifecycleTransitionsEmergingToActive(t *testing.T) {
	s := memstore.New()
	now := time.Now().UTC()
	issueID, err := s.CreateIssue(context.Background(), &types.Issue{
		IssueSlug:    "roads-20260101-abcdef",
		TopicKey:     "roads",
		State:        types.IssueEmerging,
		MentionCount: 4,
		StartTime:    now.Add(-48 * time.Hour),
		LastActivity: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	e := NewEngine(s, s, s, nil, nil, DefaultEngineOptions(), nil)
	iss, err := s.ActiveIssuesForTopic(context.Background(), "roads")
	require.NoError(t, err)
	require.Len(t, iss, 1)

	require.NoError(t, e.evaluateLifecycle(context.Background(), iss[0], now))

	updated, err := s.ActiveIssuesForTopic(context.Background(), "roads")
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, types.IssueActive, updated[0].State)
	_ = issueID
}

func TestEvaluateLifecycleLeavesFreshEmergingIssueAlone(t *testing.T) {
	s := memstore.New()
	now := time.Now().UTC()
	_, err := s.CreateIssue(context.Background(), &types.Issue{
		IssueSlug:    "roads-20260101-abcdef",
		TopicKey:     "roads",
		State:        types.IssueEmerging,
		MentionCount: 4,
		StartTime:    now,
		LastActivity: now,
	})
	require.NoError(t, err)

	e := NewEngine(s, s, s, nil, nil, DefaultEngineOptions(), nil)
	iss, err := s.ActiveIssuesForTopic(context.Background(), "roads")
	require.NoError(t, err)

	require.NoError(t, e.evaluateLifecycle(context.Background(), iss[0], now))

	updated, err := s.ActiveIssuesForTopic(context.Background(), "roads")
	require.NoError(t, err)
	assert.Equal(t, types.IssueEmerging, updated[0].State)
}
