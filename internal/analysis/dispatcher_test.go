package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clariona/mediawatch/internal/classify"
	"github.com/clariona/mediawatch/internal/issues"
	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/store/memstore"
	"github.com/clariona/mediawatch/internal/topics"
	"github.com/clariona/mediawatch/internal/types"
)

func lookupTwitterABC() store.MentionLookupKey {
	return store.MentionLookupKey{Platform: "twitter", SourceID: "abc"}
}

type fakeClassifier struct {
	sentimentScore float64
	failSentiment  error
}

func (f *fakeClassifier) Sentiment(ctx context.Context, text string) (*classify.SentimentResult, error) {
	if f.failSentiment != nil {
		return nil, f.failSentiment
	}
	return &classify.SentimentResult{
		Label:     "positive",
		Score:     f.sentimentScore,
		Embedding: []float32{1, 0, 0},
	}, nil
}

func (f *fakeClassifier) Emotion(ctx context.Context, text string) (*classify.EmotionResult, error) {
	return &classify.EmotionResult{Distribution: map[string]float64{"joy": 0.8, "trust": 0.2}}, nil
}

func (f *fakeClassifier) SummarizeCluster(ctx context.Context, sampleTexts []string) (*classify.SummaryResult, error) {
	return &classify.SummaryResult{Label: "summary"}, nil
}

var _ classify.Classifier = (*fakeClassifier)(nil)

func newTestMention(s *memstore.Store, text string) int64 {
	id, _ := s.Insert(context.Background(), &types.Mention{
		Platform:   "twitter",
		SourceID:   "abc",
		Text:       text,
		SourceType: types.SourceCitizen,
		ReachTier:  types.ReachLow,
		PublishedAt: time.Now().UTC(),
	})
	return id
}

func TestDispatcherCommitsAnalyzedMention(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memstore.New()
	id := newTestMention(s, "roads are terrible here")

	pipeline := NewPipeline(
		&fakeClassifier{sentimentScore: -0.6},
		s,
		issues.NewLinker(s),
		nil,
		SentimentThresholds{Positive: 0.2, Negative: 0.2},
		topics.Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5},
	)

	opts := DefaultOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.JanitorInterval = time.Hour
	d := NewDispatcher(s, pipeline, opts, nil)

	d.pollOnce(ctx)

	m, err := s.FindByKey(ctx, lookupTwitterABC())
	require.NoError(t, err)
	require.NotNil(t, m.SentimentLabel)
	assert.Equal(t, types.SentimentNegative, *m.SentimentLabel)
	assert.Equal(t, types.StatusCompleted, m.ProcessingStatus)
	_ = id
}

func TestDispatcherMarksFailedOnInvalidResponse(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	newTestMention(s, "some text")

	pipeline := NewPipeline(
		&fakeClassifier{failSentiment: &classify.Error{Kind: classify.ErrInvalidResponse}},
		s,
		issues.NewLinker(s),
		nil,
		SentimentThresholds{Positive: 0.2, Negative: 0.2},
		topics.Thresholds{MinScore: 0.2, Confidence: 0.85, KeywordScore: 0.3, EmbeddingScore: 0.5},
	)

	opts := DefaultOptions()
	opts.MaxTransportRetries = 2
	d := NewDispatcher(s, pipeline, opts, nil)

	d.pollOnce(ctx)

	m, err := s.FindByKey(ctx, lookupTwitterABC())
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, m.ProcessingStatus)
	assert.Contains(t, m.ProcessingFailureReason, "invalid_response")
}

func TestJanitorReclaimsStaleMention(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := memstore.New()
	_ = newTestMention(s, "stuck mention")

	_, err := s.ClaimBatch(ctx, 10)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.StaleAfter = 0
	opts.JanitorInterval = 5 * time.Millisecond
	d := NewDispatcher(s, nil, opts, nil)

	done := make(chan struct{})
	go func() {
		d.janitorLoop(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	m, err := s.FindByKey(ctx, lookupTwitterABC())
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, m.ProcessingStatus)
}
