// Package analysis implements the Analysis Worker Pool (C4, §4.4): a
// polling dispatcher that claims batches of pending mentions and hands
// them to a bounded pool of workers, each running the per-mention
// sentiment/emotion/topic/issue/location/weight pipeline.
package analysis

import (
	"context"
	"fmt"

	"github.com/clariona/mediawatch/internal/classify"
	"github.com/clariona/mediawatch/internal/issues"
	"github.com/clariona/mediawatch/internal/location"
	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/topics"
	"github.com/clariona/mediawatch/internal/types"
	"github.com/clariona/mediawatch/internal/weights"
)

// IssueLinker is Phase I's boundary into the Issue Engine (§4.5): given a
// topic a mention was scored into, decide whether it joins an existing
// active issue. Issue *creation* is never performed here (§4.4 Phase I);
// that is batched by the issue engine's own tick.
type IssueLinker interface {
	LinkMention(ctx context.Context, topicKey string, mentionID int64, embedding []float32) (*issues.LinkResult, error)
}

// SentimentThresholds bundles the sentiment mapping config Phase S needs.
type SentimentThresholds struct {
	Positive float64 // processing.sentiment.positive_threshold, default 0.2
	Negative float64 // processing.sentiment.negative_threshold, default 0.2
}

// Pipeline runs the full per-mention analysis sequence for one worker
// (§4.4's per-record pipeline). It holds no per-call state and is safe
// for concurrent use by multiple workers.
type Pipeline struct {
	classifier classify.Classifier
	topicStore store.TopicStore
	linker     IssueLinker
	locator    *location.Classifier
	sentiment  SentimentThresholds
	topicCfg   topics.Thresholds
}

func NewPipeline(
	classifier classify.Classifier,
	topicStore store.TopicStore,
	linker IssueLinker,
	locator *location.Classifier,
	sentiment SentimentThresholds,
	topicCfg topics.Thresholds,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		topicStore: topicStore,
		linker:     linker,
		locator:    locator,
		sentiment:  sentiment,
		topicCfg:   topicCfg,
	}
}

// PhaseError records which named phase failed, the reason MarkFailed
// records (§4.4 "Commit", on-exception path).
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("phase %s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

// Run executes S -> E -> T -> I -> L -> C for one mention's text and
// returns the full analysis result ready for CommitAnalysis. Strict phase
// order matches §4.4: T depends on S's embedding, I depends on T's topics;
// L and C have no inter-phase dependency but run last for simplicity.
func (p *Pipeline) Run(ctx context.Context, m *types.Mention) (*store.AnalysisResult, error) {
	result := &store.AnalysisResult{EntryID: m.EntryID}

	sentimentRes, err := p.classifier.Sentiment(ctx, m.Text)
	if err != nil {
		return nil, &PhaseError{Phase: "sentiment", Err: err}
	}
	result.SentimentLabel, result.SentimentScore = resolveSentiment(sentimentRes.Score, p.sentiment)
	result.SentimentJustification = sentimentRes.Justification
	result.Embedding = sentimentRes.Embedding
	result.Model = "classifier"

	emotionRes, err := p.classifier.Emotion(ctx, m.Text)
	if err != nil {
		return nil, &PhaseError{Phase: "emotion", Err: err}
	}
	emotionLabel, emotionScore, dist := resolveEmotion(emotionRes.Distribution)
	result.EmotionLabel = emotionLabel
	result.EmotionScore = emotionScore
	result.EmotionDistribution = dist

	activeTopics, err := p.topicStore.ActiveTopics(ctx)
	if err != nil {
		return nil, &PhaseError{Phase: "topics", Err: err}
	}
	scored := topics.ScoreAll(m.Text, result.Embedding, activeTopics)
	retained := topics.Retain(scored, p.topicCfg)
	for _, s := range retained {
		result.Topics = append(result.Topics, types.MentionTopic{
			MentionID:       m.EntryID,
			TopicKey:        s.TopicKey,
			KeywordScore:    s.KeywordScore,
			EmbeddingScore:  s.EmbeddingScore,
			TopicConfidence: s.TopicConfidence,
		})
	}
	if len(retained) > 0 {
		result.MinistryHint = retained[0].TopicKey
	}

	for i, t := range result.Topics {
		linked, err := p.linker.LinkMention(ctx, t.TopicKey, m.EntryID, result.Embedding)
		if err != nil {
			return nil, &PhaseError{Phase: "issue_linkage", Err: err}
		}
		if linked == nil {
			continue
		}
		result.IssueLinks = append(result.IssueLinks, linked.Link)
		// The primary topic (result.Topics[0], highest-confidence per
		// topics.Retain's ordering) is authoritative for the mention's own
		// issue_slug/issue_label/issue_confidence columns (§4.4 Phase I,
		// spec.md's "update the mention's issue_slug, issue_label,
		// issue_confidence to the primary topic's linkage").
		if i == 0 {
			result.IssueSlug = linked.IssueSlug
			result.IssueLabel = linked.IssueLabel
			result.IssueConfidence = linked.Link.SimilarityScore
		}
	}

	if p.locator != nil {
		locRes := p.locator.Classify(m.Text)
		result.LocationLabel = locRes.Label
		conf := locRes.Confidence
		result.LocationConfidence = &conf
	}

	result.InfluenceWeight = weights.Influence(m.SourceType, m.AuthorVerified, m.ReachTier)
	result.ConfidenceWeight = weights.Confidence(result.SentimentScore, result.EmotionScore)

	return result, nil
}

// resolveSentiment maps a classifier score to a three-way label per §4.4
// Phase S: the numeric score, not the classifier's own label string, is
// authoritative.
func resolveSentiment(score float64, t SentimentThresholds) (types.SentimentLabel, float64) {
	switch {
	case score >= t.Positive:
		return types.SentimentPositive, score
	case score <= -t.Negative:
		return types.SentimentNegative, score
	default:
		return types.SentimentNeutral, score
	}
}

// resolveEmotion picks the argmax label and renormalizes the distribution
// if it doesn't sum to 1 within 1e-3 (§4.4 Phase E).
func resolveEmotion(raw map[string]float64) (types.EmotionLabel, float64, map[types.EmotionLabel]float64) {
	dist := make(map[types.EmotionLabel]float64, len(types.Emotions))
	var sum float64
	for _, emo := range types.Emotions {
		v := raw[string(emo)]
		dist[emo] = v
		sum += v
	}

	if sum > 0 && (sum < 0.999 || sum > 1.001) {
		for emo := range dist {
			dist[emo] /= sum
		}
	}

	best := types.EmotionNeutral
	var bestScore float64
	for _, emo := range types.Emotions {
		if dist[emo] > bestScore {
			bestScore = dist[emo]
			best = emo
		}
	}
	return best, bestScore, dist
}
