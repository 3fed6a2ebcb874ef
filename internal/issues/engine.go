package issues

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clariona/mediawatch/internal/classify"
	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

// EngineOptions bundles the processing.issues.* config keys the tick needs.
type EngineOptions struct {
	ClusterSimilarity  float64
	MinClusterSize     int
	TimeWindow         time.Duration
	MatchThreshold     float64
	VolumeSaturation   int
	ResolvedInactivity time.Duration
	TickInterval       time.Duration
}

// DefaultEngineOptions mirrors the spec's stated defaults.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		ClusterSimilarity:  0.75,
		MinClusterSize:     3,
		TimeWindow:         24 * time.Hour,
		MatchThreshold:     0.75,
		VolumeSaturation:   200,
		ResolvedInactivity: 7 * 24 * time.Hour,
		TickInterval:       5 * time.Minute,
	}
}

// Engine drives the C5 Issue Engine tick (§4.5): new issue discovery via
// clustering, lifecycle evaluation, and priority scoring for every
// non-archived issue.
type Engine struct {
	topics       store.TopicStore
	mentions     store.MentionStore
	issueStore   store.IssueStore
	aggregations store.AggregationStore // optional; nil skips sentiment lookups in priority scoring
	classifier   classify.Classifier
	opts         EngineOptions
	log          *slog.Logger
}

func NewEngine(topics store.TopicStore, mentions store.MentionStore, issueStore store.IssueStore, aggregations store.AggregationStore, classifier classify.Classifier, opts EngineOptions, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{topics: topics, mentions: mentions, issueStore: issueStore, aggregations: aggregations, classifier: classifier, opts: opts, log: log}
}

// Run ticks every opts.TickInterval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.log.Error("issues: tick failed", "error", err)
			}
		}
	}
}

// Tick runs one full pass: discover new issues per active topic (§4.5.1-3),
// then evaluate lifecycle transitions and priority for every non-archived
// issue (§4.5.4-5).
func (e *Engine) Tick(ctx context.Context) error {
	topics, err := e.topics.ActiveTopics(ctx)
	if err != nil {
		return fmt.Errorf("issues: list active topics: %w", err)
	}
	for _, t := range topics {
		if err := e.discoverForTopic(ctx, t); err != nil {
			e.log.Error("issues: discovery failed", "topic", t.TopicKey, "error", err)
		}
	}

	all, err := e.issueStore.AllNonArchivedIssues(ctx)
	if err != nil {
		return fmt.Errorf("issues: list non-archived issues: %w", err)
	}
	now := time.Now().UTC()
	for _, iss := range all {
		if err := e.evaluateLifecycle(ctx, iss, now); err != nil {
			e.log.Error("issues: lifecycle evaluation failed", "issue_id", iss.IssueID, "error", err)
		}
	}
	return nil
}

// discoverForTopic clusters unissued, recently-analyzed mentions under
// topic and either joins each cluster to an existing matchable issue or
// creates a new one (§4.5.1-3).
func (e *Engine) discoverForTopic(ctx context.Context, topic *types.Topic) error {
	candidates, err := e.mentions.RecentlyAnalyzedUnissued(ctx, topic.TopicKey, e.opts.TimeWindow)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	byID := make(map[int64]*types.Mention, len(candidates))
	entryIDs := make([]int64, 0, len(candidates))
	for _, m := range candidates {
		byID[m.EntryID] = m
		entryIDs = append(entryIDs, m.EntryID)
	}

	embByID, err := e.mentions.EmbeddingsFor(ctx, entryIDs)
	if err != nil {
		return err
	}
	clusterMembers := make([]Member, 0, len(embByID))
	for id, emb := range embByID {
		clusterMembers = append(clusterMembers, Member{MentionID: id, Embedding: emb})
	}

	clusters := ClusterMembers(clusterMembers, e.opts.ClusterSimilarity, e.opts.MinClusterSize)
	if len(clusters) == 0 {
		return nil
	}

	existing, err := e.issueStore.ActiveIssuesForTopic(ctx, topic.TopicKey)
	if err != nil {
		return err
	}
	var matchableIssues []*types.Issue
	centroids := make([][]float32, 0, len(existing))
	for _, iss := range existing {
		if Matchable(iss.State) {
			matchableIssues = append(matchableIssues, iss)
			centroids = append(centroids, iss.CentroidEmbedding)
		}
	}

	now := time.Now().UTC()
	for _, c := range clusters {
		if idx, sim, ok := BestMatch(c.Centroid, centroids, e.opts.MatchThreshold); ok {
			iss := matchableIssues[idx]
			if err := e.mergeClusterIntoIssue(ctx, iss, c, sim, now); err != nil {
				e.log.Error("issues: merge failed", "issue_id", iss.IssueID, "error", err)
			}
			continue
		}
		if err := e.createIssue(ctx, topic, c, byID, now); err != nil {
			e.log.Error("issues: create failed", "topic", topic.TopicKey, "error", err)
		}
	}
	return nil
}

func (e *Engine) mergeClusterIntoIssue(ctx context.Context, iss *types.Issue, c Cluster, similarity float64, now time.Time) error {
	links := make([]types.IssueMention, 0, len(c.Members))
	for _, mem := range c.Members {
		links = append(links, types.IssueMention{IssueID: iss.IssueID, MentionID: mem.MentionID, SimilarityScore: similarity, DetectedAt: now})
	}
	if err := e.issueStore.AddIssueMentions(ctx, links); err != nil {
		return err
	}
	iss.CentroidEmbedding = WeightedMeanCentroid(iss.CentroidEmbedding, iss.MentionCount, c.Centroid, len(c.Members))
	iss.MentionCount += len(c.Members)
	iss.LastActivity = now
	return e.issueStore.UpdateIssue(ctx, iss)
}

// createIssue materializes a brand-new issue from a cluster that matched
// nothing existing (§4.5.3): labeled via the classifier's cluster summary,
// falling back to MostFrequentKeyword if that call fails.
func (e *Engine) createIssue(ctx context.Context, topic *types.Topic, c Cluster, byID map[int64]*types.Mention, now time.Time) error {
	var texts []string
	for _, mem := range c.Members {
		if m, ok := byID[mem.MentionID]; ok {
			texts = append(texts, m.Text)
		}
	}

	label := e.labelCluster(ctx, topic, texts)
	slug, err := NewSlug(topic.TopicKey, now)
	if err != nil {
		return err
	}

	issue := &types.Issue{
		IssueSlug:         slug,
		TopicKey:          topic.TopicKey,
		IssueLabel:        label,
		State:             types.IssueEmerging,
		MentionCount:      len(c.Members),
		StartTime:         now,
		LastActivity:      now,
		CentroidEmbedding: c.Centroid,
	}
	id, err := e.issueStore.CreateIssue(ctx, issue)
	if err != nil {
		return err
	}

	links := make([]types.IssueMention, 0, len(c.Members))
	for _, mem := range c.Members {
		links = append(links, types.IssueMention{IssueID: id, MentionID: mem.MentionID, SimilarityScore: 1, DetectedAt: now})
	}
	if err := e.issueStore.AddIssueMentions(ctx, links); err != nil {
		return err
	}
	return e.issueStore.RecordTransition(ctx, types.IssueTransition{IssueID: id, From: "", To: types.IssueEmerging, Reason: "new issue created", At: now})
}

func (e *Engine) labelCluster(ctx context.Context, topic *types.Topic, texts []string) string {
	if e.classifier != nil && len(texts) > 0 {
		sample := texts
		if len(sample) > 5 {
			sample = sample[:5]
		}
		if res, err := e.classifier.SummarizeCluster(ctx, sample); err == nil && res.Label != "" {
			return res.Label
		}
	}
	return MostFrequentKeyword(texts, topic.Keywords)
}

// evaluateLifecycle computes priority and the next lifecycle transition for
// one issue, persisting both (§4.5.4-5).
func (e *Engine) evaluateLifecycle(ctx context.Context, iss *types.Issue, now time.Time) error {
	mentionsLastHour, err := e.issueStore.IssueMentionCountLastHour(ctx, iss.IssueID, now)
	if err != nil {
		return err
	}
	velocityLast6h, err := e.issueStore.IssueVelocity(ctx, iss.IssueID, now.Add(-6*time.Hour), now)
	if err != nil {
		return err
	}
	velocityPrior6h, err := e.issueStore.IssueVelocity(ctx, iss.IssueID, now.Add(-12*time.Hour), now.Add(-6*time.Hour))
	if err != nil {
		return err
	}
	lastMentionAt, hasAny, err := e.issueStore.LastIssueMentionAt(ctx, iss.IssueID)
	if err != nil {
		return err
	}

	var daysSince float64
	if hasAny {
		daysSince = now.Sub(lastMentionAt).Hours() / 24
	}

	weightedSentiment := e.issueWeightedSentiment(ctx, iss, now)
	score, band := Priority(PriorityInput{
		WeightedSentimentScore: weightedSentiment,
		MentionCount:           iss.MentionCount,
		VolumeSaturation:       e.opts.VolumeSaturation,
		HoursSinceLastActivity: now.Sub(iss.LastActivity).Hours(),
	})
	iss.PriorityScore = score
	iss.PriorityBand = types.PriorityBand(band)

	transition, ok := Evaluate(TickInput{
		State:                  iss.State,
		MentionCount:           iss.MentionCount,
		AgeHours:               now.Sub(iss.StartTime).Hours(),
		PriorityScore:          iss.PriorityScore,
		WeightedSentimentScore: weightedSentiment,
		MentionsLastHour:       mentionsLastHour,
		VelocityLast6h:         velocityLast6h,
		VelocityPrior6h:        velocityPrior6h,
		DaysSinceLastMention:   daysSince,
		HasAnyMention:          hasAny,
	})

	if ok {
		from := iss.State
		iss.State = transition.To
		if err := e.issueStore.RecordTransition(ctx, types.IssueTransition{
			IssueID: iss.IssueID, From: from, To: transition.To, Reason: transition.Reason, At: now,
		}); err != nil {
			return err
		}
	}

	return e.issueStore.UpdateIssue(ctx, iss)
}

// issueWeightedSentiment reads the issue's current-hour aggregation row for
// its weighted_sentiment_score input to priority scoring (§4.5.5); the
// aggregation engine (internal/aggregate) is what populates that row, so a
// missing one (e.g. before the first aggregation tick) is treated as neutral.
func (e *Engine) issueWeightedSentiment(ctx context.Context, iss *types.Issue, now time.Time) float64 {
	if e.aggregations == nil {
		return 0
	}
	windowStart := now.Truncate(time.Hour)
	agg, err := e.aggregations.GetAggregation(ctx, types.SubjectIssue, fmt.Sprintf("%d", iss.IssueID), types.Window1h, windowStart)
	if err != nil || agg == nil {
		return 0
	}
	return agg.WeightedSentimentScore
}
