package issues

import (
	"context"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

// MatchThreshold is the minimum cosine similarity for a single mention to
// join an existing issue during Phase I (§4.5.2's per-mention matching
// path, distinct from the batch clustering that creates new issues).
const MatchThreshold = 0.75

// Linker implements analysis.IssueLinker: Phase I's boundary into the
// Issue Engine. It only ever joins a mention to an already-existing,
// matchable issue; new issue creation is the batch Tick's job (§4.5.1-3).
type Linker struct {
	issues store.IssueStore
}

func NewLinker(issues store.IssueStore) *Linker {
	return &Linker{issues: issues}
}

// LinkResult carries both the raw membership row and the matched issue's
// slug/label, so Phase I can commit a mention's issue_slug, issue_label,
// and issue_confidence columns (§4.4 Phase I) alongside the membership.
type LinkResult struct {
	Link       types.IssueMention
	IssueSlug  string
	IssueLabel string
}

// LinkMention checks the active issues under topicKey for one whose
// centroid is within MatchThreshold of embedding. On a match it appends
// the mention, recomputes the issue's centroid and counters, and returns
// the new IssueMention link plus the matched issue's slug/label. Returns
// (nil, nil) when nothing matches, leaving the mention to be picked up by
// the next clustering tick.
func (l *Linker) LinkMention(ctx context.Context, topicKey string, mentionID int64, embedding []float32) (*LinkResult, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	candidates, err := l.issues.ActiveIssuesForTopic(ctx, topicKey)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var matchable []*types.Issue
	centroids := make([][]float32, 0, len(candidates))
	for _, iss := range candidates {
		if !Matchable(iss.State) {
			continue
		}
		matchable = append(matchable, iss)
		centroids = append(centroids, iss.CentroidEmbedding)
	}
	if len(matchable) == 0 {
		return nil, nil
	}

	idx, similarity, ok := BestMatch(embedding, centroids, MatchThreshold)
	if !ok {
		return nil, nil
	}

	issue := matchable[idx]
	now := time.Now().UTC()
	link := types.IssueMention{
		IssueID:         issue.IssueID,
		MentionID:       mentionID,
		SimilarityScore: similarity,
		DetectedAt:      now,
	}
	if err := l.issues.AddIssueMentions(ctx, []types.IssueMention{link}); err != nil {
		return nil, err
	}

	issue.CentroidEmbedding = WeightedMeanCentroid(issue.CentroidEmbedding, issue.MentionCount, embedding, 1)
	issue.MentionCount++
	issue.LastActivity = now
	if err := l.issues.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}

	return &LinkResult{Link: link, IssueSlug: issue.IssueSlug, IssueLabel: issue.IssueLabel}, nil
}
