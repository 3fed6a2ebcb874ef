// Package store defines the Storage contract every component (C2-C5) talks
// to, and the semantic schema from spec §6.1. The relational backend lives
// in internal/store/mysql; internal/store/memstore is an in-process fake
// used by concurrency-property tests, mirroring the teacher's split between
// internal/storage/sqlite (real) and internal/storage/memory (fake).
package store

import (
	"context"
	"time"

	"github.com/clariona/mediawatch/internal/types"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: not found" }

// MentionLookupKey identifies the three-tier lookup order from §4.3 step 2:
// by source_id, else by url, else by content fingerprint.
type MentionLookupKey struct {
	Platform    string
	SourceID    string // preferred key, if non-empty
	URL         string // fallback if SourceID empty
	Fingerprint string // fallback if both SourceID and URL empty
}

// EngagementUpdate carries the mutable engagement fields from a re-ingested
// record (§4.3 step 3: trust the reported value, last-reported-wins).
type EngagementUpdate struct {
	Likes           int64
	Shares          int64
	Comments        int64
	DirectReach     int64
	CumulativeReach int64
}

// MentionStore is the C3/C4 facing surface over the mention table.
type MentionStore interface {
	// FindByKey looks up an existing mention by (platform, source_id),
	// (platform, url) or (platform, fingerprint): the first of those keys
	// that is non-empty. Returns ErrNotFound if no row matches or all three
	// are empty.
	FindByKey(ctx context.Context, key MentionLookupKey) (*types.Mention, error)

	// FindNearDuplicates returns candidate rows with the same platform whose
	// collected_at falls within window of now, for the §4.3 step 4 LCS scan.
	FindNearDuplicates(ctx context.Context, platform string, since time.Time) ([]*types.Mention, error)

	// Insert creates a new mention row with processing_status=pending and
	// all analysis fields null. Returns the assigned EntryID.
	Insert(ctx context.Context, m *types.Mention) (int64, error)

	// UpdateEngagement applies a last-reported-wins merge of eng onto the
	// mention identified by entryID, touching no other field.
	UpdateEngagement(ctx context.Context, entryID int64, eng EngagementUpdate) error

	// ClaimBatch opens a transaction, selects up to batchSize rows with
	// sentiment_label IS NULL AND processing_status = 'pending' under
	// skip-locked semantics, flips them to 'processing' with
	// processing_started_at = now, commits, and returns the claimed rows.
	ClaimBatch(ctx context.Context, batchSize int) ([]*types.Mention, error)

	// CommitAnalysis atomically writes every analysis field plus the
	// terminal processing_status for one mention (§4.4 "Commit").
	CommitAnalysis(ctx context.Context, result *AnalysisResult) error

	// MarkFailed records a terminal processing_status=failed with reason,
	// leaving analysis fields null (§4.4 "Commit", on-exception path).
	MarkFailed(ctx context.Context, entryID int64, reason string) error

	// ReclaimStale rewrites processing rows whose processing_started_at is
	// older than olderThan back to pending (the janitor, §4.4).
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)

	// RecentlyAnalyzedUnissued returns analyzed mentions published within
	// window that have no issue linkage for topicKey yet (§4.5.1 input set).
	RecentlyAnalyzedUnissued(ctx context.Context, topicKey string, window time.Duration) ([]*types.Mention, error)

	// MentionsInWindow returns the mentions among entryIDs (with analysis
	// fields populated) whose published_at falls in [start, end); entryIDs
	// is a topic's or an issue's member set, resolved by the caller (see
	// internal/aggregate).
	MentionsInWindow(ctx context.Context, entryIDs []int64, start, end time.Time) ([]*types.Mention, error)

	// EmbeddingsFor returns the stored embedding vector for each entryID
	// that has one, keyed by entry_id. Missing or not-yet-analyzed entries
	// are simply absent from the map (§4.5.1's clustering input).
	EmbeddingsFor(ctx context.Context, entryIDs []int64) (map[int64][]float32, error)

	// MentionIDsForTopic lists analyzed mentions scored into topicKey whose
	// published_at falls in [start, end), the population internal/aggregate
	// rolls up into a topic's Aggregation rows.
	MentionIDsForTopic(ctx context.Context, topicKey string, start, end time.Time) ([]int64, error)
}

// AnalysisResult is the full set of fields C4 writes in one commit.
type AnalysisResult struct {
	EntryID int64

	SentimentLabel         types.SentimentLabel
	SentimentScore         float64
	SentimentJustification string

	EmotionLabel        types.EmotionLabel
	EmotionScore        float64
	EmotionDistribution map[types.EmotionLabel]float64

	Embedding []float32
	Model     string

	Topics []types.MentionTopic
	MinistryHint string

	IssueSlug       string
	IssueLabel      string
	IssueConfidence float64
	IssueLinks      []types.IssueMention

	LocationLabel      *string
	LocationConfidence *float64

	InfluenceWeight  float64
	ConfidenceWeight float64
}

// TopicStore is the read surface over the (administrator-owned) topic taxonomy.
type TopicStore interface {
	ActiveTopics(ctx context.Context) ([]*types.Topic, error)
	GetTopic(ctx context.Context, topicKey string) (*types.Topic, error)
}

// IssueStore is the C5 facing surface over issues and their membership.
type IssueStore interface {
	ActiveIssuesForTopic(ctx context.Context, topicKey string) ([]*types.Issue, error)
	CreateIssue(ctx context.Context, issue *types.Issue) (int64, error)
	UpdateIssue(ctx context.Context, issue *types.Issue) error
	RecordTransition(ctx context.Context, t types.IssueTransition) error
	AddIssueMentions(ctx context.Context, links []types.IssueMention) error
	AllNonArchivedIssues(ctx context.Context) ([]*types.Issue, error)
	IssueMentionCountLastHour(ctx context.Context, issueID int64, now time.Time) (int, error)
	IssueVelocity(ctx context.Context, issueID int64, windowStart, windowEnd time.Time) (float64, error)
	LastIssueMentionAt(ctx context.Context, issueID int64) (time.Time, bool, error)

	// MentionIDsForIssue lists every mention linked to issueID, the member
	// set internal/aggregate rolls up into an issue's Aggregation rows.
	MentionIDsForIssue(ctx context.Context, issueID int64) ([]int64, error)
}

// AggregationStore is the C5 facing surface over rollups, trends, baselines.
type AggregationStore interface {
	UpsertAggregation(ctx context.Context, a *types.Aggregation) error
	GetAggregation(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time) (*types.Aggregation, error)
	PreviousAggregation(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time) (*types.Aggregation, error)
	UpsertTrend(ctx context.Context, tr *types.Trend) error
	UpsertBaseline(ctx context.Context, b *types.Baseline) error
	GetBaseline(ctx context.Context, topicKey string) (*types.Baseline, error)
	SentimentIndexHistory(ctx context.Context, topicKey string, w types.WindowSize, since time.Time) ([]int, error)
}

// CursorStore persists the C2 dataset-tailer cursor (§4.2.1).
type CursorStore interface {
	GetCursor(ctx context.Context, dataset string) (int64, error)
	SetCursor(ctx context.Context, dataset string, cursor int64) error
}

// ConfigOverrideStore is the store-backed config layer from §6.4/§10.3.
type ConfigOverrideStore interface {
	GetOverride(ctx context.Context, key string) (string, bool, error)
	SetOverride(ctx context.Context, key, value string) error
}

// Store aggregates every facet the core needs. Concrete backends (mysql,
// memstore) implement it in full; components depend on the narrower
// interfaces above so tests can fake just the slice they exercise.
type Store interface {
	MentionStore
	TopicStore
	IssueStore
	AggregationStore
	CursorStore
	ConfigOverrideStore

	Close() error
}
