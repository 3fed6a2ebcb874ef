// Package memstore is an in-process fake of store.Store, used by
// concurrency-property tests that need claim-exclusivity and idempotent-
// ingest guarantees without a running MySQL instance, mirroring the
// teacher's internal/storage/memory split from its real sqlite/dolt backends.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

// Store is a mutex-guarded, map-backed store.Store. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	mentions   map[int64]*types.Mention
	embeddings map[int64][]float32
	nextEntry  int64

	topics map[string]*types.Topic
	issues map[int64]*types.Issue
	nextIssue int64

	issueMentions   []types.IssueMention
	issueTransitions []types.IssueTransition
	mentionTopics    []types.MentionTopic

	aggregations map[aggKey]*types.Aggregation
	trends       map[aggKey]*types.Trend
	baselines    map[string]*types.Baseline

	cursors   map[string]int64
	overrides map[string]string
}

type aggKey struct {
	kind  types.SubjectKind
	key   string
	win   types.WindowSize
	start time.Time
}

// New returns an empty fake store.
func New() *Store {
	return &Store{
		mentions:     make(map[int64]*types.Mention),
		embeddings:   make(map[int64][]float32),
		topics:       make(map[string]*types.Topic),
		issues:       make(map[int64]*types.Issue),
		aggregations: make(map[aggKey]*types.Aggregation),
		trends:       make(map[aggKey]*types.Trend),
		baselines:    make(map[string]*types.Baseline),
		cursors:      make(map[string]int64),
		overrides:    make(map[string]string),
	}
}

func (s *Store) Close() error { return nil }

func cloneMention(m *types.Mention) *types.Mention {
	cp := *m
	return &cp
}

// SeedTopic installs a topic directly, for test setup.
func (s *Store) SeedTopic(t *types.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[t.TopicKey] = t
}

func (s *Store) FindByKey(ctx context.Context, key store.MentionLookupKey) (*types.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mentions {
		if m.Platform != key.Platform {
			continue
		}
		if key.SourceID != "" && m.SourceID == key.SourceID {
			return cloneMention(m), nil
		}
		if key.SourceID == "" && key.URL != "" && m.URL == key.URL {
			return cloneMention(m), nil
		}
		if key.SourceID == "" && key.URL == "" && key.Fingerprint != "" && m.Fingerprint == key.Fingerprint {
			return cloneMention(m), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindNearDuplicates(ctx context.Context, platform string, since time.Time) ([]*types.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Mention
	for _, m := range s.mentions {
		if m.Platform == platform && !m.CollectedAt.Before(since) {
			out = append(out, cloneMention(m))
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, m *types.Mention) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntry++
	id := s.nextEntry
	cp := cloneMention(m)
	cp.EntryID = id
	cp.ProcessingStatus = types.StatusPending
	s.mentions[id] = cp
	return id, nil
}

func (s *Store) UpdateEngagement(ctx context.Context, entryID int64, eng store.EngagementUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[entryID]
	if !ok {
		return store.ErrNotFound
	}
	m.Likes = eng.Likes
	m.Shares = eng.Shares
	m.Comments = eng.Comments
	m.DirectReach = eng.DirectReach
	m.CumulativeReach = eng.CumulativeReach
	return nil
}

// ClaimBatch picks pending mentions in entry-id order and flips them to
// processing, matching the exclusivity guarantee the real backend gets from
// SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Store) ClaimBatch(ctx context.Context, batchSize int) ([]*types.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, m := range s.mentions {
		if m.ProcessingStatus == types.StatusPending && m.SentimentLabel == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > batchSize {
		ids = ids[:batchSize]
	}

	now := time.Now().UTC()
	var out []*types.Mention
	for _, id := range ids {
		m := s.mentions[id]
		m.ProcessingStatus = types.StatusProcessing
		m.ProcessingStartedAt = &now
		out = append(out, cloneMention(m))
	}
	return out, nil
}

func (s *Store) CommitAnalysis(ctx context.Context, r *store.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[r.EntryID]
	if !ok {
		return store.ErrNotFound
	}

	sentiment := r.SentimentLabel
	emotion := r.EmotionLabel
	m.SentimentLabel = &sentiment
	m.SentimentScore = &r.SentimentScore
	m.SentimentJustification = r.SentimentJustification
	m.EmotionLabel = &emotion
	m.EmotionScore = &r.EmotionScore
	m.EmotionDistribution = r.EmotionDistribution
	m.InfluenceWeight = &r.InfluenceWeight
	m.ConfidenceWeight = &r.ConfidenceWeight
	m.LocationLabel = r.LocationLabel
	m.LocationConfidence = r.LocationConfidence
	m.MinistryHint = r.MinistryHint
	m.IssueSlug = r.IssueSlug
	m.IssueLabel = r.IssueLabel
	if r.IssueConfidence != 0 {
		ic := r.IssueConfidence
		m.IssueConfidence = &ic
	}

	now := time.Now().UTC()
	m.ProcessingStatus = types.StatusCompleted
	m.ProcessingCompletedAt = &now

	s.embeddings[r.EntryID] = r.Embedding
	s.issueMentions = append(s.issueMentions, r.IssueLinks...)
	s.mentionTopics = append(s.mentionTopics, r.Topics...)
	return nil
}

func (s *Store) MentionIDsForTopic(ctx context.Context, topicKey string, start, end time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, mt := range s.mentionTopics {
		if mt.TopicKey != topicKey {
			continue
		}
		m, ok := s.mentions[mt.MentionID]
		if !ok || m.PublishedAt.Before(start) || !m.PublishedAt.Before(end) {
			continue
		}
		out = append(out, mt.MentionID)
	}
	return out, nil
}

func (s *Store) EmbeddingsFor(ctx context.Context, entryIDs []int64) (map[int64][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]float32, len(entryIDs))
	for _, id := range entryIDs {
		if vec, ok := s.embeddings[id]; ok {
			out[id] = vec
		}
	}
	return out, nil
}

func (s *Store) MarkFailed(ctx context.Context, entryID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[entryID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	m.ProcessingStatus = types.StatusFailed
	m.ProcessingFailedAt = &now
	m.ProcessingFailureReason = reason
	return nil
}

func (s *Store) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for _, m := range s.mentions {
		if m.ProcessingStatus == types.StatusProcessing && m.ProcessingStartedAt != nil && m.ProcessingStartedAt.Before(cutoff) {
			m.ProcessingStatus = types.StatusPending
			m.ProcessingStartedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) RecentlyAnalyzedUnissued(ctx context.Context, topicKey string, window time.Duration) ([]*types.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	since := time.Now().UTC().Add(-window)

	inTopic := make(map[int64]bool)
	for _, mt := range s.mentionTopics {
		if mt.TopicKey == topicKey {
			inTopic[mt.MentionID] = true
		}
	}

	linked := make(map[int64]bool)
	for _, link := range s.issueMentions {
		if iss, ok := s.issues[link.IssueID]; ok && iss.TopicKey == topicKey {
			linked[link.MentionID] = true
		}
	}

	var out []*types.Mention
	for _, m := range s.mentions {
		if m.SentimentLabel == nil || m.PublishedAt.Before(since) || !inTopic[m.EntryID] || linked[m.EntryID] {
			continue
		}
		out = append(out, cloneMention(m))
	}
	return out, nil
}

func (s *Store) MentionsInWindow(ctx context.Context, entryIDs []int64, start, end time.Time) ([]*types.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(entryIDs))
	for _, id := range entryIDs {
		want[id] = true
	}
	var out []*types.Mention
	for id, m := range s.mentions {
		if want[id] && !m.PublishedAt.Before(start) && m.PublishedAt.Before(end) {
			out = append(out, cloneMention(m))
		}
	}
	return out, nil
}

var (
	_ store.MentionStore = (*Store)(nil)
	_ store.Store        = (*Store)(nil)
)
