package memstore

import (
	"context"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

func (s *Store) UpsertAggregation(ctx context.Context, a *types.Aggregation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := aggKey{kind: a.SubjectKind, key: a.SubjectKey, win: a.WindowSize, start: a.WindowStart}
	cp := *a
	s.aggregations[k] = &cp
	return nil
}

func (s *Store) GetAggregation(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time) (*types.Aggregation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aggregations[aggKey{kind: kind, key: key, win: w, start: windowStart}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// PreviousAggregation scans for the most recent window strictly before
// windowStart, a linear search appropriate to the small test fixtures this
// fake serves.
func (s *Store) PreviousAggregation(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time) (*types.Aggregation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *types.Aggregation
	for k, a := range s.aggregations {
		if k.kind != kind || k.key != key || k.win != w {
			continue
		}
		if a.WindowStart.Before(windowStart) && (best == nil || a.WindowStart.After(best.WindowStart)) {
			best = a
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *Store) UpsertTrend(ctx context.Context, tr *types.Trend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := aggKey{kind: tr.SubjectKind, key: tr.SubjectKey, win: tr.WindowSize, start: tr.WindowStart}
	cp := *tr
	s.trends[k] = &cp
	return nil
}

func (s *Store) UpsertBaseline(ctx context.Context, b *types.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.baselines[b.TopicKey] = &cp
	return nil
}

func (s *Store) GetBaseline(ctx context.Context, topicKey string) (*types.Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.baselines[topicKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) SentimentIndexHistory(ctx context.Context, topicKey string, w types.WindowSize, since time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*types.Aggregation
	for k, a := range s.aggregations {
		if k.kind != types.SubjectTopic || k.key != topicKey || k.win != w {
			continue
		}
		if !a.WindowStart.Before(since) {
			matched = append(matched, a)
		}
	}
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].WindowStart.Before(matched[i].WindowStart) {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}
	out := make([]int, len(matched))
	for i, a := range matched {
		out[i] = a.SentimentIndex
	}
	return out, nil
}

func (s *Store) GetCursor(ctx context.Context, dataset string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[dataset], nil
}

func (s *Store) SetCursor(ctx context.Context, dataset string, cursor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[dataset] = cursor
	return nil
}

func (s *Store) GetOverride(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.overrides[key]
	return v, ok, nil
}

func (s *Store) SetOverride(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = value
	return nil
}

var (
	_ store.AggregationStore   = (*Store)(nil)
	_ store.CursorStore        = (*Store)(nil)
	_ store.ConfigOverrideStore = (*Store)(nil)
)
