package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimBatchIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 50; i++ {
		_, err := s.Insert(ctx, &types.Mention{Platform: "twitter", PublishedAt: time.Now()})
		require.NoError(t, err)
	}

	seen := make(map[int64]int)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := s.ClaimBatch(ctx, 5)
				require.NoError(t, err)
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, m := range batch {
					seen[m.EntryID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50, "every mention must be claimed exactly once")
	for id, count := range seen {
		assert.Equal(t, 1, count, "mention %d claimed %d times", id, count)
	}
}

func TestReclaimStaleReturnsProcessingToPending(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Insert(ctx, &types.Mention{Platform: "twitter", SourceID: "stale-1", PublishedAt: time.Now()})
	require.NoError(t, err)

	batch, err := s.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	s.mu.Lock()
	past := time.Now().UTC().Add(-time.Hour)
	s.mentions[id].ProcessingStartedAt = &past
	s.mu.Unlock()

	n, err := s.ReclaimStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := s.FindByKey(ctx, store.MentionLookupKey{Platform: "twitter", SourceID: "stale-1"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, m.ProcessingStatus)
}

func TestInsertIsIdempotentUnderLookupKey(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Insert(ctx, &types.Mention{Platform: "twitter", SourceID: "abc", PublishedAt: time.Now()})
	require.NoError(t, err)

	found, err := s.FindByKey(ctx, store.MentionLookupKey{Platform: "twitter", SourceID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, id, found.EntryID)

	_, err = s.FindByKey(ctx, store.MentionLookupKey{Platform: "twitter", SourceID: "does-not-exist"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
