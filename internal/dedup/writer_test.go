package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/store/memstore"
	"github.com/clariona/mediawatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestInsertsNewMention(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w := New(s, DefaultOptions())

	outcome, id, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", SourceID: "abc", Text: "fuel prices rise sharply across the region",
		CollectedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	assert.NotZero(t, id)
}

func TestIngestUpdatesOnExactKeyMatch(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w := New(s, DefaultOptions())

	_, id, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", SourceID: "abc", Text: "original text", Likes: 5, CollectedAt: time.Now(),
	})
	require.NoError(t, err)

	outcome, updatedID, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", SourceID: "abc", Text: "ignored on merge", Likes: 99, CollectedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)
	assert.Equal(t, id, updatedID)

	m, err := s.FindByKey(ctx, store.MentionLookupKey{Platform: "twitter", SourceID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, int64(99), m.Likes, "engagement is last-reported-wins")
	assert.Equal(t, "original text", m.Text, "text is never overwritten on merge")
}

func TestIngestMatchesByFingerprintPastDupWindow(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w := New(s, DefaultOptions())

	old := time.Now().Add(-48 * time.Hour)
	_, id, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", Text: "levee inspection finds no new cracks", Likes: 1, CollectedAt: old,
	})
	require.NoError(t, err)

	outcome, updatedID, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", Text: "levee inspection finds no new cracks", Likes: 7, CollectedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome, "a record with neither source_id nor url still resolves by fingerprint, even outside DupWindow")
	assert.Equal(t, id, updatedID)
}

func TestIngestMergesNearDuplicateText(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w := New(s, DefaultOptions())

	now := time.Now()
	_, _, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", Text: "fuel prices rise sharply across the region today", CollectedAt: now,
	})
	require.NoError(t, err)

	outcome, _, err := w.Ingest(ctx, &types.Mention{
		Platform: "twitter", Text: "fuel prices rise sharply across the region today!!", CollectedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome, "near-duplicate text merges instead of inserting")
}

func TestIngestShortTextRequiresExactMatch(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w := New(s, DefaultOptions())

	now := time.Now()
	_, _, err := w.Ingest(ctx, &types.Mention{Platform: "twitter", Text: "go go", CollectedAt: now})
	require.NoError(t, err)

	outcome, _, err := w.Ingest(ctx, &types.Mention{Platform: "twitter", Text: "go go!", CollectedAt: now})
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome, "short texts that differ at all are not duplicates")
}

func TestIngestConcurrentSameKeyYieldsOneInsert(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w := New(s, DefaultOptions())

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, _, err := w.Ingest(ctx, &types.Mention{
				Platform: "twitter", SourceID: "race", Text: "same mention", CollectedAt: time.Now(),
			})
			require.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, o := range outcomes {
		if o == Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted, "exactly one concurrent caller inserts, the rest update")
}
