package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu    sync.Mutex
	items []Item
}

func (f *fakeSink) IngestRaw(ctx context.Context, item Item, collectedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeDataset struct {
	name  string
	items map[int64]Item // index -> item
}

func (d *fakeDataset) Name() string { return d.name }

func (d *fakeDataset) FetchAfter(ctx context.Context, cursor int64, limit int) ([]Item, int64, error) {
	var out []Item
	max := cursor
	for idx := cursor + 1; idx <= cursor+int64(limit)+100; idx++ {
		item, ok := d.items[idx]
		if !ok {
			continue
		}
		out = append(out, item)
		if idx > max {
			max = idx
		}
		if len(out) >= limit {
			break
		}
	}
	return out, max, nil
}

type memCursors struct {
	mu      sync.Mutex
	cursors map[string]int64
}

func newMemCursors() *memCursors { return &memCursors{cursors: make(map[string]int64)} }

func (c *memCursors) GetCursor(ctx context.Context, dataset string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[dataset], nil
}

func (c *memCursors) SetCursor(ctx context.Context, dataset string, cursor int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[dataset] = cursor
	return nil
}

func TestTailerTickAdvancesCursorOnlyAfterHandoff(t *testing.T) {
	ctx := context.Background()
	ds := &fakeDataset{name: "twitter-firehose", items: map[int64]Item{
		1: {}, 2: {}, 3: {},
	}}
	cursors := newMemCursors()
	sink := &fakeSink{}
	tailer := NewTailer(ds, cursors, sink, time.Second, 10, nil)

	require.NoError(t, tailer.Tick(ctx))
	assert.Equal(t, 3, sink.count())

	cursor, err := cursors.GetCursor(ctx, "twitter-firehose")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cursor)

	require.NoError(t, tailer.Tick(ctx))
	assert.Equal(t, 3, sink.count(), "no new items past cursor, nothing re-ingested")
}

type fakeCollector struct {
	name string
	fn   func(ctx context.Context, w Window) ([]Item, error)
}

func (c *fakeCollector) Name() string { return c.name }
func (c *fakeCollector) Collect(ctx context.Context, w Window, itemCap int) ([]Item, error) {
	return c.fn(ctx, w)
}

func TestSchedulerDispatchesDueCollectors(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	sched := NewScheduler(sink, 4, nil)

	collected := make(chan struct{}, 1)
	c := &fakeCollector{name: "rss", fn: func(ctx context.Context, w Window) ([]Item, error) {
		collected <- struct{}{}
		return []Item{{}}, nil
	}}
	sched.Register(c, SourcePolicy{
		Interval: time.Hour, DefaultLookback: 72 * time.Hour, MaxLookback: 14 * 24 * time.Hour,
		Overlap: 2 * time.Hour, ItemCap: 10, ConsecutiveFailureLimit: 3, CollectorTimeout: time.Second,
	})

	sched.dispatchDue(ctx)

	select {
	case <-collected:
	case <-time.After(time.Second):
		t.Fatal("collector was never invoked")
	}
	assert.Equal(t, 1, sink.count())
}

func TestSchedulerDegradesAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	sched := NewScheduler(sink, 4, nil)

	c := &fakeCollector{name: "flaky", fn: func(ctx context.Context, w Window) ([]Item, error) {
		return nil, assertError{}
	}}
	policy := SourcePolicy{
		Interval: time.Millisecond, DefaultLookback: 72 * time.Hour, MaxLookback: 14 * 24 * time.Hour,
		Overlap: 2 * time.Hour, ItemCap: 10, ConsecutiveFailureLimit: 2, CollectorTimeout: time.Second,
	}
	sched.Register(c, policy)

	sched.dispatchDue(ctx)
	assert.False(t, sched.Degraded("flaky"))

	time.Sleep(2 * time.Millisecond)
	sched.dispatchDue(ctx)
	assert.True(t, sched.Degraded("flaky"), "two consecutive failures at limit=2 trips degraded mode")
}

func TestComputeWindowClipsToMaxLookbackForNeverRun(t *testing.T) {
	now := time.Now()
	p := SourcePolicy{DefaultLookback: 30 * 24 * time.Hour, MaxLookback: 14 * 24 * time.Hour, Overlap: time.Hour}
	w := computeWindow(time.Time{}, p, now, false)
	assert.WithinDuration(t, now.Add(-14*24*time.Hour), w.Start, time.Second)
}

func TestComputeWindowDegradedSkipsCatchUp(t *testing.T) {
	now := time.Now()
	lastSuccess := now.Add(-30 * 24 * time.Hour)
	p := SourcePolicy{Interval: time.Hour, MaxLookback: 14 * 24 * time.Hour, Overlap: time.Hour}
	w := computeWindow(lastSuccess, p, now, true)
	assert.WithinDuration(t, now.Add(-time.Hour), w.Start, time.Second)
}

type assertError struct{}

func (assertError) Error() string { return "collector failure" }
