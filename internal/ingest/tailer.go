package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Tailer runs the §4.2.1 Dataset Tailer loop: fetch items past the
// persisted cursor, hand each to the sink, advance the cursor only after
// every item in the batch hands off successfully.
type Tailer struct {
	dataset  Dataset
	cursors  CursorStore
	sink     Sink
	interval time.Duration
	pageSize int
	log      *slog.Logger
}

func NewTailer(dataset Dataset, cursors CursorStore, sink Sink, interval time.Duration, pageSize int, log *slog.Logger) *Tailer {
	return &Tailer{dataset: dataset, cursors: cursors, sink: sink, interval: interval, pageSize: pageSize, log: logOrDefault(log)}
}

// Run loops until ctx is cancelled, ticking every t.interval. Each tick is
// one call to Tick; errors are logged and the loop continues (ingestion
// never halts the pipeline, §4.2.2's failure model applied uniformly here).
func (t *Tailer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Tick(ctx); err != nil {
				t.log.Error("tailer: tick failed", "dataset", t.dataset.Name(), "error", err)
			}
		}
	}
}

// Tick performs one fetch-and-handoff cycle. Crash semantics: if the
// process dies mid-tick, the cursor was never advanced, so the next run
// re-fetches the same page; duplicates at the boundary are absorbed by C3
// idempotence (§4.2.1).
func (t *Tailer) Tick(ctx context.Context) error {
	cursor, err := t.cursors.GetCursor(ctx, t.dataset.Name())
	if err != nil {
		return err
	}

	items, maxIndex, err := t.dataset.FetchAfter(ctx, cursor, t.pageSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, item := range items {
		if err := t.sink.IngestRaw(ctx, item, now); err != nil {
			return err
		}
	}

	return t.cursors.SetCursor(ctx, t.dataset.Name(), maxIndex)
}
