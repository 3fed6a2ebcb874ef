// Package ingest implements the two C2 sub-producers from §4.2: a
// long-lived Dataset Tailer per external dataset, and an Interval
// Scheduler for pull collectors, both handing normalized records to the
// dedup writer.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/clariona/mediawatch/internal/normalize"
)

// Item is one raw record fetched from an external dataset or collector,
// paired with the source descriptor C1 needs to normalize it.
type Item struct {
	Raw    normalize.Raw
	Source normalize.Source
}

// Sink is the C3 boundary every producer hands normalized mentions to.
type Sink interface {
	IngestRaw(ctx context.Context, item Item, collectedAt time.Time) error
}

// Dataset is a paged external data source with a monotonic index.
type Dataset interface {
	// Name identifies the dataset for cursor persistence.
	Name() string
	// FetchAfter returns items with index > cursor, up to limit items, and
	// the highest index actually returned (so the caller can advance the
	// cursor only after a successful hand-off).
	FetchAfter(ctx context.Context, cursor int64, limit int) (items []Item, maxIndex int64, err error)
}

// CursorStore persists a dataset's tailer position (§4.2.1).
type CursorStore interface {
	GetCursor(ctx context.Context, dataset string) (int64, error)
	SetCursor(ctx context.Context, dataset string, cursor int64) error
}

// Collector is a pull-based source invoked on a schedule (§4.2.2).
type Collector interface {
	Name() string
	Collect(ctx context.Context, window Window, itemCap int) ([]Item, error)
}

// Window is the [start, end] range a Collector is asked to cover.
type Window struct {
	Start time.Time
	End   time.Time
}

func logOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
