package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clariona/mediawatch/internal/dedup"
	"github.com/clariona/mediawatch/internal/normalize"
)

// NormalizingSink runs C1 then hands the result to the C3 writer,
// discarding rejected records per §4.3's "Rejection" rule. It is the
// concrete Sink both the tailer and the scheduler write through.
type NormalizingSink struct {
	writer *dedup.Writer
	log    *slog.Logger

	rejected int64
}

func NewNormalizingSink(writer *dedup.Writer, log *slog.Logger) *NormalizingSink {
	return &NormalizingSink{writer: writer, log: logOrDefault(log)}
}

func (s *NormalizingSink) IngestRaw(ctx context.Context, item Item, collectedAt time.Time) error {
	m, err := normalize.Normalize(item.Raw, item.Source, collectedAt)
	if err != nil {
		s.rejected++
		s.log.Warn("ingest: record rejected", "error", err, "platform", item.Source.Platform)
		return nil
	}

	outcome, _, err := s.writer.Ingest(ctx, m)
	if err != nil {
		return fmt.Errorf("ingest: write: %w", err)
	}
	s.log.Debug("ingest: record written", "outcome", outcome, "platform", m.Platform)
	return nil
}

// Rejected returns the count of records discarded by normalization so far.
func (s *NormalizingSink) Rejected() int64 { return s.rejected }

var _ Sink = (*NormalizingSink)(nil)
