package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// SourcePolicy is the per-source incremental window policy from §4.2.2.
type SourcePolicy struct {
	Interval               time.Duration
	DefaultLookback        time.Duration
	MaxLookback            time.Duration
	Overlap                time.Duration
	ItemCap                int
	ConsecutiveFailureLimit int
	CollectorTimeout       time.Duration
}

type scheduledCollector struct {
	collector Collector
	policy    SourcePolicy

	mu                sync.Mutex
	nextDue           time.Time
	lastSuccess       time.Time
	consecutiveFails  int
	degraded          bool
}

// Scheduler runs the §4.2.2 Interval Scheduler: each registered collector
// is invoked when due, with a bounded concurrency across all collectors
// (max_collector_workers) so one stuck collector never blocks the others.
type Scheduler struct {
	sink       Sink
	sem        *semaphore.Weighted
	log        *slog.Logger

	mu         sync.Mutex
	collectors []*scheduledCollector
}

// NewScheduler builds a Scheduler capped at maxWorkers concurrent collector
// invocations (processing.max_collector_workers).
func NewScheduler(sink Sink, maxWorkers int, log *slog.Logger) *Scheduler {
	return &Scheduler{sink: sink, sem: semaphore.NewWeighted(int64(maxWorkers)), log: logOrDefault(log)}
}

// Register adds a collector under policy, due immediately on the first tick.
func (s *Scheduler) Register(c Collector, policy SourcePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors = append(s.collectors, &scheduledCollector{collector: c, policy: policy})
}

// Run loops until ctx is cancelled, checking every checkInterval for due
// collectors and dispatching them under the concurrency cap.
func (s *Scheduler) Run(ctx context.Context, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	due := make([]*scheduledCollector, 0, len(s.collectors))
	for _, sc := range s.collectors {
		sc.mu.Lock()
		isDue := sc.nextDue.IsZero() || !now.Before(sc.nextDue)
		sc.mu.Unlock()
		if isDue {
			due = append(due, sc)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sc := range due {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(sc *scheduledCollector) {
			defer s.sem.Release(1)
			defer wg.Done()
			s.runOne(ctx, sc, now)
		}(sc)
	}
	wg.Wait()
}

// runOne invokes one collector's due cycle: compute its window, run it
// under collector_timeout, hand results to the sink, and update its
// schedule state per §4.2.2's failure model.
func (s *Scheduler) runOne(ctx context.Context, sc *scheduledCollector, now time.Time) {
	sc.mu.Lock()
	window := computeWindow(sc.lastSuccess, sc.policy, now, sc.degraded)
	sc.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, sc.policy.CollectorTimeout)
	defer cancel()

	items, err := sc.collector.Collect(runCtx, window, sc.policy.ItemCap)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err != nil || runCtx.Err() != nil {
		sc.consecutiveFails++
		if sc.consecutiveFails >= sc.policy.ConsecutiveFailureLimit {
			sc.degraded = true
		}
		s.log.Warn("scheduler: collector failed", "collector", sc.collector.Name(), "error", err, "consecutive_fails", sc.consecutiveFails)
		sc.nextDue = now.Add(sc.policy.Interval)
		return
	}

	for _, item := range items {
		if err := s.sink.IngestRaw(ctx, item, now); err != nil {
			s.log.Error("scheduler: hand-off failed", "collector", sc.collector.Name(), "error", err)
		}
	}

	sc.consecutiveFails = 0
	sc.degraded = false
	sc.lastSuccess = now
	sc.nextDue = now.Add(sc.policy.Interval)
}

// computeWindow applies §4.2.2's incremental window policy: [last_success -
// overlap, now], clipped so never-run sources (zero lastSuccess) bound
// their first window to now - max_lookback. A degraded collector (after
// ConsecutiveFailureLimit consecutive failures) skips the catch-up window
// entirely and only ever covers the fixed interval, per §4.2.2's failure
// model ("retried, but at the fixed interval only, with no catch-up window").
func computeWindow(lastSuccess time.Time, p SourcePolicy, now time.Time, degraded bool) Window {
	if degraded {
		return Window{Start: now.Add(-p.Interval), End: now}
	}

	if lastSuccess.IsZero() {
		start := now.Add(-p.DefaultLookback)
		if floor := now.Add(-p.MaxLookback); start.Before(floor) {
			start = floor
		}
		return Window{Start: start, End: now}
	}

	start := lastSuccess.Add(-p.Overlap)
	if floor := now.Add(-p.MaxLookback); start.Before(floor) {
		start = floor
	}
	return Window{Start: start, End: now}
}

// Degraded reports whether a registered collector (by name) is currently in
// degraded mode (§4.2.2's failure model).
func (s *Scheduler) Degraded(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.collectors {
		if sc.collector.Name() == name {
			sc.mu.Lock()
			defer sc.mu.Unlock()
			return sc.degraded
		}
	}
	return false
}
