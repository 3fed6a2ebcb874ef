package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/clariona/mediawatch/internal/classify"
	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

// Options configures the dispatcher's poll/claim/worker-pool loop, sourced
// from the processing.* config keys (§6.4).
type Options struct {
	PollInterval        time.Duration // processing.poll_interval_seconds
	BatchSize           int           // processing.parallel.batch_size
	MaxWorkers          int           // processing.parallel.max_workers
	ClassifierTimeout   time.Duration // processing.timeouts.classifier_seconds
	StaleAfter          time.Duration // processing.timeouts.stale_claim_seconds, janitor threshold
	JanitorInterval     time.Duration
	MaxTransportRetries int
}

// DefaultOptions mirrors the spec's stated defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval:        2 * time.Second,
		BatchSize:           50,
		MaxWorkers:          10,
		ClassifierTimeout:   120 * time.Second,
		StaleAfter:          5 * time.Minute,
		JanitorInterval:     time.Minute,
		MaxTransportRetries: 3,
	}
}

// Dispatcher is the C4 Analysis Worker Pool: it polls MentionStore for
// claimable batches, fans each mention out to a bounded pool of workers
// running Pipeline, and commits or fails each one per §4.4's three-way
// classifier error policy (§6.2/§8).
type Dispatcher struct {
	mentions store.MentionStore
	pipeline *Pipeline
	opts     Options
	log      *slog.Logger

	sem chan struct{}
}

func NewDispatcher(mentions store.MentionStore, pipeline *Pipeline, opts Options, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		mentions: mentions,
		pipeline: pipeline,
		opts:     opts,
		log:      log,
		sem:      make(chan struct{}, opts.MaxWorkers),
	}
}

// Run drives the poll/claim/dispatch loop and the janitor loop until ctx is
// cancelled, then waits for in-flight workers to drain (cooperative
// shutdown: the pool observes cancellation between phases, §4.4).
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.pollLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.janitorLoop(ctx)
	}()

	wg.Wait()
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.drainWorkers()
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

// pollOnce claims one batch and dispatches each mention to a worker slot,
// blocking only when every worker is busy (bounded concurrency via sem).
func (d *Dispatcher) pollOnce(ctx context.Context) {
	batch, err := d.mentions.ClaimBatch(ctx, d.opts.BatchSize)
	if err != nil {
		d.log.Error("analysis: claim batch failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, m := range batch {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case d.sem <- struct{}{}:
		}
		wg.Add(1)
		go func(m *types.Mention) {
			defer wg.Done()
			defer func() { <-d.sem }()
			d.processOne(ctx, m)
		}(m)
	}
	wg.Wait()
}

// drainWorkers blocks until every worker slot is free, i.e. no workers are
// mid-flight, used on shutdown so commits in progress finish cleanly.
func (d *Dispatcher) drainWorkers() {
	for i := 0; i < cap(d.sem); i++ {
		d.sem <- struct{}{}
	}
	for i := 0; i < cap(d.sem); i++ {
		<-d.sem
	}
}

// janitorLoop periodically reclaims mentions stuck in processing past
// StaleAfter, returning them to pending (§4.4's janitor sub-loop).
func (d *Dispatcher) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.mentions.ReclaimStale(ctx, d.opts.StaleAfter)
			if err != nil {
				d.log.Error("analysis: janitor reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				d.log.Info("analysis: janitor reclaimed stale mentions", "count", n)
			}
		}
	}
}

// processOne runs the pipeline for one claimed mention under
// ClassifierTimeout and applies §6.2/§8's three classifier error policies:
//   - rate_limited: the worker waits the callee's suggested retry-after
//     delay and tries again; these retries do not count against
//     MaxTransportRetries and stop only when ClassifierTimeout expires.
//   - invalid_response: the mention is marked failed immediately, no retry.
//   - transport_error: retried with exponential backoff up to
//     MaxTransportRetries attempts before being marked failed.
func (d *Dispatcher) processOne(ctx context.Context, m *types.Mention) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.ClassifierTimeout)
	defer cancel()

	result, err := d.runWithRetry(callCtx, m)
	if err != nil {
		reason := err.Error()
		if markErr := d.mentions.MarkFailed(ctx, m.EntryID, reason); markErr != nil {
			d.log.Error("analysis: mark failed errored", "entry_id", m.EntryID, "error", markErr)
		}
		d.log.Warn("analysis: mention failed", "entry_id", m.EntryID, "reason", reason)
		return
	}

	if err := d.mentions.CommitAnalysis(ctx, result); err != nil {
		d.log.Error("analysis: commit failed", "entry_id", m.EntryID, "error", err)
		if markErr := d.mentions.MarkFailed(ctx, m.EntryID, err.Error()); markErr != nil {
			d.log.Error("analysis: mark failed after commit error", "entry_id", m.EntryID, "error", markErr)
		}
	}
}

// runWithRetry executes the pipeline, retrying transport_error kinds with
// exponential backoff up to MaxTransportRetries times. invalid_response
// fails immediately. rate_limited is retried after the error's RetryAfter
// delay (1s when none is given) without counting as an attempt.
func (d *Dispatcher) runWithRetry(ctx context.Context, m *types.Mention) (*store.AnalysisResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxTransportRetries; attempt++ {
		result, err := d.pipeline.Run(ctx, m)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := classify.AsKind(err)
		var phaseErr *PhaseError
		if errors.As(err, &phaseErr) {
			kind = classify.AsKind(phaseErr.Err)
		}

		switch kind {
		case classify.ErrInvalidResponse:
			return nil, err
		case classify.ErrRateLimited:
			attempt--
			wait := time.Second
			var cErr *classify.Error
			if errors.As(err, &cErr) && cErr.RetryAfter > 0 {
				wait = time.Duration(cErr.RetryAfter * float64(time.Second))
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		case classify.ErrTransport:
			if attempt == d.opts.MaxTransportRetries {
				return nil, err
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.NextBackOff()):
			}
		default:
			return nil, err
		}
	}
	return nil, lastErr
}
