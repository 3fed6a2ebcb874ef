// Package ratelimit implements the §4.4 "Rate control" token-bucket bank:
// one bucket per classifier model, shared across all analysis workers,
// gating every classifier call against its per-model TPM budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bank is a mutex-protected map of per-model token buckets. It is advisory,
// in-process, shared state (§5 "Shared-resource policy") with no durability
// requirement: a restart simply starts every bucket full again.
type Bank struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	// tpm is the default tokens-per-minute budget for models with no
	// explicit override, sourced from config key
	// processing.rate_limit.default_tpm.
	tpm int
}

// NewBank creates a bank whose buckets default to defaultTPM tokens/minute
// unless overridden per model via SetModelBudget.
func NewBank(defaultTPM int) *Bank {
	return &Bank{buckets: make(map[string]*rate.Limiter), tpm: defaultTPM}
}

// SetModelBudget installs (or replaces) the bucket for model, budgeted at
// tpm tokens per minute with a burst equal to one minute's budget.
func (b *Bank) SetModelBudget(model string, tpm int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets[model] = rate.NewLimiter(rate.Limit(float64(tpm)/60.0), tpm)
}

func (b *Bank) bucket(model string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	lim, ok := b.buckets[model]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(b.tpm)/60.0), b.tpm)
		b.buckets[model] = lim
	}
	return lim
}

// Reserve atomically reserves estimatedTokens from model's bucket. When the
// bucket lacks capacity, the calling worker sleeps in 1s increments (per
// spec) until tokens are available or ctx is cancelled; it never blocks
// other workers' buckets and never blocks the dispatcher, which lives in a
// different goroutine entirely.
func (b *Bank) Reserve(ctx context.Context, model string, estimatedTokens int) error {
	lim := b.bucket(model)
	for {
		r := lim.ReserveN(time.Now(), estimatedTokens)
		if !r.OK() {
			// estimatedTokens exceeds burst size, so no reservation can
			// ever succeed; let the call through without reserving any
			// tokens rather than wait forever.
			r.Cancel()
			return nil
		}
		delay := r.Delay()
		if delay <= 0 {
			return nil
		}
		r.Cancel()
		wait := time.Second
		if delay < wait {
			wait = delay
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
