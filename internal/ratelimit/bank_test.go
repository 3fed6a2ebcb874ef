package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveGrantsWithinBudget(t *testing.T) {
	b := NewBank(600) // 10 tokens/sec
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := b.Reserve(ctx, "haiku", 5)
	require.NoError(t, err)
}

func TestReserveRespectsPerModelOverride(t *testing.T) {
	b := NewBank(60)
	b.SetModelBudget("haiku", 6000)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := b.Reserve(ctx, "haiku", 50)
	require.NoError(t, err)
}

func TestReserveCancelledContextReturnsErr(t *testing.T) {
	b := NewBank(6) // 0.1 tokens/sec: one token every 10s
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Exhaust the burst then ask for more than is available in the window.
	_ = b.Reserve(context.Background(), "slow", 6)
	err := b.Reserve(ctx, "slow", 6)
	assert.Error(t, err)
}
