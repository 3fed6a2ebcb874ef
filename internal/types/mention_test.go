package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMentionAnalyzed(t *testing.T) {
	m := &Mention{}
	assert.False(t, m.Analyzed())

	label := SentimentPositive
	m.SentimentLabel = &label
	assert.True(t, m.Analyzed())
}

func TestWindowSizeDuration(t *testing.T) {
	cases := []struct {
		w    WindowSize
		want time.Duration
	}{
		{Window15m, 15 * time.Minute},
		{Window1h, time.Hour},
		{Window24h, 24 * time.Hour},
		{Window7d, 7 * 24 * time.Hour},
		{Window30d, 30 * 24 * time.Hour},
		{WindowSize("bogus"), 0},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.want, tt.w.Duration(), "window %q", tt.w)
	}
}
