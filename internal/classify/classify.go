// Package classify is the rate-limited classifier service boundary from
// §6.2: sentiment (with its embedding), emotion, and cluster-summary calls go through a single
// Classifier interface backed by github.com/anthropics/anthropic-sdk-go,
// generalizing the teacher's internal/compact haikuClient (a single-purpose
// Claude Haiku caller) into the three-call-shape surface the analysis
// pipeline needs.
package classify

import (
	"context"
	"errors"
)

// ErrorKind classifies a failed classifier call per §6.2.
type ErrorKind string

const (
	ErrRateLimited    ErrorKind = "rate_limited"
	ErrInvalidResponse ErrorKind = "invalid_response"
	ErrTransport      ErrorKind = "transport_error"
)

// Error wraps a classifier failure with its §6.2 kind and, for
// rate_limited, the callee's suggested retry delay.
type Error struct {
	Kind       ErrorKind
	RetryAfter float64 // seconds, only meaningful for ErrRateLimited
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// AsKind extracts the ErrorKind from err, defaulting to transport_error for
// anything unrecognized (§6.2's catch-all retry policy).
func AsKind(err error) ErrorKind {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind
	}
	return ErrTransport
}

// SentimentResult is Phase S's classifier response (§4.4).
type SentimentResult struct {
	Label         string
	Score         float64
	Justification string
	Embedding     []float32
}

// EmotionResult is Phase E's classifier response (§4.4).
type EmotionResult struct {
	Distribution map[string]float64
}

// SummaryResult is the cluster-label summary the issue engine requests
// during new issue creation (§4.5.3).
type SummaryResult struct {
	Label string
}

// Classifier is the C4/C5-facing surface over the LLM provider.
type Classifier interface {
	Sentiment(ctx context.Context, text string) (*SentimentResult, error)
	Emotion(ctx context.Context, text string) (*EmotionResult, error)
	SummarizeCluster(ctx context.Context, sampleTexts []string) (*SummaryResult, error)
}
