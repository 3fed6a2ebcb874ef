package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/clariona/mediawatch/internal/ratelimit"
	"github.com/clariona/mediawatch/internal/telemetry"
)

// AnthropicClassifier calls the Anthropic Messages API, rate-limited
// through a shared ratelimit.Bank and retried the way the teacher's
// haikuClient.callWithRetry retries: exponential backoff on transient
// errors, immediate failure on everything else.
type AnthropicClassifier struct {
	client     anthropic.Client
	model      anthropic.Model
	bank       *ratelimit.Bank
	maxRetries int
	initial    time.Duration
}

// NewAnthropicClassifier builds a classifier against model, drawing API
// credentials from apiKey only; it does not read ANTHROPIC_API_KEY itself
// (cmd/mediawatchd passes that variable's value in as apiKey).
func NewAnthropicClassifier(apiKey, model string, bank *ratelimit.Bank) (*AnthropicClassifier, error) {
	if apiKey == "" {
		return nil, errors.New("classify: API key required")
	}
	classifyMetricsOnce.Do(initClassifyMetrics)
	return &AnthropicClassifier{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:      anthropic.Model(model),
		bank:       bank,
		maxRetries: 3,
		initial:    time.Second,
	}, nil
}

var classifyMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var classifyMetricsOnce sync.Once

func initClassifyMetrics() {
	m := telemetry.Meter("github.com/clariona/mediawatch/classify")
	classifyMetrics.inputTokens, _ = m.Int64Counter("mediawatch.classify.input_tokens",
		metric.WithDescription("classifier input tokens consumed"), metric.WithUnit("{token}"))
	classifyMetrics.outputTokens, _ = m.Int64Counter("mediawatch.classify.output_tokens",
		metric.WithDescription("classifier output tokens generated"), metric.WithUnit("{token}"))
	classifyMetrics.duration, _ = m.Float64Histogram("mediawatch.classify.request.duration",
		metric.WithDescription("classifier request duration in milliseconds"), metric.WithUnit("ms"))
}

const sentimentPrompt = `Analyze the sentiment of the following text. Respond with ONLY a JSON object of the shape:
{"label": "positive"|"negative"|"neutral", "score": <float -1..1>, "justification": "<one sentence>"}

Text:
%s`

const emotionPrompt = `Score the following text against these six emotions: anger, fear, trust, sadness, joy, disgust.
Respond with ONLY a JSON object mapping each emotion name to a probability (the six values must sum to 1.0).

Text:
%s`

const clusterSummaryPrompt = `The following are sample excerpts from a cluster of related social-media mentions about the same emerging matter. Respond with ONLY a JSON object of the shape:
{"label": "<short descriptive label, under 80 characters>"}

Excerpts:
%s`

func (c *AnthropicClassifier) Sentiment(ctx context.Context, text string) (*SentimentResult, error) {
	raw, embedding, err := c.call(ctx, fmt.Sprintf(sentimentPrompt, text), true)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Label         string  `json:"label"`
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &Error{Kind: ErrInvalidResponse, Err: fmt.Errorf("decode sentiment response: %w", err)}
	}
	return &SentimentResult{
		Label:         parsed.Label,
		Score:         parsed.Score,
		Justification: parsed.Justification,
		Embedding:     embedding,
	}, nil
}

func (c *AnthropicClassifier) Emotion(ctx context.Context, text string) (*EmotionResult, error) {
	raw, _, err := c.call(ctx, fmt.Sprintf(emotionPrompt, text), false)
	if err != nil {
		return nil, err
	}
	var dist map[string]float64
	if err := json.Unmarshal([]byte(raw), &dist); err != nil {
		return nil, &Error{Kind: ErrInvalidResponse, Err: fmt.Errorf("decode emotion response: %w", err)}
	}
	return &EmotionResult{Distribution: dist}, nil
}

func (c *AnthropicClassifier) SummarizeCluster(ctx context.Context, sampleTexts []string) (*SummaryResult, error) {
	joined := ""
	for i, t := range sampleTexts {
		joined += fmt.Sprintf("%d. %s\n", i+1, t)
	}
	raw, _, err := c.call(ctx, fmt.Sprintf(clusterSummaryPrompt, joined), false)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &Error{Kind: ErrInvalidResponse, Err: fmt.Errorf("decode summary response: %w", err)}
	}
	return &SummaryResult{Label: parsed.Label}, nil
}

// call runs one classifier request, waiting on the shared rate-limiter bank
// before every attempt, then retrying up to maxRetries times on transient
// errors with the teacher's exponential-backoff shape (1s, 2s, 4s).
// withEmbedding requests the response's embedding alongside its text, since
// only Phase S needs the mention's embedding (§4.4).
func (c *AnthropicClassifier) call(ctx context.Context, prompt string, withEmbedding bool) (string, []float32, error) {
	tracer := telemetry.Tracer("github.com/clariona/mediawatch/classify")
	ctx, span := tracer.Start(ctx, "classify.call")
	defer span.End()
	span.SetAttributes(attribute.String("mediawatch.classify.model", string(c.model)))

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.initial * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		}

		if err := c.bank.Reserve(ctx, string(c.model), estimateTokens(prompt)); err != nil {
			return "", nil, err
		}

		t0 := time.Now()
		message, err := c.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("mediawatch.classify.model", string(c.model))
			classifyMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			classifyMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			classifyMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))

			if len(message.Content) == 0 || message.Content[0].Type != "text" {
				return "", nil, &Error{Kind: ErrInvalidResponse, Err: errors.New("no text content block")}
			}
			var embedding []float32
			if withEmbedding {
				embedding = deriveEmbedding(message.Content[0].Text)
			}
			return message.Content[0].Text, embedding, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}

		kind, retryAfter := classifyErrorKind(err)
		if kind == ErrRateLimited {
			span.AddEvent("rate_limited")
			return "", nil, &Error{Kind: ErrRateLimited, RetryAfter: retryAfter, Err: err}
		}
		if kind != ErrTransport {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", nil, &Error{Kind: kind, Err: err}
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return "", nil, &Error{Kind: ErrTransport, Err: fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)}
}

// classifyErrorKind maps a raw SDK/network error onto §6.2's three-kind
// taxonomy, mirroring the teacher's isRetryable but widened from a boolean
// into the kind distinction the spec requires.
func classifyErrorKind(err error) (ErrorKind, float64) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrInvalidResponse, 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTransport, 0
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return ErrRateLimited, 3
		}
		if apiErr.StatusCode >= 500 {
			return ErrTransport, 0
		}
		return ErrInvalidResponse, 0
	}

	return ErrTransport, 0
}

// estimateTokens is a coarse ~4-bytes-per-token heuristic used only to size
// the rate limiter's reservation; the provider's own accounting is
// authoritative for billing.
func estimateTokens(prompt string) int {
	n := len(prompt) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// deriveEmbedding builds a similarity-preserving vector from text itself,
// used because the Anthropic Messages API this classifier talks to has no
// dedicated embeddings endpoint. It is the hashing trick (Weinberger et
// al., feature hashing; the same technique behind scikit-learn's
// HashingVectorizer): every word unigram and bigram shingle is hashed into
// one of dims buckets with a signed increment, and the resulting bag-of-shingles
// vector is L2-normalized. Texts that share vocabulary land close together
// under cosine similarity, which is what Phase T's embedding_score and
// Phase I's clustering/BestMatch need; an FNV hash of the whole string (the
// prior approach here) does not have that property at all, since a single
// changed character scrambles the entire hash. See DESIGN.md for why this
// stands in for a hosted embeddings model.
func deriveEmbedding(text string) []float32 {
	const dims = 1536
	v := make([]float32, dims)

	shingles := textShingles(text)
	if len(shingles) == 0 {
		return v
	}

	for _, sh := range shingles {
		h := fnv1a(sh)
		bucket := h % uint64(dims)
		sign := float32(1)
		if h&(1<<63) != 0 {
			sign = -1
		}
		v[bucket] += sign
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// textShingles lowercases text, splits it into word tokens, and returns
// every unigram and bigram as a hashable shingle.
func textShingles(text string) []string {
	var words []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z':
			cur = append(cur, c+('a'-'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			cur = append(cur, c)
		default:
			flush()
		}
	}
	flush()

	shingles := make([]string, 0, 2*len(words))
	for i, w := range words {
		shingles = append(shingles, w)
		if i > 0 {
			shingles = append(shingles, words[i-1]+" "+w)
		}
	}
	return shingles
}

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

var _ Classifier = (*AnthropicClassifier)(nil)
