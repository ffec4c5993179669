// Package advisor integrates external AI reasoning services for
// recommendation text, with a deterministic fallback so the pipeline
// never stalls on an unreliable provider.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Failure taxonomy. The orchestrator classifies with errors.Is; anything
// that matches none of these is treated as an unexpected integration bug.
var (
	ErrTransport  = errors.New("advisory transport failure")
	ErrMalformed  = errors.New("advisory response malformed")
	ErrCredential = errors.New("advisory credential missing")
)

// Backend is the uniform capability over interchangeable reasoning
// services: ask a structured question, get a structured answer. The
// returned map is decoded from the backend's raw reply.
type Backend interface {
	Ask(ctx context.Context, prompt, systemPrompt string) (map[string]any, error)
	Name() string
}

// Options selects and configures a backend. Selection happens once per
// process; per-request routing is not supported.
type Options struct {
	Provider string // ollama, openai, anthropic

	OllamaURL   string
	OllamaModel string

	OpenAIKey   string
	OpenAIModel string

	AnthropicKey   string
	AnthropicModel string

	Timeout time.Duration
	Retries int
}

// NewBackend resolves the configured provider. Variants that require
// credentials fail here, before any request is attempted.
func NewBackend(opts Options) (Backend, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "ollama":
		return NewOllama(opts.OllamaURL, opts.OllamaModel, opts.Timeout, opts.Retries), nil
	case "openai":
		return NewOpenAI(opts.OpenAIKey, opts.OpenAIModel, opts.Timeout, opts.Retries)
	case "anthropic":
		return NewAnthropic(opts.AnthropicKey, opts.AnthropicModel, opts.Timeout, opts.Retries)
	default:
		return nil, fmt.Errorf("unknown advisory provider: %s", opts.Provider)
	}
}

const defaultRetries = 3

// retrier runs an operation with bounded retry and exponential backoff
// (2^attempt units of backoffBase) plus random jitter in [0, backoffBase)
// to avoid synchronized retry storms. The last failure is propagated;
// fallback policy belongs to the orchestrator, not here.
type retrier struct {
	attempts    int
	backoffBase time.Duration
}

func newRetrier(attempts int) retrier {
	if attempts <= 0 {
		attempts = defaultRetries
	}
	return retrier{attempts: attempts, backoffBase: time.Second}
}

func (r retrier) do(ctx context.Context, backend string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		slog.Warn("advisory request failed",
			"backend", backend,
			"attempt", attempt+1,
			"max_attempts", r.attempts,
			"error", lastErr,
		)

		if attempt == r.attempts-1 {
			break
		}

		delay := time.Duration(math.Pow(2, float64(attempt))) * r.backoffBase
		delay += time.Duration(rand.Float64() * float64(r.backoffBase))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
		}
	}
	return lastErr
}

// decodeStructured extracts the JSON object a model was instructed to
// produce. Hosted models often wrap their answer in markdown fences.
func decodeStructured(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```json"); start != -1 {
		text = text[start+len("```json"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
