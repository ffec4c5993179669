package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	anthropicURL          = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-3-haiku-20240307"
)

// Anthropic asks a hosted Anthropic model.
type Anthropic struct {
	apiKey  string
	model   string
	url     string
	client  *http.Client
	retrier retrier
}

// NewAnthropic creates an Anthropic backend, failing fast when the API
// key is absent.
func NewAnthropic(apiKey, model string, timeout time.Duration, retries int) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is required for the anthropic provider", ErrCredential)
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Anthropic{
		apiKey:  apiKey,
		model:   model,
		url:     anthropicURL,
		client:  &http.Client{Timeout: timeout},
		retrier: newRetrier(retries),
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Ask(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	payload := map[string]any{
		"model":      a.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if systemPrompt != "" {
		payload["system"] = systemPrompt
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var out map[string]any
	err := a.retrier.do(ctx, a.Name(), func() error {
		body, err := postJSON(ctx, a.client, a.url, headers, payload)
		if err != nil {
			return err
		}

		var envelope struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(envelope.Content) == 0 {
			return fmt.Errorf("%w: empty content", ErrMalformed)
		}

		out, err = decodeStructured(envelope.Content[0].Text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
