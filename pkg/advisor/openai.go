package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	openAIURL          = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAI asks a hosted OpenAI chat model.
type OpenAI struct {
	apiKey  string
	model   string
	url     string
	client  *http.Client
	retrier retrier
}

// NewOpenAI creates an OpenAI backend. A missing API key fails here so a
// misconfigured process stops at startup rather than on first request.
func NewOpenAI(apiKey, model string, timeout time.Duration, retries int) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for the openai provider", ErrCredential)
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		url:     openAIURL,
		client:  &http.Client{Timeout: timeout},
		retrier: newRetrier(retries),
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Ask(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	var messages []map[string]string
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	payload := map[string]any{
		"model":    o.model,
		"messages": messages,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}

	var out map[string]any
	err := o.retrier.do(ctx, o.Name(), func() error {
		body, err := postJSON(ctx, o.client, o.url, headers, payload)
		if err != nil {
			return err
		}

		var envelope struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(envelope.Choices) == 0 {
			return fmt.Errorf("%w: empty choices", ErrMalformed)
		}

		out, err = decodeStructured(envelope.Choices[0].Message.Content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
