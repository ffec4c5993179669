package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "mistral:7b"
)

// Ollama asks a locally hosted model. No credentials are required, which
// makes it the default provider.
type Ollama struct {
	url     string
	model   string
	client  *http.Client
	retrier retrier
}

// NewOllama creates an Ollama backend. Empty url/model fall back to the
// local defaults.
func NewOllama(url, model string, timeout time.Duration, retries int) *Ollama {
	if url == "" {
		url = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		url:     url,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		retrier: newRetrier(retries),
	}
}

func (o *Ollama) Name() string { return "ollama" }

// Ask sends the prompt in JSON-format mode and decodes the model's
// structured reply.
func (o *Ollama) Ask(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	payload := map[string]any{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	if systemPrompt != "" {
		payload["system"] = systemPrompt
	}

	var out map[string]any
	err := o.retrier.do(ctx, o.Name(), func() error {
		body, err := postJSON(ctx, o.client, o.url+"/api/generate", nil, payload)
		if err != nil {
			return err
		}

		var envelope struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		out, err = decodeStructured(envelope.Response)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// postJSON performs one JSON POST and returns the response body.
// Transport failures and non-2xx statuses map to ErrTransport.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
