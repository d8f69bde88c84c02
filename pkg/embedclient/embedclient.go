// Package embedclient wraps the external embedding service behind a
// single vectorize operation with its own bounded retry loop,
// independent of the queue-level retry policy in pkg/retry.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/tepantlatia/ingestor/pkg/metrics"
)

const (
	maxInputChars = 8000
	maxAttempts   = 3
	attemptSleep  = 2 * time.Second
)

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for model, authenticated with apiKey. baseURL
// defaults to the OpenAI embeddings endpoint when empty.
func New(apiKey, model, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/embeddings"
	}
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed vectorizes text, trimmed and truncated to maxInputChars. It
// retries up to maxAttempts times with a fixed sleep between
// attempts, returning (nil, false) once exhausted. This loop never
// reports a transient signal to the scheduler; from the queue's
// perspective the call either succeeds or it doesn't.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, bool) {
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > maxInputChars {
		text = string(runes[:maxInputChars])
	}
	if text == "" {
		return nil, false
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			metrics.EmbeddingsGeneratedTotal.Inc()
			return vec, true
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				metrics.EmbeddingFailuresTotal.Inc()
				return nil, false
			case <-time.After(attemptSleep):
			}
		}
	}
	_ = lastErr
	metrics.EmbeddingFailuresTotal.Inc()
	return nil, false
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.Model, Input: text})
	if err != nil {
		return nil, errors.Wrap(err, "marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build embed request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call embedding service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned HTTP %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode embed response")
	}
	if len(out.Data) == 0 {
		return nil, errors.New("embedding response carried no data")
	}
	return out.Data[0].Embedding, nil
}
