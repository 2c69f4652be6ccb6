package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Remote asks the research backend's ask endpoint. This is the default
// provider; the request and response bodies match the endpoint contract
// exactly: {"question": ...} in, {"answer": ...} out.
type Remote struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemote creates a client for the ask endpoint.
func NewRemote(endpoint string, timeout time.Duration) (*Remote, error) {
	if endpoint == "" {
		return nil, errors.New("ask endpoint URL is required")
	}
	return &Remote{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name.
func (c *Remote) Name() string {
	return "remote"
}

type askPayload struct {
	Question string `json:"question"`
}

type askResult struct {
	Answer string `json:"answer"`
}

// Ask posts the question and decodes the answer. Transport and decode
// failures are returned as plain errors; a non-2xx status is returned as a
// StatusError so callers can tell the two apart.
func (c *Remote) Ask(ctx context.Context, question string) (*Response, error) {
	start := time.Now()

	body, err := json.Marshal(askPayload{Question: question})
	if err != nil {
		return nil, fmt.Errorf("failed to encode question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ask request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var result askResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode answer: %w", err)
	}

	return &Response{
		Text:      result.Answer,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
