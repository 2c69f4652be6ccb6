// Package answer provides clients for the external question-answering
// service. The collaborator is opaque: one question in, one answer out.
package answer

import (
	"context"
	"fmt"
	"time"
)

// Response is the result of a successfully transported question. Text may
// be empty when the collaborator returned no answer field; callers decide
// what to surface in that case.
type Response struct {
	Text      string
	LatencyMs int64
}

// StatusError reports a non-success response status from the collaborator.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("answer service returned status %d", e.Code)
}

// Client is the interface for answering providers.
type Client interface {
	// Ask sends one question and waits for the answer.
	Ask(ctx context.Context, question string) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of answering provider.
type Provider string

const (
	ProviderRemote    Provider = "remote"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates an answer client for the given provider.
func NewClient(provider Provider, endpoint, apiKey, model string, timeout time.Duration) (Client, error) {
	switch provider {
	case ProviderRemote:
		return NewRemote(endpoint, timeout)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown answer provider %q", provider)
	}
}
