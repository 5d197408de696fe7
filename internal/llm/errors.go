package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNoCredential is returned when a provider is built without an API key.
	ErrNoCredential = errors.New("llm: no api key configured")
	// ErrUnknownProvider is returned for provider names with no defaults.
	ErrUnknownProvider = errors.New("llm: unknown provider")
	// ErrEmptyResponse is returned when the model answers with no usable text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
	KindEmpty     ErrorKind = "empty"
	KindTimeout   ErrorKind = "timeout"
)

// ProviderError describes a failed call to a model provider.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] %s (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindStatus:
		return shouldRetry(e.StatusCode)
	default:
		return false
	}
}

// classify wraps err from the go-openai client into a ProviderError.
func classify(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	out := &ProviderError{Provider: provider, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	var urlErr *url.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		out.Kind = KindTimeout
	case errors.Is(err, ErrEmptyResponse):
		out.Kind = KindEmpty
	case errors.As(err, &apiErr):
		out.Kind = KindStatus
		out.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		out.Kind = KindStatus
		out.StatusCode = reqErr.HTTPStatusCode
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		out.Kind = KindNetwork
	default:
		out.Kind = KindMalformed
	}

	return out
}

// Outcome is a short label for metrics and logs.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return "error"
}
