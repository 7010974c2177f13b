// Package llm wraps the hosted models used by the pipeline behind a single
// text-in, text-out interface. Every failure is reported as a *ServiceError.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Image is an image attached to a model request
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is a single prompt sent to a model
type Request struct {
	// System is an optional instruction placed ahead of the prompt
	System string
	Prompt string
	Images []Image
}

// Model defines the interface for model providers
type Model interface {
	// Generate sends the request and returns the model's text reply
	Generate(ctx context.Context, req Request) (string, error)
	// Name returns the provider and model, e.g. "gemini/gemini-1.5-pro"
	Name() string
	// Close releases resources held by the provider
	Close() error
}

// ErrorKind classifies a ServiceError
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindTimeout   ErrorKind = "timeout"
	KindCanceled  ErrorKind = "canceled"
	KindStatus    ErrorKind = "status"
	KindBlocked   ErrorKind = "blocked"
	KindEmpty     ErrorKind = "empty"
)

// ServiceError is returned when a provider could not produce a reply
type ServiceError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call may succeed
func (e *ServiceError) Retryable() bool {
	switch e.Kind {
	case KindAuth, KindBlocked:
		return false
	case KindStatus:
		// Other 4xx responses fail the same way again
		return e.StatusCode < 400 || e.StatusCode >= 500
	default:
		return true
	}
}

// statusError classifies a non-success HTTP response
func statusError(provider string, code int, body string) *ServiceError {
	kind := KindStatus
	switch {
	case code == 401 || code == 403:
		kind = KindAuth
	case code == 429:
		kind = KindRateLimit
	case code == 408 || code == 504:
		kind = KindTimeout
	}
	return &ServiceError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: code,
		Err:        fmt.Errorf("unexpected response: %s", truncate(body, 300)),
	}
}

// transportError classifies a failure to complete the round trip
func transportError(provider string, err error) *ServiceError {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &ServiceError{Provider: provider, Kind: kind, Err: err}
}

func emptyError(provider string) *ServiceError {
	return &ServiceError{Provider: provider, Kind: KindEmpty, Err: errors.New("no content in response")}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
