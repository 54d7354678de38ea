package maximo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a classified failure from the Maximo REST API. Transient
// errors (network failures, timeouts, 5xx, 429) are eligible for retry;
// everything else propagates immediately.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Transient  bool
	wrapped    error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("maximo api error (%d): %s", e.StatusCode, e.Message)
	}
	return "maximo api error: " + e.Message
}

func (e *APIError) Unwrap() error { return e.wrapped }

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// statusError builds an APIError from an HTTP error response, pulling the
// upstream-provided detail out of the Maximo error envelope when present.
func statusError(status int, body []byte) *APIError {
	msg := string(body)
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"Error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		msg = "authentication failed: " + msg
	case status == http.StatusNotFound:
		msg = "resource not found: " + msg
	case status == http.StatusBadRequest:
		msg = "validation error: " + msg
	}

	return &APIError{
		StatusCode: status,
		Message:    msg,
		Body:       string(body),
		Transient:  status >= 500 || status == http.StatusTooManyRequests,
	}
}

// transportError classifies a round-trip failure. Context cancellation is
// passed through untouched so callers can distinguish caller-side aborts.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := "network error connecting to Maximo"
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		msg = "request timed out"
	} else if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &APIError{Message: msg, Transient: true, wrapped: err}
}

// shapeError marks a response whose JSON did not match the declared
// entity schema. Never retried.
func shapeError(entity Entity, err error) *APIError {
	return &APIError{
		Message: fmt.Sprintf("unexpected response shape for %s: %v", entity, err),
		wrapped: err,
	}
}
