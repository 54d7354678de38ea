package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the stable error classification surfaced to MCP clients.
type Kind string

const (
	KindAuthentication Kind = "authentication_error"
	KindRateLimited    Kind = "rate_limited"
	KindTransient      Kind = "upstream_transient"
	KindClientError    Kind = "upstream_client_error"
	KindValidation     Kind = "validation_error"

	// KindCanceled marks a caller-side abort. It is never an upstream
	// fault, so it stays out of the upstream_* kinds.
	KindCanceled Kind = "request_canceled"
)

// Stage names the pipeline step where an invocation failed.
type Stage string

const (
	StageReceived    Stage = "received"
	StageAuthorized  Stage = "authorized"
	StageRateChecked Stage = "rate_checked"
	StageUpstream    Stage = "upstream_call"
)

// PipelineError is a classified failure of one tool invocation.
type PipelineError struct {
	Stage   Stage
	Kind    Kind
	Message string
	// RetryAfter is set for rate_limited errors: how long the caller
	// should wait before the next attempt in this class.
	RetryAfter time.Duration
	wrapped    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.wrapped }

// KindOf extracts the classification from err, defaulting to
// upstream_client_error for anything unclassified.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindClientError
}
