// Package auth gates every tool invocation on a shared client credential.
// The gateway holds a single expected credential; callers present theirs
// per request and nothing proceeds past the gate without a match.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// ErrMissingCredential is returned when a request carries no credential.
var ErrMissingCredential = errors.New("missing client credential")

// ErrBadCredential is returned when the presented credential does not
// match the configured one.
var ErrBadCredential = errors.New("invalid client credential")

// Gate validates presented client credentials against the configured
// expected value. Comparison is constant time so response timing leaks
// nothing about the expected credential.
type Gate struct {
	expected []byte
}

// NewGate builds a gate around the expected credential. An empty expected
// credential is a configuration error surfaced at startup, not here.
func NewGate(expected string) *Gate {
	return &Gate{expected: []byte(expected)}
}

// Check validates a presented credential and returns the caller identity
// used for rate limiting and audit. The identity is a digest prefix, never
// the raw credential, so logs and limiter keys cannot leak it.
func (g *Gate) Check(credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	if subtle.ConstantTimeCompare([]byte(credential), g.expected) != 1 {
		return "", ErrBadCredential
	}
	return CallerID(credential), nil
}

// CallerID derives a stable, non-reversible identity from a credential.
func CallerID(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:4])
}

// FromRequest extracts the client credential from an HTTP request. It
// accepts an Authorization header (with or without the Bearer scheme) or
// an X-API-Key header, in that order.
func FromRequest(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		if rest, ok := strings.CutPrefix(v, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
