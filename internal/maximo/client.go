package maximo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultPageSize    = 100
)

// Config holds the upstream connection settings.
type Config struct {
	// BaseURL is the Maximo root, e.g. https://maximo.example.com/maximo.
	BaseURL string
	// APIKey is sent as the apikey header on every domain request.
	APIKey string
	// MaxAuth is the credential for the whoami health probe, which uses
	// the maxauth header instead of apikey.
	MaxAuth string
	// Timeout bounds each HTTP attempt. Defaults to 30s.
	Timeout time.Duration
	// MaxAttempts bounds retries for transient failures. Defaults to 3.
	MaxAttempts int
}

// Client talks to the Maximo OSLC REST API. It keeps a bounded pool of
// persistent connections to the upstream host and retries transient
// failures with exponential backoff.
type Client struct {
	base        *url.URL
	apiKey      string
	maxAuth     string
	http        *http.Client
	maxAttempts int
}

// NewClient validates cfg and builds a pooled client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		base:    base,
		apiKey:  cfg.APIKey,
		maxAuth: cfg.MaxAuth,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		maxAttempts: attempts,
	}, nil
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Record pairs a normalized entity payload with its OSLC resource id,
// which follow-up Update calls need.
type Record struct {
	Data       json.RawMessage
	ResourceID string
}

// Fetch retrieves the single record matching where. An empty result set
// maps to a 404 APIError.
func (c *Client) Fetch(ctx context.Context, entity Entity, where *Where) (*Record, error) {
	res, ok := resources[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}

	body, err := c.do(ctx, http.MethodGet, res.path, oslcQuery(res.selectFields, where, 0), nil, requestOpts{})
	if err != nil {
		return nil, err
	}

	members, err := decodeEnvelope(entity, body)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("resource not found: no %s matched %s", entity, where.String()),
		}
	}

	data, err := normalizeMember(entity, members[0])
	if err != nil {
		return nil, err
	}
	return &Record{Data: data, ResourceID: resourceID(members[0])}, nil
}

// Search retrieves up to pageSize records matching where, normalized into
// the entity's declared output shape.
func (c *Client) Search(ctx context.Context, entity Entity, where *Where, pageSize int) (json.RawMessage, int, error) {
	res, ok := resources[entity]
	if !ok {
		return nil, 0, fmt.Errorf("unknown entity %q", entity)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	body, err := c.do(ctx, http.MethodGet, res.path, oslcQuery(res.selectFields, where, pageSize), nil, requestOpts{})
	if err != nil {
		return nil, 0, err
	}

	members, err := decodeEnvelope(entity, body)
	if err != nil {
		return nil, 0, err
	}

	normalized := make([]json.RawMessage, 0, len(members))
	for _, m := range members {
		n, err := normalizeMember(entity, m)
		if err != nil {
			return nil, 0, err
		}
		normalized = append(normalized, n)
	}

	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal results: %w", err)
	}
	return out, len(normalized), nil
}

// Create posts a new record for entity and returns the upstream response.
func (c *Client) Create(ctx context.Context, entity Entity, payload map[string]any) (json.RawMessage, error) {
	res, ok := resources[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	return c.do(ctx, http.MethodPost, res.path, nil, payload, requestOpts{})
}

// Update patches an existing record identified by its OSLC resource id.
// Maximo expects a POST with x-method-override rather than a real PATCH.
func (c *Client) Update(ctx context.Context, entity Entity, resID string, payload map[string]any) (json.RawMessage, error) {
	res, ok := resources[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	if resID == "" {
		return nil, fmt.Errorf("empty resource id for %s update", entity)
	}
	path := res.path + "/" + url.PathEscape(resID)
	return c.do(ctx, http.MethodPost, path, nil, payload, requestOpts{patch: true})
}

// WhoAmI probes the low-cost whoami endpoint to verify upstream
// reachability and credentials without a domain query.
func (c *Client) WhoAmI(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/oslc/whoami", nil, nil, requestOpts{useMaxAuth: true})
	return err
}

type requestOpts struct {
	useMaxAuth bool
	patch      bool
}

// do runs one logical request with the bounded retry loop: transient
// failures retry up to maxAttempts with exponential backoff, everything
// else fails fast.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, opts requestOpts) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err := c.roundTrip(ctx, method, path, query, reqBody, opts)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == c.maxAttempts {
			return nil, err
		}

		wait := bo.NextBackOff()
		slog.Debug("retrying maximo request",
			"method", method, "path", path,
			"attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte, opts requestOpts) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if opts.useMaxAuth {
		req.Header.Set("maxauth", c.maxAuth)
	} else {
		req.Header.Set("apikey", c.apiKey)
	}
	if opts.patch {
		req.Header.Set("x-method-override", "PATCH")
		req.Header.Set("patchtype", "MERGE")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode >= 400 {
		slog.Warn("maximo api error",
			"method", method, "path", path,
			"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
		return nil, statusError(resp.StatusCode, respBody)
	}

	slog.Debug("maximo request",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return respBody, nil
}
