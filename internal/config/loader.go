// Package config loads and validates the gateway's YAML policy file:
// upstream connection settings, cache TTLs, rate limits, and audit
// retention.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the top-level maximo-mcp.yaml structure.
type FileConfig struct {
	Upstream   UpstreamConfig  `yaml:"upstream"`
	Cache      CacheConfig     `yaml:"cache"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Audit      AuditConfig     `yaml:"audit"`
	HTTP       HTTPConfig      `yaml:"http"`
}

// UpstreamConfig holds Maximo connection settings. Credentials never
// appear here; they come from the encrypted secrets file or environment.
type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

// CacheConfig controls the in-memory response cache. MaxEntries bounds
// the total number of cached responses across all shards.
type CacheConfig struct {
	MaxEntries int            `yaml:"max_entries"`
	TTLSeconds map[string]int `yaml:"ttl_seconds"`
}

// RateLimitConfig sets per-caller request budgets by operation class.
type RateLimitConfig struct {
	GeneralPerMinute int `yaml:"general_per_minute"`
	SearchPerMinute  int `yaml:"search_per_minute"`
	CreatePerMinute  int `yaml:"create_per_minute"`
}

// AuditConfig controls the SQLite audit trail.
type AuditConfig struct {
	DBPath         string   `yaml:"db_path"`
	RetentionDays  int      `yaml:"retention_days"`
	RedactionHints []string `yaml:"redaction_hints,omitempty"`
}

// HTTPConfig holds the optional HTTP transport listener settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// defaultTTLSeconds are the per-bucket cache lifetimes applied when the
// file does not override them.
var defaultTTLSeconds = map[string]int{
	"asset":     600,
	"workorder": 300,
	"inventory": 600,
	"user":      300,
	"search":    300,
}

// Default returns the built-in configuration used when no file is given.
func Default() *FileConfig {
	cfg := &FileConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads, parses, and validates a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data, filling in defaults for
// anything unset.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FileConfig) applyDefaults() {
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.MaxAttempts <= 0 {
		c.Upstream.MaxAttempts = 3
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 4096
	}
	if c.Cache.TTLSeconds == nil {
		c.Cache.TTLSeconds = map[string]int{}
	}
	for bucket, secs := range defaultTTLSeconds {
		if _, ok := c.Cache.TTLSeconds[bucket]; !ok {
			c.Cache.TTLSeconds[bucket] = secs
		}
	}
	if c.RateLimits.GeneralPerMinute <= 0 {
		c.RateLimits.GeneralPerMinute = 100
	}
	if c.RateLimits.SearchPerMinute <= 0 {
		c.RateLimits.SearchPerMinute = 50
	}
	if c.RateLimits.CreatePerMinute <= 0 {
		c.RateLimits.CreatePerMinute = 20
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 30
	}
}

// TTLFor returns the cache lifetime for a TTL bucket, or zero for an
// unknown bucket so callers skip caching instead of guessing.
func (c *FileConfig) TTLFor(bucket string) time.Duration {
	secs, ok := c.Cache.TTLSeconds[bucket]
	if !ok {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// UpstreamTimeout returns the per-attempt HTTP timeout.
func (c *FileConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}
