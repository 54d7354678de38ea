package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError holds all validation failures for a config file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// validate checks the parsed config for correctness. Defaults have
// already been applied, so zero values here mean the file set them badly.
func validate(cfg *FileConfig) error {
	var errs []string

	if cfg.Upstream.BaseURL != "" {
		u, err := url.Parse(cfg.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("upstream.base_url %q must be an absolute URL", cfg.Upstream.BaseURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Sprintf("upstream.base_url scheme %q must be http or https", u.Scheme))
		}
	}

	for bucket, secs := range cfg.Cache.TTLSeconds {
		if secs < 0 {
			errs = append(errs, fmt.Sprintf("cache.ttl_seconds.%s must not be negative", bucket))
		}
		if _, ok := defaultTTLSeconds[bucket]; !ok {
			errs = append(errs, fmt.Sprintf("cache.ttl_seconds: unknown bucket %q", bucket))
		}
	}

	for name, v := range map[string]int{
		"rate_limits.general_per_minute": cfg.RateLimits.GeneralPerMinute,
		"rate_limits.search_per_minute":  cfg.RateLimits.SearchPerMinute,
		"rate_limits.create_per_minute":  cfg.RateLimits.CreatePerMinute,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
