package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Render.Endpoint == "" {
		return fmt.Errorf("render.endpoint must not be empty")
	}
	if u, err := url.Parse(cfg.Render.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("render.endpoint %q is not a valid URL", cfg.Render.Endpoint)
	}
	if cfg.Render.BaseTimeout <= 0 {
		return fmt.Errorf("render.base_timeout must be > 0")
	}
	if cfg.Render.MaxWait < 0 {
		return fmt.Errorf("render.max_wait must be >= 0")
	}
	if cfg.Render.MaxPages < 1 {
		return fmt.Errorf("render.max_pages must be >= 1, got %d", cfg.Render.MaxPages)
	}
	if cfg.Render.MaxPages > 100 {
		return fmt.Errorf("render.max_pages must be <= 100, got %d", cfg.Render.MaxPages)
	}
	if cfg.Render.NavTimeout <= 0 {
		return fmt.Errorf("render.nav_timeout must be > 0")
	}

	for i, site := range cfg.Sites {
		if site.Host == "" {
			return fmt.Errorf("sites[%d].host must not be empty", i)
		}
		if site.WaitAfterLoad < 0 {
			return fmt.Errorf("sites[%d].wait_after_load must be >= 0", i)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		return fmt.Errorf("metrics.path must not be empty when metrics are enabled")
	}

	return nil
}

// ValidateURL checks if a URL string is valid for fetching.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
