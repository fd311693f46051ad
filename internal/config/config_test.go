package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Fetcher.Timeout = 0 }},
		{"zero body size", func(c *Config) { c.Fetcher.MaxBodySize = 0 }},
		{"empty endpoint", func(c *Config) { c.Render.Endpoint = "" }},
		{"relative endpoint", func(c *Config) { c.Render.Endpoint = "/render" }},
		{"zero pages", func(c *Config) { c.Render.MaxPages = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"site without host", func(c *Config) { c.Sites = []Site{{WaitAfterLoad: time.Second}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagehaul.yaml")
	yaml := `
fetcher:
  timeout: 7s
render:
  endpoint: http://render.internal:3003/render
  base_timeout: 45s
sites:
  - host: news.example.com
    wait_after_load: 3s
    headers:
      X-Site: news
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Fetcher.Timeout != 7*time.Second {
		t.Errorf("fetcher.timeout = %s, want 7s", cfg.Fetcher.Timeout)
	}
	if cfg.Render.Endpoint != "http://render.internal:3003/render" {
		t.Errorf("render.endpoint = %q", cfg.Render.Endpoint)
	}
	if cfg.Render.BaseTimeout != 45*time.Second {
		t.Errorf("render.base_timeout = %s, want 45s", cfg.Render.BaseTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.Fetcher.MaxBodySize != 10*1024*1024 {
		t.Errorf("max_body_size default lost: %d", cfg.Fetcher.MaxBodySize)
	}
	if len(cfg.Sites) != 1 || cfg.Sites[0].Host != "news.example.com" ||
		cfg.Sites[0].WaitAfterLoad != 3*time.Second {
		t.Errorf("sites not loaded: %+v", cfg.Sites)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging not loaded: %+v", cfg.Logging)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config must validate: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("an explicitly named missing config file must error")
	}
}

func TestValidateURL(t *testing.T) {
	good := []string{"http://example.com", "https://example.com/a?b=c"}
	for _, u := range good {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v", u, err)
		}
	}
	bad := []string{"ftp://example.com", "example.com", "https://", "://x"}
	for _, u := range bad {
		if err := ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) should fail", u)
		}
	}
}
