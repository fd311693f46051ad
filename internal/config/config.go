package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for pagehaul.
type Config struct {
	Fetcher Fetcher `mapstructure:"fetcher" yaml:"fetcher"`
	Render  Render  `mapstructure:"render"  yaml:"render"`
	Sites   []Site  `mapstructure:"sites"   yaml:"sites"`
	Logging Logging `mapstructure:"logging" yaml:"logging"`
	Metrics Metrics `mapstructure:"metrics" yaml:"metrics"`
}

// Fetcher controls the direct HTTP backend.
type Fetcher struct {
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
}

// Render holds both sides of the render service: the client settings used
// by the browser backend and the serve settings used by renderd.
type Render struct {
	// Endpoint is the render service URL the browser backend POSTs to.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// BaseTimeout is the render request deadline before the per-request
	// wait is added on top.
	BaseTimeout time.Duration `mapstructure:"base_timeout" yaml:"base_timeout"`

	// MaxWait caps wait_after_load so a bad override can't pin a tab.
	MaxWait time.Duration `mapstructure:"max_wait" yaml:"max_wait"`

	// Listen is the renderd bind address.
	Listen string `mapstructure:"listen" yaml:"listen"`

	// Headless controls whether Chromium runs headless.
	Headless bool `mapstructure:"headless" yaml:"headless"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `mapstructure:"no_sandbox" yaml:"no_sandbox"`

	// Stealth applies anti-automation-detection patches to each page.
	Stealth bool `mapstructure:"stealth" yaml:"stealth"`

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`

	// NavTimeout bounds navigation and settling inside the service.
	NavTimeout time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
}

// Site is a per-host parameter override consulted by the browser backend
// before each render request.
type Site struct {
	Host          string            `mapstructure:"host"            yaml:"host"`
	WaitAfterLoad time.Duration     `mapstructure:"wait_after_load" yaml:"wait_after_load"`
	Headers       map[string]string `mapstructure:"headers"         yaml:"headers"`
}

// Logging controls logging behavior.
type Logging struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Metrics controls the Prometheus text endpoint on renderd.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: Fetcher{
			Timeout:         15 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Render: Render{
			Endpoint:    "http://localhost:3003/render",
			BaseTimeout: 30 * time.Second,
			MaxWait:     60 * time.Second,
			Listen:      "0.0.0.0:3003",
			Headless:    true,
			MaxPages:    10,
			NavTimeout:  30 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
