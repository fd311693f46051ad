package fetcher

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pagehaul/pagehaul/internal/config"
)

// SiteParams are per-site fetch overrides supplied by a ParamsProvider.
type SiteParams struct {
	// WaitAfterLoad overrides the caller-supplied wait when > 0.
	WaitAfterLoad time.Duration

	// Headers are merged under the caller's headers.
	Headers map[string]string
}

// ParamsProvider resolves site-specific parameters for a URL. A failed or
// empty resolution must never fail the fetch; backends fall back to the
// caller-supplied values.
type ParamsProvider interface {
	Resolve(rawURL string) (SiteParams, error)
}

// StaticParams resolves overrides from host-keyed config rules. Hosts
// match case-insensitively; a leading "www." on the request host is
// ignored so one rule covers both forms.
type StaticParams struct {
	rules map[string]SiteParams
}

// NewStaticParams builds a provider from the config's sites section.
func NewStaticParams(sites []config.Site) *StaticParams {
	rules := make(map[string]SiteParams, len(sites))
	for _, s := range sites {
		rules[strings.ToLower(s.Host)] = SiteParams{
			WaitAfterLoad: s.WaitAfterLoad,
			Headers:       s.Headers,
		}
	}
	return &StaticParams{rules: rules}
}

// Resolve looks up the URL's host. A miss returns zero params and no
// error.
func (p *StaticParams) Resolve(rawURL string) (SiteParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SiteParams{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if params, ok := p.rules[host]; ok {
		return params, nil
	}
	if trimmed := strings.TrimPrefix(host, "www."); trimmed != host {
		if params, ok := p.rules[trimmed]; ok {
			return params, nil
		}
	}
	return SiteParams{}, nil
}
