// Package fetcher retrieves remote page bodies through one of two
// interchangeable backends: a direct HTTP client and a client for the
// browser-automation render service. Both produce the same FetchResult
// shape and never return Go errors for expected failure modes — network,
// status, parse and content-shape problems are data, folded into the
// result.
package fetcher

import (
	"context"

	"github.com/pagehaul/pagehaul/internal/types"
)

// Fetcher is the interface for all fetch backend implementations.
type Fetcher interface {
	// Fetch retrieves the content at url. The returned result is never
	// nil; callers inspect PageError to determine success.
	Fetch(ctx context.Context, url string, opts Options) *types.FetchResult

	// Type returns the backend identifier.
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// Options controls a single fetch.
type Options struct {
	// Timeout bounds the direct backend's whole request. Zero means the
	// configured default. The browser backend ignores it; its deadline
	// is the configured base timeout plus the effective wait.
	Timeout int64 // milliseconds

	// WaitAfterLoad is the post-load settle time passed to the render
	// service. A site-parameter override for the URL's host takes
	// precedence.
	WaitAfterLoad int64 // milliseconds

	// Headers are custom request headers. The direct backend sends them
	// on the GET; the browser backend forwards them to the render
	// service.
	Headers map[string]string
}

// Sink receives one FetchLogRecord per fetch call. Implementations must
// accept concurrent emits; backends guarantee exactly one emit per call,
// on every exit path.
type Sink interface {
	Emit(rec *types.FetchLogRecord)
}

// nopSink drops records. Used when no sink is wired.
type nopSink struct{}

func (nopSink) Emit(*types.FetchLogRecord) {}

func orNopSink(s Sink) Sink {
	if s == nil {
		return nopSink{}
	}
	return s
}
