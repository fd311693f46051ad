package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/pagehaul/pagehaul/internal/config"
	"github.com/pagehaul/pagehaul/internal/content"
	"github.com/pagehaul/pagehaul/internal/types"
)

// timedOutError is the user-facing text for any timeout exit.
const timedOutError = "Request timed out"

// DirectFetcher retrieves pages with a plain HTTP GET. It is the fast
// path for static pages that don't need JavaScript rendering.
type DirectFetcher struct {
	client *http.Client
	cfg    *config.Fetcher
	logger *slog.Logger
	sink   Sink
}

// NewDirectFetcher creates a direct HTTP backend.
func NewDirectFetcher(cfg *config.Config, logger *slog.Logger, sink Sink) *DirectFetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // We handle decompression ourselves (including brotli)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	return &DirectFetcher{
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: redirectPolicy,
		},
		cfg:    &cfg.Fetcher,
		logger: logger.With("component", "direct_fetcher"),
		sink:   orNopSink(sink),
	}
}

// Fetch issues a single GET with a bounded timeout and classifies the
// body before declaring success. The log record is finalized and emitted
// on every exit path.
func (f *DirectFetcher) Fetch(ctx context.Context, url string, opts Options) (res *types.FetchResult) {
	rec := types.NewFetchLogRecord(url, f.Type())
	defer func() {
		rec.Finish(res)
		f.sink.Emit(rec)
	}()

	timeout := f.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		rec.Kind = types.FailureTransport
		return types.FailureNoStatus(fmt.Sprintf("invalid request: %v", err))
	}

	httpReq.Header.Set("User-Agent", f.userAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range opts.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			rec.Kind = types.FailureTimeout
			f.logger.Warn("fetch timed out", "url", url, "timeout", timeout)
			return types.FailureNoStatus(timedOutError)
		}
		rec.Kind = types.FailureTransport
		f.logger.Warn("fetch transport error", "url", url, "error", err)
		return types.FailureNoStatus(err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		rec.Kind = types.FailureUpstreamStatus
		return types.StatusFailure(httpResp.StatusCode)
	}

	body, err := f.readBody(httpResp)
	if err != nil {
		if isTimeout(err) {
			rec.Kind = types.FailureTimeout
			return types.FailureNoStatus(timedOutError)
		}
		rec.Kind = types.FailureTransport
		return types.FailureNoStatus(err.Error())
	}

	if content.IsBinary(body) {
		rec.Kind = types.FailureBinary
		return types.Failure(httpResp.StatusCode, types.BinaryContentError)
	}

	f.logger.Debug("fetch complete",
		"url", url,
		"status", httpResp.StatusCode,
		"size", len(body),
	)

	return types.Success(body, httpResp.StatusCode)
}

// Close releases resources.
func (f *DirectFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the backend identifier.
func (f *DirectFetcher) Type() string {
	return "direct"
}

func (f *DirectFetcher) userAgent() string {
	if f.cfg.UserAgent != "" {
		return f.cfg.UserAgent
	}
	return "pagehaul/" + config.Version
}

// readBody drains the response with the configured size limit, undoing
// any content encoding. The body is otherwise treated as opaque text.
func (f *DirectFetcher) readBody(httpResp *http.Response) (string, error) {
	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err := decompressReader(httpResp, reader)
	if err != nil {
		return "", err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isTimeout reports whether an error was caused by the request deadline.
// The deadline is the sole cancellation mechanism, so an expired context
// and a net-level timeout both count.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
