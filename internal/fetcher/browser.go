package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pagehaul/pagehaul/internal/config"
	"github.com/pagehaul/pagehaul/internal/content"
	"github.com/pagehaul/pagehaul/internal/types"
)

// envelopeSizeLimit caps how much of a render response we read. Rendered
// pages are JSON-escaped HTML, so this sits above the direct backend's
// body limit.
const envelopeSizeLimit = 32 << 20

// BrowserFetcher retrieves pages through the render service: a POST with
// the target URL and a post-load wait, answered by a JSON envelope
// carrying the rendered content and the page's own status/error. The
// envelope is decoded here, never by the transport layer.
type BrowserFetcher struct {
	client   *http.Client
	endpoint string
	cfg      *config.Render
	params   ParamsProvider
	logger   *slog.Logger
	sink     Sink
}

// NewBrowserFetcher creates a render-service backend. params may be nil,
// in which case no per-site overrides apply.
func NewBrowserFetcher(cfg *config.Config, params ParamsProvider, logger *slog.Logger, sink Sink) *BrowserFetcher {
	return &BrowserFetcher{
		// The overall deadline is per-request (base + wait), set on the
		// context, so the client itself carries no timeout.
		client:   &http.Client{},
		endpoint: cfg.Render.Endpoint,
		cfg:      &cfg.Render,
		params:   params,
		logger:   logger.With("component", "browser_fetcher"),
		sink:     orNopSink(sink),
	}
}

// Fetch renders url through the service. The site-parameter provider is
// consulted first; its wait override, when present, wins over the
// caller-supplied value. The request deadline is the configured base
// timeout plus the effective wait, so slow-rendering pages are not
// aborted by their own settle time.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, opts Options) (res *types.FetchResult) {
	rec := types.NewFetchLogRecord(url, f.Type())
	defer func() {
		rec.Finish(res)
		f.sink.Emit(rec)
	}()

	wait, headers := f.resolveParams(url, opts)

	payload, err := json.Marshal(types.RenderRequest{
		URL:           url,
		WaitAfterLoad: wait.Milliseconds(),
		Headers:       headers,
	})
	if err != nil {
		rec.Kind = types.FailureTransport
		return types.FailureNoStatus(fmt.Sprintf("encode render request: %v", err))
	}

	timeout := f.cfg.BaseTimeout + wait
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		rec.Kind = types.FailureTransport
		return types.FailureNoStatus(fmt.Sprintf("invalid request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			rec.Kind = types.FailureTimeout
			f.logger.Warn("render timed out", "url", url, "timeout", timeout)
			return types.FailureNoStatus(timedOutError)
		}
		rec.Kind = types.FailureTransport
		f.logger.Warn("render transport error", "url", url, "error", err)
		return types.FailureNoStatus(err.Error())
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, envelopeSizeLimit))
	if err != nil {
		if isTimeout(err) {
			rec.Kind = types.FailureTimeout
			return types.FailureNoStatus(timedOutError)
		}
		rec.Kind = types.FailureTransport
		return types.FailureNoStatus(err.Error())
	}

	if httpResp.StatusCode != http.StatusOK {
		rec.Kind = types.FailureUpstreamStatus
		return f.statusFailure(httpResp.StatusCode, raw)
	}

	var env types.RenderEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		rec.Kind = types.FailureParse
		f.logger.Warn("malformed render envelope", "url", url, "error", err)
		return types.FailureNoStatus(fmt.Sprintf("failed to parse render response: %v", err))
	}

	if content.IsBinary(env.Content) {
		rec.Kind = types.FailureBinary
		return &types.FetchResult{
			StatusCode: env.StatusCode,
			PageError:  types.BinaryContentError,
		}
	}

	f.logger.Debug("render complete",
		"url", url,
		"status", env.StatusCode,
		"size", len(env.Content),
		"wait", wait,
	)

	// Pass-through: the service may report a soft pageError alongside
	// partial content, and callers decide what to do with it.
	return &types.FetchResult{
		Content:    env.Content,
		StatusCode: env.StatusCode,
		PageError:  env.ErrorText(),
	}
}

// Close releases resources.
func (f *BrowserFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the backend identifier.
func (f *BrowserFetcher) Type() string {
	return "browser"
}

// resolveParams merges the caller's options with any site override. The
// provider's wait wins when it supplies one; provider failure or a miss
// falls back to the caller value. Caller headers win over site headers
// on key collisions.
func (f *BrowserFetcher) resolveParams(url string, opts Options) (time.Duration, map[string]string) {
	wait := time.Duration(opts.WaitAfterLoad) * time.Millisecond
	headers := opts.Headers

	if f.params != nil {
		site, err := f.params.Resolve(url)
		if err != nil {
			f.logger.Debug("site params unavailable", "url", url, "error", err)
		} else {
			if site.WaitAfterLoad > 0 {
				wait = site.WaitAfterLoad
			}
			if len(site.Headers) > 0 {
				merged := make(map[string]string, len(site.Headers)+len(headers))
				for k, v := range site.Headers {
					merged[k] = v
				}
				for k, v := range headers {
					merged[k] = v
				}
				headers = merged
			}
		}
	}

	if f.cfg.MaxWait > 0 && wait > f.cfg.MaxWait {
		wait = f.cfg.MaxWait
	}
	return wait, headers
}

// statusFailure shapes a non-200 service response. The service may report
// its own richer outcome inside the failing wrapper, so a parseable
// envelope takes precedence over the outer status.
func (f *BrowserFetcher) statusFailure(outerStatus int, raw []byte) *types.FetchResult {
	var env types.RenderEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		code := outerStatus
		if env.StatusCode != nil {
			code = *env.StatusCode
		}
		msg := env.ErrorText()
		if msg == "" {
			msg = http.StatusText(code)
		}
		if msg == "" {
			msg = fmt.Sprintf("render service returned status %d", outerStatus)
		}
		return types.Failure(code, msg)
	}
	return types.StatusFailure(outerStatus)
}
