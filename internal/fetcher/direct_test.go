package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/pagehaul/pagehaul/internal/config"
	"github.com/pagehaul/pagehaul/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureSink records every emitted FetchLogRecord.
type captureSink struct {
	mu   sync.Mutex
	recs []*types.FetchLogRecord
}

func (s *captureSink) Emit(rec *types.FetchLogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *captureSink) last(t *testing.T) *types.FetchLogRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recs) == 0 {
		t.Fatal("no log record emitted")
	}
	return s.recs[len(s.recs)-1]
}

func newDirect(t *testing.T, sink Sink) *DirectFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetcher.Timeout = 5 * time.Second
	return NewDirectFetcher(cfg, testLogger(), sink)
}

func TestDirectFetchSuccess(t *testing.T) {
	body := "<html>hi</html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		io.WriteString(w, body)
	}))
	defer srv.Close()

	sink := &captureSink{}
	f := newDirect(t, sink)
	defer f.Close()

	res := f.Fetch(context.Background(), srv.URL, Options{})
	if !res.OK() {
		t.Fatalf("expected success, got error %q", res.PageError)
	}
	if res.Content != body {
		t.Errorf("body not passed through verbatim: %q", res.Content)
	}
	if res.StatusCode == nil || *res.StatusCode != 200 {
		t.Errorf("expected status 200, got %v", res.StatusCode)
	}

	rec := sink.last(t)
	if !rec.Success || rec.StatusCode != 200 || rec.Backend != "direct" {
		t.Errorf("bad log record: %+v", rec)
	}
	if rec.ElapsedSeconds <= 0 {
		t.Error("elapsed time not finalized")
	}
	if rec.Body != body {
		t.Error("log record missing body snapshot")
	}
}

func TestDirectFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	sink := &captureSink{}
	f := newDirect(t, sink)
	defer f.Close()

	res := f.Fetch(context.Background(), srv.URL, Options{})
	if res.Content != "" {
		t.Errorf("failure must carry empty content, got %q", res.Content)
	}
	if res.StatusCode == nil || *res.StatusCode != 404 {
		t.Errorf("expected status 404, got %v", res.StatusCode)
	}
	if res.PageError != "Not Found" {
		t.Errorf("expected reason phrase 'Not Found', got %q", res.PageError)
	}
	if rec := sink.last(t); rec.Kind != types.FailureUpstreamStatus {
		t.Errorf("expected upstream_status kind, got %q", rec.Kind)
	}
}

func TestDirectFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	sink := &captureSink{}
	f := newDirect(t, sink)
	defer f.Close()

	res := f.Fetch(context.Background(), srv.URL, Options{Timeout: 50})
	if res.Content != "" {
		t.Error("timeout must yield empty content")
	}
	if res.StatusCode != nil {
		t.Errorf("timeout must not carry a status, got %d", *res.StatusCode)
	}
	if res.PageError != "Request timed out" {
		t.Errorf("expected 'Request timed out', got %q", res.PageError)
	}

	rec := sink.last(t)
	if rec.Kind != types.FailureTimeout {
		t.Errorf("expected timeout kind, got %q", rec.Kind)
	}
	if rec.ElapsedSeconds <= 0 {
		t.Error("elapsed time must be finalized on the timeout path too")
	}
}

func TestDirectFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	sink := &captureSink{}
	f := newDirect(t, sink)
	defer f.Close()

	res := f.Fetch(context.Background(), srv.URL, Options{})
	if res.Content != "" || res.StatusCode != nil {
		t.Errorf("transport error must yield empty content and no status: %+v", res)
	}
	if res.PageError == "" || res.PageError == "Request timed out" {
		t.Errorf("expected underlying error description, got %q", res.PageError)
	}
	if rec := sink.last(t); rec.Kind != types.FailureTransport {
		t.Errorf("expected transport kind, got %q", rec.Kind)
	}
}

func TestDirectFetchBinaryRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "%PDF-1.4 ...")
	}))
	defer srv.Close()

	sink := &captureSink{}
	f := newDirect(t, sink)
	defer f.Close()

	res := f.Fetch(context.Background(), srv.URL, Options{})
	if res.Content != "" {
		t.Error("binary rejection must yield empty content")
	}
	if res.StatusCode == nil || *res.StatusCode != 200 {
		t.Errorf("binary rejection keeps the 200 status, got %v", res.StatusCode)
	}
	if res.PageError != types.BinaryContentError {
		t.Errorf("wrong error message: %q", res.PageError)
	}
	if rec := sink.last(t); rec.Kind != types.FailureBinary {
		t.Errorf("expected binary_rejected kind, got %q", rec.Kind)
	}
}

func TestDirectFetchCustomHeaders(t *testing.T) {
	var gotToken, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Token")
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	f := newDirect(t, nil)
	defer f.Close()

	res := f.Fetch(context.Background(), srv.URL, Options{
		Headers: map[string]string{"X-Token": "s3cret", "User-Agent": "custom-agent"},
	})
	if !res.OK() {
		t.Fatalf("unexpected failure: %q", res.PageError)
	}
	if gotToken != "s3cret" {
		t.Errorf("custom header not sent, got %q", gotToken)
	}
	if gotUA != "custom-agent" {
		t.Errorf("custom headers must override defaults, got UA %q", gotUA)
	}
}

func TestDirectFetchDecompression(t *testing.T) {
	body := "<html>compressed payload</html>"

	t.Run("gzip", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			io.WriteString(gz, body)
			gz.Close()
		}))
		defer srv.Close()

		f := newDirect(t, nil)
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, Options{})
		if res.Content != body {
			t.Errorf("gzip body mismatch: %q", res.Content)
		}
	})

	t.Run("brotli", func(t *testing.T) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		io.WriteString(bw, body)
		bw.Close()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			w.Write(buf.Bytes())
		}))
		defer srv.Close()

		f := newDirect(t, nil)
		defer f.Close()

		res := f.Fetch(context.Background(), srv.URL, Options{})
		if res.Content != body {
			t.Errorf("brotli body mismatch: %q", res.Content)
		}
	})
}

func TestDirectFetchIdempotentClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<p>stable body</p>")
	}))
	defer srv.Close()

	f := newDirect(t, nil)
	defer f.Close()

	first := f.Fetch(context.Background(), srv.URL, Options{})
	second := f.Fetch(context.Background(), srv.URL, Options{})
	if first.OK() != second.OK() || first.Content != second.Content {
		t.Error("identical bodies must classify identically")
	}
}

func TestDirectFetchOneRecordPerCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	sink := &captureSink{}
	f := newDirect(t, sink)
	defer f.Close()

	for i := 0; i < 3; i++ {
		f.Fetch(context.Background(), srv.URL, Options{})
	}
	f.Fetch(context.Background(), "http://127.0.0.1:1", Options{}) // transport failure

	sink.mu.Lock()
	n := len(sink.recs)
	sink.mu.Unlock()
	if n != 4 {
		t.Errorf("expected exactly one record per call (4), got %d", n)
	}
}
