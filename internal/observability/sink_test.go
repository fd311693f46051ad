package observability

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pagehaul/pagehaul/internal/types"
)

func newSink() (*FetchSink, *Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMetrics(logger)
	return NewFetchSink(logger, m), m
}

func TestSinkCountsOutcomes(t *testing.T) {
	sink, m := newSink()

	sink.Emit(&types.FetchLogRecord{URL: "https://a", Backend: "direct", Success: true, StatusCode: 200, Body: "abcd"})
	sink.Emit(&types.FetchLogRecord{URL: "https://b", Backend: "direct", StatusCode: 404, Error: "Not Found", Kind: types.FailureUpstreamStatus})
	sink.Emit(&types.FetchLogRecord{URL: "https://c", Backend: "browser", Error: "Request timed out", Kind: types.FailureTimeout})
	sink.Emit(&types.FetchLogRecord{URL: "https://d", Backend: "browser", Error: "parse", Kind: types.FailureParse})

	snap := m.Snapshot()
	if snap["fetches_total"] != 4 {
		t.Errorf("fetches_total = %d, want 4", snap["fetches_total"])
	}
	if snap["fetches_succeeded"] != 1 || snap["fetches_failed"] != 3 {
		t.Errorf("succeeded/failed = %d/%d, want 1/3", snap["fetches_succeeded"], snap["fetches_failed"])
	}
	if snap["timeouts"] != 1 || snap["upstream_errors"] != 1 || snap["parse_errors"] != 1 {
		t.Errorf("taxonomy counters wrong: %v", snap)
	}
	if snap["bytes_fetched"] != 4 {
		t.Errorf("bytes_fetched = %d, want 4", snap["bytes_fetched"])
	}
	if m.Responses4xx.Load() != 1 || m.Responses2xx.Load() != 1 {
		t.Error("status class counters wrong")
	}
}

func TestSinkToleratesPartialRecords(t *testing.T) {
	sink, m := newSink()

	// Early-exit shape: only URL and backend were ever set.
	sink.Emit(&types.FetchLogRecord{URL: "https://a", Backend: "direct"})
	sink.Emit(nil)

	if m.FetchesTotal.Load() != 1 {
		t.Errorf("partial record must still count once, nil not at all: %d", m.FetchesTotal.Load())
	}
}

func TestSinkConcurrentEmits(t *testing.T) {
	sink, m := newSink()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(&types.FetchLogRecord{URL: "https://x", Backend: "direct", Success: true, StatusCode: 200})
		}()
	}
	wg.Wait()

	if m.FetchesTotal.Load() != 50 {
		t.Errorf("fetches_total = %d, want 50", m.FetchesTotal.Load())
	}
}
