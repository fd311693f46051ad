package types

import "time"

// FetchLogRecord captures everything observed during a single fetch call
// for the logging/metrics sink. It is created when the call starts,
// mutated as the call progresses, and emitted exactly once when the call
// completes, on every exit path. Fields left at their zero value on
// early-exit paths are fine; the sink tolerates partial records.
type FetchLogRecord struct {
	URL            string
	Backend        string
	Success        bool
	StatusCode     int
	ElapsedSeconds float64
	Error          string
	Body           string

	// Kind classifies the failure for metrics. Empty on success.
	Kind FailureKind

	start time.Time
}

// NewFetchLogRecord starts a record for one fetch call.
func NewFetchLogRecord(url, backend string) *FetchLogRecord {
	return &FetchLogRecord{URL: url, Backend: backend, start: time.Now()}
}

// Finish stamps the elapsed time and copies the terminal result into the
// record. Called exactly once, from the deferred emit.
func (r *FetchLogRecord) Finish(res *FetchResult) {
	r.ElapsedSeconds = time.Since(r.start).Seconds()
	if res == nil {
		return
	}
	r.Success = res.OK()
	r.StatusCode = res.StatusOrZero()
	r.Error = res.PageError
	r.Body = res.Content
}
