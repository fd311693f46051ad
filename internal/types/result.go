package types

import "net/http"

// BinaryContentError is the message set on results rejected by the
// binary/PDF classifier. Both backends use the exact same string so
// callers can branch on it.
const BinaryContentError = "PDF content detected - not suitable for text extraction"

// FetchResult is the uniform outcome of a fetch, regardless of backend.
//
// Success is signaled purely by PageError being empty and Content being
// non-empty; there is no separate boolean flag. StatusCode is nil when no
// HTTP-equivalent status could be determined (e.g. a transport-level
// timeout). A non-200 StatusCode is always paired with a non-empty
// PageError.
type FetchResult struct {
	// Content is the raw retrieved body. Empty on every failure path.
	Content string `json:"content"`

	// StatusCode is the HTTP status from the origin or the render
	// service. Nil when the request never produced a status.
	StatusCode *int `json:"pageStatusCode,omitempty"`

	// PageError is a human-readable failure reason. Empty on success.
	PageError string `json:"pageError,omitempty"`
}

// OK reports whether the fetch succeeded.
func (r *FetchResult) OK() bool {
	return r.PageError == "" && r.Content != ""
}

// StatusOrZero returns the status code, or 0 when absent. Convenience for
// logging and metrics; callers that care about absence check StatusCode.
func (r *FetchResult) StatusOrZero() int {
	if r.StatusCode == nil {
		return 0
	}
	return *r.StatusCode
}

// Success builds a successful result carrying the body and status.
func Success(content string, statusCode int) *FetchResult {
	return &FetchResult{Content: content, StatusCode: &statusCode}
}

// Failure builds a failed result with a known status code.
func Failure(statusCode int, pageError string) *FetchResult {
	return &FetchResult{StatusCode: &statusCode, PageError: pageError}
}

// FailureNoStatus builds a failed result for paths where no status was
// ever determined (timeouts, DNS errors, malformed envelopes).
func FailureNoStatus(pageError string) *FetchResult {
	return &FetchResult{PageError: pageError}
}

// StatusFailure builds a failed result for a non-200 upstream status,
// using the status's reason phrase as the error text.
func StatusFailure(statusCode int) *FetchResult {
	reason := http.StatusText(statusCode)
	if reason == "" {
		reason = "unexpected status"
	}
	return Failure(statusCode, reason)
}

// RenderEnvelope is the JSON document returned by the render service. The
// transport layer never auto-parses it; BrowserFetcher decodes it
// explicitly after checking the outer status.
type RenderEnvelope struct {
	Content    string  `json:"content"`
	StatusCode *int    `json:"pageStatusCode"`
	PageError  *string `json:"pageError"`
}

// ErrorText returns the envelope's error message, normalizing JSON null
// and a missing field to the empty string.
func (e *RenderEnvelope) ErrorText() string {
	if e.PageError == nil {
		return ""
	}
	return *e.PageError
}

// RenderRequest is the wire request accepted by the render service.
type RenderRequest struct {
	URL           string            `json:"url"`
	WaitAfterLoad int64             `json:"wait_after_load"`
	Headers       map[string]string `json:"headers,omitempty"`
}
