package types

// FailureKind classifies a fetch failure for logging and metrics. Every
// expected failure mode maps to exactly one kind; all of them are
// recovered locally and surfaced as data in the FetchResult, never as a
// Go error crossing the Fetcher boundary.
type FailureKind string

const (
	FailureTimeout        FailureKind = "timeout"
	FailureTransport      FailureKind = "transport"
	FailureUpstreamStatus FailureKind = "upstream_status"
	FailureParse          FailureKind = "parse"
	FailureBinary         FailureKind = "binary_rejected"
)
