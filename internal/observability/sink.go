package observability

import (
	"log/slog"

	"github.com/pagehaul/pagehaul/internal/types"
)

// FetchSink receives one FetchLogRecord per fetch call, writes a
// structured log line, and folds the outcome into the metrics counters.
// Emit is safe for concurrent use; both slog and the atomic counters are
// append-only from the caller's point of view. Partial records (fields
// left at defaults on early-exit paths) are fine.
type FetchSink struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewFetchSink creates a sink. metrics may be nil to log only.
func NewFetchSink(logger *slog.Logger, metrics *Metrics) *FetchSink {
	return &FetchSink{
		logger:  logger.With("component", "fetch_sink"),
		metrics: metrics,
	}
}

// Emit records one completed fetch.
func (s *FetchSink) Emit(rec *types.FetchLogRecord) {
	if rec == nil {
		return
	}

	if s.metrics != nil {
		s.metrics.FetchesTotal.Add(1)
		s.metrics.CountStatus(rec.StatusCode)
		s.metrics.BytesFetched.Add(int64(len(rec.Body)))
		if rec.Success {
			s.metrics.FetchesSucceeded.Add(1)
		} else {
			s.metrics.FetchesFailed.Add(1)
			switch rec.Kind {
			case types.FailureTimeout:
				s.metrics.Timeouts.Add(1)
			case types.FailureTransport:
				s.metrics.TransportErrors.Add(1)
			case types.FailureUpstreamStatus:
				s.metrics.UpstreamErrors.Add(1)
			case types.FailureParse:
				s.metrics.ParseErrors.Add(1)
			case types.FailureBinary:
				s.metrics.BinaryRejected.Add(1)
			}
		}
	}

	if rec.Success {
		s.logger.Info("fetch",
			"url", rec.URL,
			"backend", rec.Backend,
			"status", rec.StatusCode,
			"elapsed_s", rec.ElapsedSeconds,
			"size", len(rec.Body),
		)
		return
	}

	s.logger.Warn("fetch failed",
		"url", rec.URL,
		"backend", rec.Backend,
		"kind", string(rec.Kind),
		"status", rec.StatusCode,
		"elapsed_s", rec.ElapsedSeconds,
		"error", rec.Error,
	)
}
