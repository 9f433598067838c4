package metrics

import (
	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/scheduler"
)

// InstrumentCallback wraps a scheduler.ClientCallback so every lifecycle
// event it forwards also updates EngineMetrics, keeping metrics updates out
// of the scheduler's own decision logic.
func InstrumentCallback(inner scheduler.ClientCallback) scheduler.ClientCallback {
	return &instrumentedCallback{inner: inner}
}

type instrumentedCallback struct {
	inner scheduler.ClientCallback
}

func (c *instrumentedCallback) OnTranscodingStarted(key scheduler.Key) {
	c.inner.OnTranscodingStarted(key)
}

func (c *instrumentedCallback) OnTranscodingPaused(key scheduler.Key) {
	Metrics.SessionsPreempted.Inc()
	c.inner.OnTranscodingPaused(key)
}

func (c *instrumentedCallback) OnTranscodingResumed(key scheduler.Key) {
	c.inner.OnTranscodingResumed(key)
}

func (c *instrumentedCallback) OnTranscodingProgress(key scheduler.Key, progress float64) {
	c.inner.OnTranscodingProgress(key, progress)
}

func (c *instrumentedCallback) OnTranscodingFinished(key scheduler.Key) {
	Metrics.SessionsInFlight.Dec()
	Metrics.SessionsFinished.Inc()
	c.inner.OnTranscodingFinished(key)
}

func (c *instrumentedCallback) OnTranscodingFailed(key scheduler.Key, err error) {
	Metrics.SessionsInFlight.Dec()
	Metrics.SessionsFailed.WithLabelValues(errorCategory(err)).Inc()
	c.inner.OnTranscodingFailed(key, err)
}

func errorCategory(err error) string {
	switch {
	case cerrors.IsCodecError(err):
		return "codec"
	case cerrors.IsReaderError(err):
		return "reader"
	case cerrors.IsUnsupported(err):
		return "unsupported"
	case cerrors.IsInvalidArgument(err):
		return "invalid_argument"
	default:
		return "other"
	}
}

// RecordSubmit increments the per-submitter submission counter and the
// in-flight gauge; call once per successful scheduler.Submit.
func RecordSubmit(submitterID string) {
	Metrics.SessionsSubmitted.WithLabelValues(submitterID).Inc()
	Metrics.SessionsInFlight.Inc()
}

// RecordCancel increments the per-submitter cancellation counter and
// decrements the in-flight gauge; call once per session Cancel actually
// removes.
func RecordCancel(submitterID string) {
	Metrics.SessionsCancelled.WithLabelValues(submitterID).Inc()
	Metrics.SessionsInFlight.Dec()
}
