package control

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/livepeer/transcode-engine/pipeline"
)

// Clock is a package variable so progressSink's rate limiting can run
// against a mock clock instead of wall-clock time.
var Clock = clock.New()

var progressReportBuckets = []float64{0, 0.25, 0.5, 0.75, 1}

const minProgressReportInterval = 10 * time.Second

// progressSink wraps a SampleSink to derive a coarse 0..1 completion
// fraction from samples delivered so far against an expected total, and
// forwards it to report no more often than once per bucket crossed or once
// per minProgressReportInterval, whichever comes first (and always at
// completion), calling report in-process.
type progressSink struct {
	pipeline.SampleSink

	expectedSamples int64
	report          func(pct float64)

	mu           sync.Mutex
	delivered    int64
	lastProgress float64
	lastReport   time.Time
}

func newProgressSink(inner pipeline.SampleSink, expectedSamples int64, report func(pct float64)) *progressSink {
	return &progressSink{SampleSink: inner, expectedSamples: expectedSamples, report: report}
}

func (s *progressSink) OnSampleAvailable(sample *pipeline.MediaSample) {
	s.SampleSink.OnSampleAvailable(sample)

	s.mu.Lock()
	s.delivered++
	progress := s.fractionLocked(sample.IsEndOfStream())
	shouldReport := progress >= 1 ||
		progressBucket(progress) != progressBucket(s.lastProgress) ||
		Clock.Since(s.lastReport) >= minProgressReportInterval
	if shouldReport {
		s.lastReport, s.lastProgress = Clock.Now(), progress
	}
	s.mu.Unlock()

	if shouldReport {
		s.report(progress * 100)
	}
}

func (s *progressSink) fractionLocked(eos bool) float64 {
	if eos {
		return 1
	}
	if s.expectedSamples <= 0 {
		return 0
	}
	frac := float64(s.delivered) / float64(s.expectedSamples)
	if frac > 0.99 {
		frac = 0.99 // never claim done until the real end-of-stream sample
	}
	return frac
}

func progressBucket(progress float64) int {
	return sort.SearchFloat64s(progressReportBuckets, progress)
}
