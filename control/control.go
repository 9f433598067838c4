// Package control adapts a scheduler.TranscoderControl onto the pipeline
// package: it is the "one active pipeline" half of the engine, turning
// Start/Pause/Resume/Stop calls from the scheduler into real
// pipeline.VideoTrackPipeline runs, and turning the pipeline's terminal
// status back into scheduler.OnStarted/OnFinished/OnFailed notifications.
package control

import (
	stderrors "errors"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/livepeer/transcode-engine/config"
	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/log"
	"github.com/livepeer/transcode-engine/pipeline"
	"github.com/livepeer/transcode-engine/scheduler"
)

// Builder constructs a fresh pipeline for one session. Implementations own
// the concrete SampleReader, SampleSink and CodecFactory a session runs
// with; progress lets the returned pipeline report coarse completion back
// through PipelineControl without PipelineControl needing to know how.
type Builder interface {
	Build(key scheduler.Key, request scheduler.Request, progress func(pct float64)) (*pipeline.VideoTrackPipeline, error)
}

// PipelineControl is a scheduler.TranscoderControl backed by real
// VideoTrackPipeline runs, one at a time. The pipeline package has no
// native pause: Pause and Stop both
// abort the running pipeline, and Resume rebuilds and restarts it from
// scratch through Builder — resuming a partially-decoded track in place
// would need codec-level state the platform's resource manager owns, which
// is out of scope here.
type PipelineControl struct {
	mu      sync.Mutex
	builder Builder
	sched   *scheduler.Scheduler
	running map[string]*pipeline.VideoTrackPipeline
}

// NewPipelineControl returns a PipelineControl that builds sessions with
// builder. Call SetScheduler once the owning Scheduler exists — the two
// are mutually referential, so construction happens in two steps.
func NewPipelineControl(builder Builder) *PipelineControl {
	return &PipelineControl{
		builder: builder,
		running: make(map[string]*pipeline.VideoTrackPipeline),
	}
}

// SetScheduler wires the Scheduler this control reports lifecycle events
// back into. Must be called before Start is ever invoked.
func (c *PipelineControl) SetScheduler(s *scheduler.Scheduler) {
	c.sched = s
}

func (c *PipelineControl) Start(key scheduler.Key, request scheduler.Request, callback scheduler.ClientCallback) error {
	return c.startWithRetry(key, request)
}

func (c *PipelineControl) Resume(key scheduler.Key, request scheduler.Request, callback scheduler.ClientCallback) error {
	return c.startWithRetry(key, request)
}

// startWithRetry retries transient failures building the pipeline itself
// (e.g. a momentarily busy codec) a bounded number of times before giving
// up and reporting the failure via onFailed; once the pipeline is running,
// its own failures surface once, via onFailed, never retried.
func (c *PipelineControl) startWithRetry(key scheduler.Key, request scheduler.Request) error {
	var p *pipeline.VideoTrackPipeline
	build := func() error {
		built, err := c.builder.Build(key, request, func(pct float64) { c.sched.OnProgress(key, pct) })
		if err != nil {
			return err
		}
		p = built
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(config.StartBackoffAttempts-1))
	if err := backoff.Retry(build, bo); err != nil {
		// Start/Resume run under the scheduler's lock, so the failure is
		// reported from another goroutine once that lock is released.
		go c.sched.OnFailed(key, err)
		return err
	}

	c.mu.Lock()
	c.running[key.String()] = p
	c.mu.Unlock()

	go c.run(key, p)
	return nil
}

func (c *PipelineControl) run(key scheduler.Key, p *pipeline.VideoTrackPipeline) {
	c.sched.OnStarted(key)
	err := p.Run()

	c.mu.Lock()
	delete(c.running, key.String())
	c.mu.Unlock()
	p.Close()

	switch {
	case err == nil:
		c.sched.OnFinished(key)
	case stderrors.Is(err, cerrors.Cancelled):
		// Stopped by our own Pause/Stop; the scheduler already knows.
	default:
		c.sched.OnFailed(key, err)
	}
}

func (c *PipelineControl) Pause(key scheduler.Key) error {
	return c.abortRunning(key)
}

func (c *PipelineControl) Stop(key scheduler.Key) error {
	return c.abortRunning(key)
}

func (c *PipelineControl) abortRunning(key scheduler.Key) error {
	c.mu.Lock()
	p, ok := c.running[key.String()]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	p.Abort()
	log.LogNoRequestID("aborting pipeline for " + key.String())
	return nil
}
