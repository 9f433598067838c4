package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livepeer/transcode-engine/pipeline"
	"github.com/livepeer/transcode-engine/scheduler"
	"github.com/livepeer/transcode-engine/video"
)

// completionCallback records every lifecycle event like
// scheduler.StubClientCallback, additionally closing done the moment the
// session reaches a terminal state, so the test doesn't have to poll.
type completionCallback struct {
	*scheduler.StubClientCallback
	done chan struct{}
}

func newCompletionCallback() *completionCallback {
	return &completionCallback{
		StubClientCallback: &scheduler.StubClientCallback{},
		done:               make(chan struct{}),
	}
}

func (c *completionCallback) OnTranscodingFinished(key scheduler.Key) {
	c.StubClientCallback.OnTranscodingFinished(key)
	close(c.done)
}

func (c *completionCallback) OnTranscodingFailed(key scheduler.Key, err error) {
	c.StubClientCallback.OnTranscodingFailed(key, err)
	close(c.done)
}

// TestPipelineControlRunsDemoSessionToCompletion drives one full session
// through a real Scheduler+PipelineControl pair backed by DemoBuilder, the
// same wiring cmd/transcodectl/cmd/submit.go uses. It exists to catch demo
// codecs that never fire a single callback: without wireDemoCodecs driving
// decoder/encoder events, this test hangs instead of failing, so it runs
// under a deadline instead of blocking forever.
func TestPipelineControlRunsDemoSessionToCompletion(t *testing.T) {
	pipelineControl := NewPipelineControl(&DemoBuilder{SampleCount: 3})
	policy := scheduler.NewStaticTopPolicy()
	policy.SetTopSet(map[string]struct{}{"alice": {}})
	sched := scheduler.NewScheduler(pipelineControl, policy)
	pipelineControl.SetScheduler(sched)

	key := scheduler.Key{ClientID: "client-1", SessionID: 1}
	request := scheduler.Request{
		SubmitterID: "alice",
		Priority:    scheduler.PriorityRealtime,
		Source:      "demo-source",
		Destination: "demo-dest",
	}

	cb := newCompletionCallback()
	require.True(t, sched.Submit(key, "alice", request, cb))

	select {
	case <-cb.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session never reached a terminal state")
	}

	require.Nil(t, cb.LastErr)
	require.Contains(t, cb.Events, "started:"+key.String())
	require.Contains(t, cb.Events, "finished:"+key.String())
}

// blockingBuilder builds a pipeline from undriven stub codecs — no
// wireDemoCodecs equivalent — so Run blocks in queue.pop() until something
// calls Abort. It stands in for a session that is still genuinely running.
type blockingBuilder struct{}

func (blockingBuilder) Build(key scheduler.Key, _ scheduler.Request, _ func(float64)) (*pipeline.VideoTrackPipeline, error) {
	reader := &pipeline.StubSampleReader{Bitrate: 1}
	sink := &pipeline.StubSampleSink{}
	factory := &pipeline.StubCodecFactory{
		Decoders: map[string]pipeline.Codec{"video/demo-source": &pipeline.StubCodec{Name: "decoder"}},
		Encoders: map[string]pipeline.Codec{"video/demo-dest": &pipeline.StubCodec{Name: "encoder"}},
	}
	source := video.NewFormat()
	source.Set(video.KeyMIME, "video/demo-source")
	dest := video.NewFormat()
	dest.Set(video.KeyMIME, "video/demo-dest")
	return pipeline.NewVideoTrackPipeline(key.String(), 0, source, dest, reader, sink, factory)
}

// TestPipelineControlCancelStopsRunningSession exercises the Pause/Stop ->
// abortRunning path: cancelling a session whose pipeline is genuinely still
// running must unblock its run loop (via Abort) rather than leave it
// running forever, and must remove it from the scheduler's registry.
func TestPipelineControlCancelStopsRunningSession(t *testing.T) {
	pipelineControl := NewPipelineControl(blockingBuilder{})
	policy := scheduler.NewStaticTopPolicy()
	policy.SetTopSet(map[string]struct{}{"alice": {}})
	sched := scheduler.NewScheduler(pipelineControl, policy)
	pipelineControl.SetScheduler(sched)

	key := scheduler.Key{ClientID: "client-2", SessionID: 1}
	request := scheduler.Request{
		SubmitterID: "alice",
		Priority:    scheduler.PriorityRealtime,
		Source:      "demo-source",
		Destination: "demo-dest",
	}

	cb := newCompletionCallback()
	require.True(t, sched.Submit(key, "alice", request, cb))

	_, ok := sched.GetSession(key)
	require.True(t, ok, "session should still be registered before cancel")

	require.True(t, sched.Cancel(key.ClientID, key.SessionID))

	_, ok = sched.GetSession(key)
	require.False(t, ok)

	select {
	case <-cb.done:
		t.Fatal("cancelled session should not notify OnTranscodingFinished/Failed")
	case <-time.After(200 * time.Millisecond):
	}
}
