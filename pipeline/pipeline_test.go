package pipeline

import (
	stderrors "errors"
	"testing"

	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/video"
	"github.com/stretchr/testify/require"
)

func sourceFormat() *video.Format {
	f := video.NewFormat()
	f.Set(video.KeyMIME, "video/avc")
	return f
}

func destFormat() *video.Format {
	f := video.NewFormat()
	f.Set(video.KeyMIME, "video/hevc")
	return f
}

func newTestPipeline(t *testing.T, reader SampleReader, sink SampleSink) (*VideoTrackPipeline, *StubCodec, *StubCodec) {
	t.Helper()
	decoder := &StubCodec{Name: "decoder"}
	encoder := &StubCodec{Name: "encoder"}
	factory := &StubCodecFactory{
		Decoders: map[string]Codec{"video/avc": decoder},
		Encoders: map[string]Codec{"video/hevc": encoder},
	}
	p, err := NewVideoTrackPipeline("req-1", 0, sourceFormat(), destFormat(), reader, sink, factory)
	require.NoError(t, err)
	return p, decoder, encoder
}

func TestNewVideoTrackPipelineRequiresMime(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	factory := &StubCodecFactory{}

	_, err := NewVideoTrackPipeline("req", 0, video.NewFormat(), destFormat(), reader, sink, factory)
	require.Error(t, err)
	require.True(t, cerrors.IsInvalidArgument(err))
}

func TestNewVideoTrackPipelineUnsupportedMime(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	factory := &StubCodecFactory{}

	_, err := NewVideoTrackPipeline("req", 0, sourceFormat(), destFormat(), reader, sink, factory)
	require.Error(t, err)
	require.True(t, cerrors.IsUnsupported(err))
}

func TestNewVideoTrackPipelineAppliesDestinationDefaults(t *testing.T) {
	reader := &StubSampleReader{Bitrate: 0}
	sink := &StubSampleSink{}
	var configuredDest *video.Format
	encoder := &StubCodec{
		ConfigureFunc: func(format *video.Format, surface Surface) error {
			configuredDest = format
			return nil
		},
	}
	decoder := &StubCodec{}
	factory := &StubCodecFactory{
		Decoders: map[string]Codec{"video/avc": decoder},
		Encoders: map[string]Codec{"video/hevc": encoder},
	}

	_, err := NewVideoTrackPipeline("req", 0, sourceFormat(), destFormat(), reader, sink, factory)
	require.NoError(t, err)
	require.NotNil(t, configuredDest)

	bitrate, ok := configuredDest.GetInt64(video.KeyBitrate)
	require.True(t, ok)
	require.EqualValues(t, defaultBitrate, bitrate)

	kfi, ok := configuredDest.GetFloat64(video.KeyKeyFrameInterval)
	require.True(t, ok)
	require.Equal(t, defaultKeyFrameIntervalSecs, kfi)

	colorFormat, ok := configuredDest.GetInt64(video.KeyColorFormat)
	require.True(t, ok)
	require.EqualValues(t, video.ColorFormatSurface, colorFormat)
}

// TestBasicRunToCompletion drives the pipeline through a clean decode ->
// encode -> EOS run, asserting the sample round-trip and terminal OK
// status.
func TestBasicRunToCompletion(t *testing.T) {
	reader := &StubSampleReader{
		Samples: []StubSample{
			{Data: []byte("frame-0"), PtsUs: 0},
			{Data: []byte("frame-1"), PtsUs: 33000},
		},
	}
	sink := &StubSampleSink{}
	p, decoder, encoder := newTestPipeline(t, reader, sink)

	decoder.QueueInputBufferFunc = func(index int32, offset, size int32, pts int64, flags BufferFlags) error {
		if flags.has(BufferFlagEndOfStream) {
			p.OnOutputBufferAvailable(decoder, 0, BufferInfo{Size: 0, Flags: BufferFlagEndOfStream})
			return nil
		}
		p.OnOutputBufferAvailable(decoder, 0, BufferInfo{Size: size, PresentationTimeUs: pts})
		return nil
	}
	decoder.ReleaseOutputBufferFunc = func(index int32, render bool) error {
		return nil
	}

	var emitted int64
	encoder.GetOutputBufferFunc = func(index int32) ([]byte, error) {
		return []byte("encoded"), nil
	}

	p.queue.push(func() { p.OnInputBufferAvailable(decoder, 0) }, false)
	p.queue.push(func() { p.OnInputBufferAvailable(decoder, 0) }, false)
	p.queue.push(func() { p.OnInputBufferAvailable(decoder, 0) }, false) // triggers EOS from source
	p.queue.push(func() {
		p.OnOutputBufferAvailable(encoder, 0, BufferInfo{Size: 7, PresentationTimeUs: emitted})
		emitted += 33000
	}, false)
	p.queue.push(func() {
		p.OnOutputBufferAvailable(encoder, 0, BufferInfo{Size: 0, Flags: BufferFlagEndOfStream})
	}, false)

	// runLoop (not Run) so these pre-queued events aren't raced against
	// Run's own bootstrap pushes.
	err := p.runLoop()
	require.NoError(t, err)
	require.True(t, decoder.StopCalled)
	require.Len(t, sink.Samples, 2)
	require.True(t, sink.Samples[1].IsEndOfStream())
}

func TestAbortBeforeEOSReturnsCancelled(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	p, _, _ := newTestPipeline(t, reader, sink)

	p.Abort()
	err := p.Run()
	require.ErrorIs(t, err, cerrors.Cancelled)
}

func TestAbortIsIdempotent(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	p, _, _ := newTestPipeline(t, reader, sink)

	p.Abort()
	p.Abort()
	p.Abort()
	err := p.Run()
	require.ErrorIs(t, err, cerrors.Cancelled)
}

func TestErrorEventJumpsQueueAndStopsPipeline(t *testing.T) {
	reader := &StubSampleReader{
		Samples: []StubSample{{Data: []byte("x"), PtsUs: 0}},
	}
	sink := &StubSampleSink{}
	p, decoder, _ := newTestPipeline(t, reader, sink)

	// Queue a backlog of buffer events, then an error; the error must
	// execute before the backlog drains further, so "buffer-2" must never
	// run once the error has latched and stopped the loop.
	var order []string
	p.queue.push(func() {
		order = append(order, "buffer")
		p.OnInputBufferAvailable(decoder, 0)
	}, false)
	p.OnError(decoder, stderrors.New("hardware fault"))
	p.queue.push(func() {
		order = append(order, "buffer-2")
	}, false)

	err := p.Run()
	require.Error(t, err)
	require.True(t, cerrors.IsCodecError(err))
	// The error was pushed to the front after "buffer" but before
	// "buffer-2", so it popped ahead of both: neither ran.
	require.Empty(t, order)
}

func TestFormatChangeOnlyFirstIsAuthoritative(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	p, _, encoder := newTestPipeline(t, reader, sink)

	first := video.NewFormat()
	first.Set(video.KeyMIME, "video/hevc")
	first.Set("csd", []byte{1, 2, 3})
	p.handleEncoderFormatChanged(first)

	second := video.NewFormat()
	second.Set(video.KeyMIME, "video/hevc")
	second.Set("csd", []byte{9, 9, 9})
	p.handleEncoderFormatChanged(second)

	require.Len(t, sink.Formats, 1)
	csd, _ := sink.Formats[0].Get("csd")
	require.Equal(t, []byte{1, 2, 3}, csd)
	_ = encoder
}

func TestFormatChangeOverlaysSourceGeometry(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	src := sourceFormat()
	src.Set(video.KeySARWidth, int64(1))
	src.Set(video.KeySARHeight, int64(1))
	src.Set(video.KeyDARWidth, int64(16))
	src.Set(video.KeyDARHeight, int64(9))
	src.Set(video.KeyRotation, int64(90))
	src.Set(video.KeyDurationUs, float64(5_000_000))

	decoder := &StubCodec{}
	encoder := &StubCodec{}
	factory := &StubCodecFactory{
		Decoders: map[string]Codec{"video/avc": decoder},
		Encoders: map[string]Codec{"video/hevc": encoder},
	}
	p, err := NewVideoTrackPipeline("req", 0, src, destFormat(), reader, sink, factory)
	require.NoError(t, err)

	encoded := video.NewFormat()
	encoded.Set(video.KeyMIME, "video/hevc")
	p.handleEncoderFormatChanged(encoded)

	require.Len(t, sink.Formats, 1)
	actual := sink.Formats[0]
	sarW, _ := actual.GetInt64(video.KeySARWidth)
	require.Equal(t, int64(1), sarW)
	darW, _ := actual.GetInt64(video.KeyDARWidth)
	require.Equal(t, int64(16), darW)
	rot, _ := actual.GetInt64(video.KeyRotation)
	require.Equal(t, int64(90), rot)
	dur, _ := actual.GetFloat64(video.KeyDurationUs)
	require.Equal(t, float64(5_000_000), dur)
}

// TestEncoderCodecOutlivesPipeline covers the case where the sink retains a
// sample after the pipeline is closed, so the encoder must not be
// stopped/closed until that sample is released too.
func TestEncoderCodecOutlivesPipeline(t *testing.T) {
	reader := &StubSampleReader{}
	sink := &StubSampleSink{}
	p, _, encoder := newTestPipeline(t, reader, sink)

	encoder.GetOutputBufferFunc = func(index int32) ([]byte, error) {
		return []byte("payload"), nil
	}
	p.handleEncoderOutputAvailable(0, BufferInfo{Size: 7})
	require.Len(t, sink.Samples, 1)

	p.Close()
	require.False(t, encoder.StopCalled, "encoder must stay alive while the sink holds a sample")

	sink.Samples[0].Release()
	require.True(t, encoder.StopCalled)
	require.True(t, encoder.CloseCalled)

	// Releasing twice must not double-release the underlying codec buffer.
	sink.Samples[0].Release()
}
