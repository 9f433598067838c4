package control

import (
	"github.com/livepeer/transcode-engine/pipeline"
	"github.com/livepeer/transcode-engine/scheduler"
	"github.com/livepeer/transcode-engine/video"
)

// DemoBuilder is a Builder that runs every session against in-memory stub
// codecs instead of real hardware. It exists so `transcodectl submit` has
// something to drive end to end without a device underneath it, the same
// role stub doubles play in tests.
type DemoBuilder struct {
	// SampleCount is how many synthetic samples each session decodes
	// before end-of-stream; zero or negative means 30. Request.Options is
	// not consulted.
	SampleCount int
}

const demoSampleSize = 4096

func (b *DemoBuilder) Build(key scheduler.Key, request scheduler.Request, progress func(pct float64)) (*pipeline.VideoTrackPipeline, error) {
	count := b.SampleCount
	if count <= 0 {
		count = 30
	}

	reader := &pipeline.StubSampleReader{
		Bitrate: 2_000_000,
		Samples: make([]pipeline.StubSample, count),
	}
	for i := range reader.Samples {
		flags := pipeline.BufferFlags(0)
		if i == len(reader.Samples)-1 {
			flags = pipeline.BufferFlagEndOfStream
		}
		reader.Samples[i] = pipeline.StubSample{
			Data:  make([]byte, demoSampleSize),
			PtsUs: int64(i) * 33_333, // ~30fps
			Flags: flags,
		}
	}

	sink := newProgressSink(&pipeline.StubSampleSink{}, int64(count), progress)

	decoder := &pipeline.StubCodec{Name: "decoder"}
	encoder := &pipeline.StubCodec{Name: "encoder"}
	wireDemoCodecs(decoder, encoder)

	factory := &pipeline.StubCodecFactory{
		Decoders: map[string]pipeline.Codec{"video/demo-source": decoder},
		Encoders: map[string]pipeline.Codec{"video/demo-dest": encoder},
	}

	source := video.NewFormat()
	source.Set(video.KeyMIME, "video/demo-source")
	source.Set(video.KeyWidth, int32(1920))
	source.Set(video.KeyHeight, int32(1080))

	dest := video.NewFormat()
	dest.Set(video.KeyMIME, "video/demo-dest")

	return pipeline.NewVideoTrackPipeline(key.String(), 0, source, dest, reader, sink, factory)
}

// wireDemoCodecs installs function-field hooks that make decoder and
// encoder behave like an asynchronous hardware pair instead of an inert
// double. Starting the decoder fires the first input-buffer-available
// event; each buffer the pipeline queues into the decoder is "decoded" into
// a matching encoder output sample one frame later; and the last sample's
// end-of-stream flag drives SignalEndOfInputStream, which in turn emits the
// encoder's own end-of-stream output. Without this, the decoder and encoder
// the pipeline drives never generate a single callback and Run blocks
// forever waiting on the message queue.
func wireDemoCodecs(decoder, encoder *pipeline.StubCodec) {
	decoder.StartFunc = func() error {
		decoder.Callback().OnInputBufferAvailable(decoder, 0)
		return nil
	}

	decoder.QueueInputBufferFunc = func(index int32, offset, size int32, pts int64, flags pipeline.BufferFlags) error {
		eos := flags&pipeline.BufferFlagEndOfStream != 0

		decoder.Callback().OnOutputBufferAvailable(decoder, index, pipeline.BufferInfo{
			Size:               size,
			PresentationTimeUs: pts,
			Flags:              flags,
		})
		if size > 0 {
			encoder.Callback().OnOutputBufferAvailable(encoder, index, pipeline.BufferInfo{
				Size:               demoSampleSize,
				PresentationTimeUs: pts,
			})
		}
		if !eos {
			decoder.Callback().OnInputBufferAvailable(decoder, index)
		}
		return nil
	}

	encoder.SignalEndOfInputStreamFunc = func() error {
		encoder.Callback().OnOutputBufferAvailable(encoder, 0, pipeline.BufferInfo{
			Flags: pipeline.BufferFlagEndOfStream,
		})
		return nil
	}
}
