// Package pipeline implements the single-track video transcoding pipeline:
// an asymmetric decode -> surface -> encode pipeline driven by two
// asynchronous hardware codecs whose callbacks are serialized onto one
// message queue, plus the bounded FIFO and codec-lifetime primitives it's
// built from.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/log"
	"github.com/livepeer/transcode-engine/video"
)

// traceLevel is the -v level run-loop event tracing logs at; it's noisy
// enough (once per codec buffer) that it stays off at the default level.
const traceLevel = 4

// VideoTrackPipeline transcodes one video track end to end. It owns a
// decoder directly (destroyed with the pipeline) and an encoder through a
// CodecHolder that may outlive the pipeline while outstanding MediaSamples
// still reference its buffers.
type VideoTrackPipeline struct {
	requestID string
	track     int
	reader    SampleReader
	sink      SampleSink

	decoder       Codec
	encoderHolder *CodecHolder

	sourceFormat *video.Format
	destFormat   *video.Format

	// traceCtx carries requestID for the verbose, once-per-buffer event
	// tracing below; built once so every trace call doesn't re-tag it.
	traceCtx context.Context

	queue *messageQueue

	// The following fields are only ever mutated from closures executed on
	// the run-loop thread (enqueued via queue.push), so they need no lock of
	// their own beyond the queue's.
	eosFromSource    bool
	eosFromEncoder   bool
	stopRequested    bool
	formatPublished  bool
	errOnce          sync.Once
	err              error
}

// NewVideoTrackPipeline configures a decoder and an encoder for the given
// source/destination formats and wires them together through a producer
// surface. The reader and
// sink are retained for the lifetime of the pipeline; Run drives them.
func NewVideoTrackPipeline(requestID string, track int, sourceFormat, destFormat *video.Format, reader SampleReader, sink SampleSink, factory CodecFactory) (*VideoTrackPipeline, error) {
	srcMime := sourceFormat.MIME()
	dstMime := destFormat.MIME()
	if srcMime == "" || dstMime == "" {
		return nil, cerrors.NewInvalidArgumentError("source and destination formats must both specify a MIME type")
	}

	dest := destFormat.Clone()
	applyDestinationDefaults(dest, reader, track)

	encoder, err := factory.CreateEncoder(dstMime)
	if err != nil {
		if stderrors.Is(err, ErrNoCodecForMime) {
			return nil, cerrors.NewUnsupportedError(fmt.Sprintf("no encoder for mime %q", dstMime))
		}
		return nil, cerrors.NewCodecError("create encoder", err)
	}
	if err := encoder.Configure(dest, nil); err != nil {
		return nil, cerrors.NewCodecError("configure encoder", err)
	}
	surface, err := encoder.CreateInputSurface()
	if err != nil {
		return nil, cerrors.NewCodecError("create input surface", err)
	}

	decoder, err := factory.CreateDecoder(srcMime)
	if err != nil {
		if stderrors.Is(err, ErrNoCodecForMime) {
			return nil, cerrors.NewUnsupportedError(fmt.Sprintf("no decoder for mime %q", srcMime))
		}
		return nil, cerrors.NewCodecError("create decoder", err)
	}
	decoderFormat := decoderFormatFrom(sourceFormat, dest)
	decoderFormat.Set("allow-frame-dropping", false) // never overwrite frames the encoder hasn't consumed
	if err := decoder.Configure(decoderFormat, surface); err != nil {
		return nil, cerrors.NewCodecError("configure decoder", err)
	}

	p := &VideoTrackPipeline{
		requestID:     requestID,
		track:         track,
		reader:        reader,
		sink:          sink,
		decoder:       decoder,
		encoderHolder: NewCodecHolder(encoder),
		sourceFormat:  sourceFormat.Clone(),
		destFormat:    dest,
		traceCtx:      log.WithLogValues(context.Background(), "request_id", requestID),
		queue:         newMessageQueue(),
	}
	decoder.SetCallback(p)
	encoder.SetCallback(p)
	return p, nil
}

// Run drives the pipeline to completion on the calling goroutine, which
// should be a dedicated, priority-elevated thread. It blocks
// until the pipeline stops, the encoder reaches end-of-stream, or an error
// is latched, then stops the decoder and returns the terminal status: nil
// on clean completion, errors.Cancelled if Abort fired first, or the
// latched error otherwise.
func (p *VideoTrackPipeline) Run() error {
	// Bootstrap messages are queued, not executed inline, so that an Abort
	// submitted immediately after Run starts can still cancel them.
	p.queue.push(func() { p.startCodec(p.decoder, "decoder") }, false)
	p.queue.push(func() { p.startCodec(p.encoderHolder.Codec(), "encoder") }, false)
	return p.runLoop()
}

// runLoop pops and executes queued messages until a stop was requested, the
// encoder reached end-of-stream, or an error was latched. Split out from
// Run so tests can drive the message queue directly without racing Run's
// own bootstrap pushes against synchronously-queued test events.
func (p *VideoTrackPipeline) runLoop() error {
	for {
		item := p.queue.pop()
		if item == nil {
			break
		}
		item()
		if p.stopRequested || p.eosFromEncoder || p.err != nil {
			break
		}
	}
	p.queue.abort()
	if err := p.decoder.Stop(); err != nil {
		log.LogError(p.requestID, "error stopping decoder", err)
	}

	if p.stopRequested && !p.eosFromEncoder && p.err == nil {
		return cerrors.Cancelled
	}
	return p.err
}

// Abort requests that the pipeline stop as soon as possible. Safe to call
// from any thread, any number of times; calling it repeatedly is equivalent
// to calling it once.
func (p *VideoTrackPipeline) Abort() {
	p.queue.push(func() { p.stopRequested = true }, true)
}

// Close tears down the pipeline's own resources: the decoder is owned
// directly and destroyed now, while the encoder's CodecHolder only loses
// the pipeline's reference — it survives until every outstanding
// MediaSample releases its own reference.
func (p *VideoTrackPipeline) Close() {
	if err := p.decoder.Stop(); err != nil {
		log.LogError(p.requestID, "error stopping decoder on close", err)
	}
	if err := p.decoder.Close(); err != nil {
		log.LogError(p.requestID, "error closing decoder", err)
	}
	p.encoderHolder.Release()
}

func (p *VideoTrackPipeline) startCodec(codec Codec, name string) {
	if err := codec.Start(); err != nil {
		p.latchError(cerrors.NewCodecError("start "+name, err))
	}
}

func (p *VideoTrackPipeline) latchError(err error) {
	p.errOnce.Do(func() {
		p.err = err
		log.LogError(p.requestID, "pipeline error latched", err)
	})
}

// --- Callback implementation; every method here only reifies its event and
// enqueues it onto the run-loop queue. Because push is
// a no-op once the queue is aborted, an event delivered after the pipeline
// has torn down is silently dropped instead of touching pipeline state.

func (p *VideoTrackPipeline) OnInputBufferAvailable(codec Codec, index int32) {
	if codec == p.decoder {
		p.queue.push(func() { p.handleDecoderInputAvailable(index) }, false)
	}
	// The encoder is surface-driven; it has no input-buffer events to act on.
}

func (p *VideoTrackPipeline) OnOutputBufferAvailable(codec Codec, index int32, info BufferInfo) {
	if codec == p.decoder {
		p.queue.push(func() { p.handleDecoderOutputAvailable(index, info) }, false)
		return
	}
	p.queue.push(func() { p.handleEncoderOutputAvailable(index, info) }, false)
}

func (p *VideoTrackPipeline) OnOutputFormatChanged(codec Codec, format *video.Format) {
	if codec == p.decoder {
		return
	}
	p.queue.push(func() { p.handleEncoderFormatChanged(format) }, false)
}

func (p *VideoTrackPipeline) OnError(codec Codec, status error) {
	// Error events jump to the front of the queue so they cut ahead of any
	// backlog and stop the pipeline promptly.
	p.queue.push(func() { p.latchError(cerrors.NewCodecError("async codec error", status)) }, true)
}

// --- Event handlers; all run serially on the run-loop thread.

func (p *VideoTrackPipeline) handleDecoderInputAvailable(index int32) {
	log.V(traceLevel).LogCtx(p.traceCtx, "decoder input buffer available", "index", index)
	if p.eosFromSource {
		return
	}
	size, pts, flags, err := p.reader.GetSampleInfoForTrack(p.track)
	if stderrors.Is(err, cerrors.EndOfStream) {
		if qerr := p.decoder.QueueInputBuffer(index, 0, 0, 0, BufferFlagEndOfStream); qerr != nil {
			p.latchError(cerrors.NewCodecError("queue end-of-stream input buffer", qerr))
			return
		}
		p.eosFromSource = true
		return
	}
	if err != nil {
		p.latchError(cerrors.NewReaderError(err))
		return
	}

	buf, err := p.decoder.GetInputBuffer(index)
	if err != nil {
		p.latchError(cerrors.NewCodecError("get decoder input buffer", err))
		return
	}
	if buf == nil || int32(len(buf)) < size {
		p.latchError(cerrors.NewInvalidArgumentError("decoder input buffer too small for sample"))
		return
	}
	if err := p.reader.ReadSampleDataForTrack(p.track, buf, size); err != nil {
		p.latchError(cerrors.NewReaderError(err))
		return
	}
	if err := p.decoder.QueueInputBuffer(index, 0, size, pts, flags); err != nil {
		p.latchError(cerrors.NewCodecError("queue decoder input buffer", err))
	}
}

func (p *VideoTrackPipeline) handleDecoderOutputAvailable(index int32, info BufferInfo) {
	log.V(traceLevel).LogCtx(p.traceCtx, "decoder output buffer available", "index", index, "size", info.Size, "pts_us", info.PresentationTimeUs, "flags", info.Flags)
	render := info.Size > 0
	if err := p.decoder.ReleaseOutputBuffer(index, render); err != nil {
		p.latchError(cerrors.NewCodecError("release decoder output buffer", err))
		return
	}
	if info.Flags.has(BufferFlagEndOfStream) {
		if err := p.encoderHolder.Codec().SignalEndOfInputStream(); err != nil {
			p.latchError(cerrors.NewCodecError("signal end of input stream", err))
		}
	}
}

func (p *VideoTrackPipeline) handleEncoderOutputAvailable(index int32, info BufferInfo) {
	log.V(traceLevel).LogCtx(p.traceCtx, "encoder output buffer available", "index", index, "size", info.Size, "pts_us", info.PresentationTimeUs, "flags", info.Flags)
	encoder := p.encoderHolder.Codec()
	buf, err := encoder.GetOutputBuffer(index)
	if err != nil {
		p.latchError(cerrors.NewCodecError("get encoder output buffer", err))
		return
	}

	holder := p.encoderHolder
	holder.Retain()
	sample := NewMediaSample(buf, info.Offset, info.Size, info.PresentationTimeUs, info.Flags, func() {
		_ = holder.Codec().ReleaseOutputBuffer(index, false)
		holder.Release()
	})
	p.sink.OnSampleAvailable(sample)

	if info.Flags.has(BufferFlagEndOfStream) {
		p.eosFromEncoder = true
	}
}

func (p *VideoTrackPipeline) handleEncoderFormatChanged(format *video.Format) {
	log.V(traceLevel).LogCtx(p.traceCtx, "encoder output format changed", "format", format.String())
	// Only the first format-changed event is authoritative; a second one is
	// a no-op.
	if p.formatPublished {
		return
	}
	p.formatPublished = true

	actual := format.Clone()
	overlayContainerGeometry(actual, p.sourceFormat)
	p.sink.OnTrackFormatAvailable(actual)
}
