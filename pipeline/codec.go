package pipeline

import (
	stderrors "errors"

	"github.com/livepeer/transcode-engine/video"
)

// BufferFlags carries the three bit-compatible flags a codec reports
// across the codec boundary.
type BufferFlags uint32

const (
	BufferFlagCodecConfig BufferFlags = 1 << iota
	BufferFlagEndOfStream
	BufferFlagPartialFrame
)

func (f BufferFlags) has(bit BufferFlags) bool { return f&bit != 0 }

// BufferInfo describes a codec output buffer's payload.
type BufferInfo struct {
	Offset             int32
	Size               int32
	PresentationTimeUs int64
	Flags              BufferFlags
}

// Surface is the opaque producer-surface handle a decoder renders into and
// an encoder consumes from. Its internals belong to the platform codec
// bindings, which are out of scope here.
type Surface interface{}

// Callback is the async event set a Codec delivers from arbitrary threads
// on arbitrary threads. Implementations must not run
// pipeline logic inline — every method here is expected to reify its event
// into a closure and enqueue it rather than mutate shared state directly.
type Callback interface {
	OnInputBufferAvailable(codec Codec, index int32)
	OnOutputBufferAvailable(codec Codec, index int32, info BufferInfo)
	OnOutputFormatChanged(codec Codec, format *video.Format)
	OnError(codec Codec, status error)
}

// Codec is the platform codec collaborator consumed by the pipeline. One
// instance represents either a decoder or an encoder.
type Codec interface {
	Configure(format *video.Format, surface Surface) error
	// CreateInputSurface is only meaningful on an encoder.
	CreateInputSurface() (Surface, error)
	SetCallback(cb Callback)
	Start() error
	Stop() error
	Close() error
	GetInputBuffer(index int32) ([]byte, error)
	GetOutputBuffer(index int32) ([]byte, error)
	QueueInputBuffer(index int32, offset, size int32, presentationTimeUs int64, flags BufferFlags) error
	ReleaseOutputBuffer(index int32, render bool) error
	SignalEndOfInputStream() error
	GetOutputFormat() *video.Format
}

// ErrNoCodecForMime is the sentinel a CodecFactory returns when it has no
// codec for the requested MIME; the pipeline turns this into an Unsupported
// error, distinguishing it from other codec-creation failures
// which propagate as CodecError.
var ErrNoCodecForMime = stderrors.New("no codec available for mime")

// CodecFactory creates decoder/encoder instances.
type CodecFactory interface {
	CreateDecoder(mime string) (Codec, error)
	CreateEncoder(mime string) (Codec, error)
}
