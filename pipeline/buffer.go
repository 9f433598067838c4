package pipeline

import "sync"

// CodecHolder is a shared owner of a Codec instance that may outlive the
// pipeline that created it. The pipeline itself holds one reference; every
// MediaSample handed to the sink
// that still references a buffer from this codec holds another. The codec
// is stopped and closed only when the last reference is released — this is
// the explicit strong-reference-count stand-in for the "weak reference
// checked on the release path" idiom the design notes describe for
// languages without a GC-integrated weak pointer.
type CodecHolder struct {
	mu    sync.Mutex
	codec Codec
	refs  int
}

// NewCodecHolder wraps codec with an initial reference count of one,
// representing the pipeline's own ownership.
func NewCodecHolder(codec Codec) *CodecHolder {
	return &CodecHolder{codec: codec, refs: 1}
}

// Codec returns the underlying codec. Only valid to call while the caller
// holds a reference (i.e. between a Retain and its matching Release).
func (h *CodecHolder) Codec() Codec {
	return h.codec
}

// Retain adds a reference, e.g. one per outstanding MediaSample handed to
// the sink.
func (h *CodecHolder) Retain() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

// Release drops a reference. When the last reference goes away, the codec
// is stopped and closed.
func (h *CodecHolder) Release() {
	h.mu.Lock()
	h.refs--
	destroy := h.refs == 0
	h.mu.Unlock()
	if destroy {
		_ = h.codec.Stop()
		_ = h.codec.Close()
	}
}

// RefCount reports the current reference count, mainly for tests asserting
// that a codec has (or hasn't) been destroyed yet.
func (h *CodecHolder) RefCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// MediaSample is a reference-counted record over a codec-owned output
// buffer. Release must be called exactly once by whoever
// ultimately consumes it (the SampleSink); calling it additional times is a
// no-op so a sink that double-frees a sample can't double-release the
// underlying codec buffer.
type MediaSample struct {
	data               []byte
	Offset             int32
	Size               int32
	PresentationTimeUs int64
	Flags              BufferFlags

	once    sync.Once
	release func()
}

// NewMediaSample builds a sample over data[offset:offset+size], calling
// release exactly once when the sample is dropped.
func NewMediaSample(data []byte, offset, size int32, presentationTimeUs int64, flags BufferFlags, release func()) *MediaSample {
	return &MediaSample{
		data:               data,
		Offset:             offset,
		Size:               size,
		PresentationTimeUs: presentationTimeUs,
		Flags:              flags,
		release:            release,
	}
}

// Data returns the sample's payload.
func (s *MediaSample) Data() []byte {
	return s.data[s.Offset : s.Offset+s.Size]
}

func (s *MediaSample) IsEndOfStream() bool  { return s.Flags.has(BufferFlagEndOfStream) }
func (s *MediaSample) IsCodecConfig() bool  { return s.Flags.has(BufferFlagCodecConfig) }
func (s *MediaSample) IsPartialFrame() bool { return s.Flags.has(BufferFlagPartialFrame) }

// Release drops the sample, releasing its codec buffer back to the owning
// codec exactly once.
func (s *MediaSample) Release() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
