package pipeline

import (
	stderrors "errors"

	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/video"
)

var (
	errNoEstimate  = stderrors.New("no bitrate estimate available")
	errEndOfStream = cerrors.EndOfStream
)

// StubCodec is a test double for Codec, using the function-field pattern:
// only the behavior a given test cares about needs to be set, everything
// else uses a sane zero-value default instead of panicking.
type StubCodec struct {
	Name string

	ConfigureFunc             func(format *video.Format, surface Surface) error
	CreateInputSurfaceFunc    func() (Surface, error)
	StartFunc                 func() error
	StopFunc                  func() error
	CloseFunc                 func() error
	GetInputBufferFunc        func(index int32) ([]byte, error)
	GetOutputBufferFunc       func(index int32) ([]byte, error)
	QueueInputBufferFunc      func(index int32, offset, size int32, presentationTimeUs int64, flags BufferFlags) error
	ReleaseOutputBufferFunc   func(index int32, render bool) error
	SignalEndOfInputStreamFunc func() error
	GetOutputFormatFunc       func() *video.Format

	cb Callback

	StopCalled  bool
	CloseCalled bool
}

func (c *StubCodec) Configure(format *video.Format, surface Surface) error {
	if c.ConfigureFunc != nil {
		return c.ConfigureFunc(format, surface)
	}
	return nil
}

func (c *StubCodec) CreateInputSurface() (Surface, error) {
	if c.CreateInputSurfaceFunc != nil {
		return c.CreateInputSurfaceFunc()
	}
	return nil, nil
}

func (c *StubCodec) SetCallback(cb Callback) { c.cb = cb }

func (c *StubCodec) Callback() Callback { return c.cb }

func (c *StubCodec) Start() error {
	if c.StartFunc != nil {
		return c.StartFunc()
	}
	return nil
}

func (c *StubCodec) Stop() error {
	c.StopCalled = true
	if c.StopFunc != nil {
		return c.StopFunc()
	}
	return nil
}

func (c *StubCodec) Close() error {
	c.CloseCalled = true
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}

func (c *StubCodec) GetInputBuffer(index int32) ([]byte, error) {
	if c.GetInputBufferFunc != nil {
		return c.GetInputBufferFunc(index)
	}
	return make([]byte, 4096), nil
}

func (c *StubCodec) GetOutputBuffer(index int32) ([]byte, error) {
	if c.GetOutputBufferFunc != nil {
		return c.GetOutputBufferFunc(index)
	}
	return make([]byte, 4096), nil
}

func (c *StubCodec) QueueInputBuffer(index int32, offset, size int32, presentationTimeUs int64, flags BufferFlags) error {
	if c.QueueInputBufferFunc != nil {
		return c.QueueInputBufferFunc(index, offset, size, presentationTimeUs, flags)
	}
	return nil
}

func (c *StubCodec) ReleaseOutputBuffer(index int32, render bool) error {
	if c.ReleaseOutputBufferFunc != nil {
		return c.ReleaseOutputBufferFunc(index, render)
	}
	return nil
}

func (c *StubCodec) SignalEndOfInputStream() error {
	if c.SignalEndOfInputStreamFunc != nil {
		return c.SignalEndOfInputStreamFunc()
	}
	return nil
}

func (c *StubCodec) GetOutputFormat() *video.Format {
	if c.GetOutputFormatFunc != nil {
		return c.GetOutputFormatFunc()
	}
	return video.NewFormat()
}

// StubCodecFactory hands back pre-built decoder/encoder stubs, or an error
// if the requested MIME isn't in its map.
type StubCodecFactory struct {
	Decoders map[string]Codec
	Encoders map[string]Codec
}

func (f *StubCodecFactory) CreateDecoder(mime string) (Codec, error) {
	if c, ok := f.Decoders[mime]; ok {
		return c, nil
	}
	return nil, ErrNoCodecForMime
}

func (f *StubCodecFactory) CreateEncoder(mime string) (Codec, error) {
	if c, ok := f.Encoders[mime]; ok {
		return c, nil
	}
	return nil, ErrNoCodecForMime
}

// StubSampleReader serves samples from an in-memory list, returning
// errors.EndOfStream once exhausted.
type StubSampleReader struct {
	Bitrate int64
	Samples []StubSample

	pos int
}

type StubSample struct {
	Data  []byte
	PtsUs int64
	Flags BufferFlags
}

func (r *StubSampleReader) GetEstimatedBitrateForTrack(track int) (int64, error) {
	if r.Bitrate <= 0 {
		return 0, errNoEstimate
	}
	return r.Bitrate, nil
}

func (r *StubSampleReader) GetSampleInfoForTrack(track int) (int32, int64, BufferFlags, error) {
	if r.pos >= len(r.Samples) {
		return 0, 0, 0, errEndOfStream
	}
	s := r.Samples[r.pos]
	return int32(len(s.Data)), s.PtsUs, s.Flags, nil
}

func (r *StubSampleReader) ReadSampleDataForTrack(track int, dst []byte, size int32) error {
	if r.pos >= len(r.Samples) {
		return errEndOfStream
	}
	s := r.Samples[r.pos]
	copy(dst, s.Data)
	r.pos++
	return nil
}

// StubSampleSink records every sample and format handed to it, a
// recorder-callback double that lets tests assert on what was delivered
// after the fact rather than from inside the sink.
type StubSampleSink struct {
	Formats []*video.Format
	Samples []*MediaSample
}

func (s *StubSampleSink) OnTrackFormatAvailable(format *video.Format) {
	s.Formats = append(s.Formats, format)
}

func (s *StubSampleSink) OnSampleAvailable(sample *MediaSample) {
	s.Samples = append(s.Samples, sample)
}
