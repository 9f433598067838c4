// Package video defines the track-format representation the pipeline passes
// between the SampleReader, the codecs and the SampleSink: a single track's
// MIME, geometry and encoding knobs, modeled as a loosely typed key/value bag
// the way platform codec formats are (MediaFormat on Android, AVFormatContext
// fields elsewhere) rather than a fixed struct per codec.
package video

import "fmt"

// Well-known format keys, shared across source, destination and actual
// output formats. Not every key applies to every format; callers look them
// up with the typed getters below and treat a missing key as "unset".
const (
	KeyMIME              = "mime"
	KeyBitrate           = "bitrate"
	KeyKeyFrameInterval  = "i-frame-interval" // seconds, float
	KeyColorFormat       = "color-format"
	KeyRotation          = "rotation-degrees"
	KeyOperatingRate     = "operating-rate"
	KeyPriority          = "priority"
	KeySARWidth          = "sar-width"
	KeySARHeight         = "sar-height"
	KeyDARWidth          = "dar-width"
	KeyDARHeight         = "dar-height"
	KeyDurationUs        = "duration-us"
	KeyWidth             = "width"
	KeyHeight            = "height"
	KeyCodecSpecificData = "csd"
)

// ColorFormatSurface is the sentinel color-format value that tells an
// encoder its input will arrive via a producer surface rather than raw
// buffers.
const ColorFormatSurface int32 = -1 // platform-reserved "Surface" color format

// Format is a generic, loosely typed track format: MIME plus an open set of
// codec/container keys. It intentionally mirrors the shape of a platform
// MediaFormat rather than a fixed Go struct, because the pipeline both reads
// keys it knows about and blindly carries over keys (like CSD) it doesn't
// need to interpret.
type Format struct {
	values map[string]any
}

// NewFormat returns an empty format.
func NewFormat() *Format {
	return &Format{values: map[string]any{}}
}

// Clone returns a shallow copy; safe because all values stored are either
// immutable scalars or byte slices treated as copy-on-write by convention.
func (f *Format) Clone() *Format {
	out := NewFormat()
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

func (f *Format) Set(key string, value any) { f.values[key] = value }

func (f *Format) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *Format) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *Format) MIME() string {
	s, _ := f.values[KeyMIME].(string)
	return s
}

func (f *Format) GetInt64(key string) (int64, bool) {
	switch v := f.values[key].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func (f *Format) GetFloat64(key string) (float64, bool) {
	switch v := f.values[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

func (f *Format) String() string {
	return fmt.Sprintf("Format(mime=%s, keys=%d)", f.MIME(), len(f.values))
}
