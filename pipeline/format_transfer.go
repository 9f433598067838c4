package pipeline

import (
	"github.com/livepeer/transcode-engine/config"
	"github.com/livepeer/transcode-engine/video"
)

// defaultBitrate and defaultKeyFrameIntervalSecs alias the package-level
// engine defaults so existing call sites and tests keep their names.
const defaultBitrate = config.DefaultBitrate
const defaultKeyFrameIntervalSecs = config.DefaultKeyFrameIntervalSecs

// applyDestinationDefaults fills the gaps a destination format needs closed
// before it can be used to configure an encoder.
func applyDestinationDefaults(dest *video.Format, reader SampleReader, track int) {
	if !dest.Has(video.KeyBitrate) {
		bitrate, err := reader.GetEstimatedBitrateForTrack(track)
		if err != nil || bitrate <= 0 {
			bitrate = defaultBitrate
		}
		dest.Set(video.KeyBitrate, bitrate)
	}
	if !dest.Has(video.KeyKeyFrameInterval) {
		dest.Set(video.KeyKeyFrameInterval, defaultKeyFrameIntervalSecs)
	}
	dest.Set(video.KeyColorFormat, video.ColorFormatSurface)
	dest.Set(video.KeyRotation, int32(0))
}

// decoderFormatFrom builds the format used to configure the decoder: a copy
// of the source format with the destination's operating-rate and priority
// overlaid.
func decoderFormatFrom(source, dest *video.Format) *video.Format {
	decoderFormat := source.Clone()
	if v, ok := dest.Get(video.KeyOperatingRate); ok {
		decoderFormat.Set(video.KeyOperatingRate, v)
	}
	if v, ok := dest.Get(video.KeyPriority); ok {
		decoderFormat.Set(video.KeyPriority, v)
	}
	return decoderFormat
}

// overlayContainerGeometry copies SAR/DAR/rotation/duration from the source
// format onto the encoder's actual output format when present and valid.
func overlayContainerGeometry(actual, source *video.Format) {
	if w, ok := source.GetInt64(video.KeySARWidth); ok && w > 0 {
		if h, ok := source.GetInt64(video.KeySARHeight); ok && h > 0 {
			actual.Set(video.KeySARWidth, w)
			actual.Set(video.KeySARHeight, h)
		}
	}
	if w, ok := source.GetInt64(video.KeyDARWidth); ok && w > 0 {
		if h, ok := source.GetInt64(video.KeyDARHeight); ok && h > 0 {
			actual.Set(video.KeyDARWidth, w)
			actual.Set(video.KeyDARHeight, h)
		}
	}
	if r, ok := source.GetInt64(video.KeyRotation); ok && r != 0 {
		actual.Set(video.KeyRotation, r)
	}
	if d, ok := source.GetFloat64(video.KeyDurationUs); ok && d > 0 {
		actual.Set(video.KeyDurationUs, d)
	}
}
