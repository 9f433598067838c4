package pipeline

import "github.com/livepeer/transcode-engine/video"

// SampleReader is the demuxer collaborator consumed by the pipeline.
// GetSampleInfoForTrack returns errors.EndOfStream once the track is
// exhausted.
type SampleReader interface {
	GetEstimatedBitrateForTrack(track int) (int64, error)
	GetSampleInfoForTrack(track int) (size int32, presentationTimeUs int64, flags BufferFlags, err error)
	ReadSampleDataForTrack(track int, dst []byte, size int32) error
}

// SampleSink is the muxer collaborator consumed by the pipeline.
// OnTrackFormatAvailable fires once, after the first encoder format change.
// The sink must drop every sample it receives, exactly once, via
// MediaSample.Release.
type SampleSink interface {
	OnTrackFormatAvailable(format *video.Format)
	OnSampleAvailable(sample *MediaSample)
}
