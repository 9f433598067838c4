package config

var Version string

// DefaultBitrate is the destination bit rate used when neither the caller
// nor the source reader can supply one.
const DefaultBitrate int64 = 10_000_000 // 10 Mbps

// DefaultKeyFrameIntervalSecs is the destination key-frame interval used
// when the caller leaves it unset.
const DefaultKeyFrameIntervalSecs = 1.0

// OfflineSubmitter is the platform's "no submitter" sentinel identity.
const OfflineSubmitter = "OFFLINE"

// DefaultListenAddr is cmd/transcodectl's default HTTP listen address.
var DefaultListenAddr = "127.0.0.1:8989"

// StartBackoffAttempts bounds how many times a TranscoderControl adapter
// may retry a transient TranscoderControl.start failure before surfacing
// it as onFailed (this is the one place the engine retries at the
// transport edge, not inside the scheduler's own decision logic).
const StartBackoffAttempts = 3
