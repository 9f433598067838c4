// Package scheduler implements the priority-aware transcode session
// registry: a mutex-protected map of sessions grouped by submitter id,
// ordered by foreground priority, driving exactly one active session
// through an injected TranscoderControl.
package scheduler

import (
	"fmt"

	"github.com/livepeer/transcode-engine/config"
)

// Key identifies a session by the client that submitted it and the
// client-assigned session id. Immutable once a session is created.
type Key struct {
	ClientID  string
	SessionID int64
}

// String renders the composite "client:session" form used as the cache key
// and in log lines.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.ClientID, k.SessionID)
}

// Offline is the platform's "no submitter" sentinel identity. Every
// SubmitterOrder carries exactly one queue for
// it, pinned at the back, holding every session whose request priority is
// PriorityUnspecified regardless of its nominal submitter id.
const Offline = config.OfflineSubmitter

// Priority classifies a Request's urgency. PriorityUnspecified routes a
// session to the Offline submitter regardless of its SubmitterID.
type Priority int

const (
	PriorityUnspecified Priority = iota
	PriorityRealtime
)

// State is a session's lifecycle stage.
type State int

const (
	NotStarted State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Request is the opaque descriptor a client submits: source/destination
// paths, priority, and format options. The scheduler never inspects
// anything but Priority and SubmitterID.
type Request struct {
	SubmitterID string
	Priority    Priority
	Source      string
	Destination string
	Options     map[string]string
}

// ClientCallback is the weak-lifetime notification sink a session's client
// receives lifecycle events on. The scheduler calls it synchronously but
// never while holding its own lock; implementations should be
// non-blocking or hand off to their own queue.
type ClientCallback interface {
	OnTranscodingStarted(key Key)
	OnTranscodingPaused(key Key)
	OnTranscodingResumed(key Key)
	OnTranscodingProgress(key Key, progress float64)
	OnTranscodingFinished(key Key)
	OnTranscodingFailed(key Key, err error)
}

// TranscoderControl is the single active-pipeline driver the scheduler
// coordinates. Calls happen under the scheduler's lock; implementations
// must not call back into the scheduler synchronously and should be
// non-blocking or only briefly blocking.
type TranscoderControl interface {
	Start(key Key, request Request, callback ClientCallback) error
	Pause(key Key) error
	Resume(key Key, request Request, callback ClientCallback) error
	Stop(key Key) error
}

// SubmitterPolicy tracks which submitter ids the platform currently
// considers foreground. RegisterMonitor and
// UnregisterMonitor bracket a submitter's lifetime in SubmitterOrder;
// IsOnTop and GetTopSet answer point-in-time queries the scheduler uses
// when deciding where to insert a newly-seen submitter.
type SubmitterPolicy interface {
	RegisterMonitor(submitterID string)
	UnregisterMonitor(submitterID string)
	IsOnTop(submitterID string) bool
	GetTopSet() map[string]struct{}
}
