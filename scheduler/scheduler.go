package scheduler

import (
	"container/list"
	"sort"
	"sync"

	"github.com/livepeer/transcode-engine/cache"
	"github.com/livepeer/transcode-engine/log"
)

// session is the scheduler's private record for one submitted transcode.
// Only Scheduler, under its lock, ever mutates one.
type session struct {
	key         Key
	submitterID string
	state       State
	lastProgress float64
	request     Request
	callback    ClientCallback

	// everStarted is true once TranscoderControl.Start or Resume has been
	// invoked for this session at least once. onStarted/onPaused/onResumed/
	// onProgress callbacks that race ahead of that point are dropped.
	everStarted bool
}

// Scheduler is the priority-aware session registry: a mutex-protected map
// of sessions, ordered by submitter priority, driving one active session at
// a time. A single mutex protects every field; TranscoderControl calls
// happen while it is held, so a TranscoderControl implementation must never
// call back into the scheduler synchronously.
type Scheduler struct {
	mu sync.Mutex

	control TranscoderControl
	policy  SubmitterPolicy

	sessions *cache.Cache[*session]

	// order is the SubmitterOrder: front-to-back by descending priority,
	// with Offline pinned at the back via offlineElem. submitterElems indexes
	// into it for O(1) move-to-front.
	order          *list.List
	offlineElem    *list.Element
	submitterElems map[string]*list.Element
	queues         map[string][]Key

	current      *Key
	resourceLost bool
}

// NewScheduler builds a Scheduler with only the Offline submitter present,
// holding no sessions.
func NewScheduler(control TranscoderControl, policy SubmitterPolicy) *Scheduler {
	order := list.New()
	offlineElem := order.PushBack(Offline)
	return &Scheduler{
		control:        control,
		policy:         policy,
		sessions:       cache.New[*session](),
		order:          order,
		offlineElem:    offlineElem,
		submitterElems: make(map[string]*list.Element),
		queues:         map[string][]Key{Offline: {}},
	}
}

func keyStr(key Key) string {
	return key.String()
}

func (s *Scheduler) lookup(key Key) *session {
	return s.sessions.Get(keyStr(key))
}

// Submit registers a new session. Returns false without side effects if
// the key already exists.
func (s *Scheduler) Submit(key Key, submitterID string, request Request, callback ClientCallback) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) != nil {
		return false
	}

	effectiveSubmitter := submitterID
	if request.Priority == PriorityUnspecified {
		effectiveSubmitter = Offline
	}

	queue, exists := s.queues[effectiveSubmitter]
	if !exists {
		s.policy.RegisterMonitor(effectiveSubmitter)
		var elem *list.Element
		if s.policy.IsOnTop(effectiveSubmitter) {
			elem = s.order.PushFront(effectiveSubmitter)
		} else {
			elem = s.order.InsertBefore(effectiveSubmitter, s.offlineElem)
		}
		s.submitterElems[effectiveSubmitter] = elem
	} else if effectiveSubmitter != Offline {
		elem := s.submitterElems[effectiveSubmitter]
		if s.order.Front() != elem && s.policy.IsOnTop(effectiveSubmitter) {
			s.order.MoveToFront(elem)
		}
	}
	queue = append(queue, key)
	s.queues[effectiveSubmitter] = queue

	s.sessions.Store(keyStr(key), &session{
		key:         key,
		submitterID: effectiveSubmitter,
		state:       NotStarted,
		request:     request,
		callback:    callback,
	})
	log.Log(keyStr(key), "session submitted", "submitter", effectiveSubmitter, "priority", request.Priority)

	s.updateCurrentSessionLocked()
	return true
}

// Cancel removes one session, or every real-time session owned by clientID
// when sessionID is negative.
func (s *Scheduler) Cancel(clientID string, sessionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := false
	if sessionID < 0 {
		var keys []Key
		for submitterID, queue := range s.queues {
			if submitterID == Offline {
				continue
			}
			for _, k := range queue {
				if k.ClientID == clientID {
					keys = append(keys, k)
				}
			}
		}
		for _, k := range keys {
			if s.cancelSessionLocked(k) {
				cancelled = true
			}
		}
	} else {
		cancelled = s.cancelSessionLocked(Key{ClientID: clientID, SessionID: sessionID})
	}

	s.updateCurrentSessionLocked()
	return cancelled
}

func (s *Scheduler) cancelSessionLocked(key Key) bool {
	sess := s.lookup(key)
	if sess == nil {
		return false
	}
	if sess.state != NotStarted {
		// Stop even if Paused so the pipeline can release retained state.
		if err := s.control.Stop(key); err != nil {
			log.LogError(keyStr(key), "error stopping cancelled session", err)
		}
	}
	s.removeSessionLocked(key)
	return true
}

// GetSession returns a read-only copy of a session's request, or false if
// it does not exist.
func (s *Scheduler) GetSession(key Key) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(key)
	if sess == nil {
		return Request{}, false
	}
	return sess.request, true
}

// OnStarted forwards a pipeline-started event to the session's client
// callback.
func (s *Scheduler) OnStarted(key Key) {
	cb, notify := s.forwardableCallback(key)
	if notify {
		cb.OnTranscodingStarted(key)
	}
}

// OnPaused forwards a pipeline-paused event. It does not itself mutate
// session state — pipeline-initiated pause is observational only.
func (s *Scheduler) OnPaused(key Key) {
	cb, notify := s.forwardableCallback(key)
	if notify {
		cb.OnTranscodingPaused(key)
	}
}

// OnResumed forwards a pipeline-resumed event.
func (s *Scheduler) OnResumed(key Key) {
	cb, notify := s.forwardableCallback(key)
	if notify {
		cb.OnTranscodingResumed(key)
	}
}

// OnProgress forwards a pipeline progress update and records it on the
// session, where Snapshot reports it.
func (s *Scheduler) OnProgress(key Key, progress float64) {
	s.mu.Lock()
	sess := s.lookup(key)
	var cb ClientCallback
	notify := sess != nil && sess.everStarted
	if notify {
		sess.lastProgress = progress
		cb = sess.callback
	}
	s.mu.Unlock()
	if notify {
		cb.OnTranscodingProgress(key, progress)
	}
}

// forwardableCallback returns the session's client callback if it exists
// and has ever been started, dropping events that race ahead of the
// scheduler's own state update.
func (s *Scheduler) forwardableCallback(key Key) (ClientCallback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(key)
	if sess == nil || !sess.everStarted {
		return nil, false
	}
	return sess.callback, true
}

// OnFinished removes the session and notifies its client. A finished event
// for an already-removed session is dropped silently.
func (s *Scheduler) OnFinished(key Key) {
	s.mu.Lock()
	sess := s.lookup(key)
	if sess == nil {
		s.mu.Unlock()
		return
	}
	cb := sess.callback
	s.removeSessionLocked(key)
	s.updateCurrentSessionLocked()
	s.mu.Unlock()
	cb.OnTranscodingFinished(key)
}

// OnFailed removes the session and notifies its client of the failure. The
// scheduler never retries: this is the session's one and only failure
// notification.
func (s *Scheduler) OnFailed(key Key, err error) {
	s.mu.Lock()
	sess := s.lookup(key)
	if sess == nil {
		s.mu.Unlock()
		return
	}
	cb := sess.callback
	s.removeSessionLocked(key)
	s.updateCurrentSessionLocked()
	s.mu.Unlock()
	cb.OnTranscodingFailed(key, err)
}

// OnTopSubmittersChanged reorders SubmitterOrder to match a new top set,
// preserving the current front submitter at front if it remains in the set.
func (s *Scheduler) OnTopSubmittersChanged(set map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyTopSetLocked(set, true)
	s.updateCurrentSessionLocked()
}

// applyTopSetLocked moves every submitter in set that is already present in
// SubmitterOrder to the front. When preserveFront is true and the current
// front submitter is itself in set, it is moved last so it remains at
// front.
func (s *Scheduler) applyTopSetLocked(set map[string]struct{}, preserveFront bool) {
	preserved := ""
	if preserveFront {
		if front := s.order.Front(); front != nil {
			if id, _ := front.Value.(string); id != Offline {
				if _, inSet := set[id]; inSet {
					preserved = id
				}
			}
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		if id == Offline || id == preserved {
			continue
		}
		if _, ok := s.submitterElems[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.order.MoveToFront(s.submitterElems[id])
	}
	if preserved != "" {
		s.order.MoveToFront(s.submitterElems[preserved])
	}
}

// OnResourceLost marks the platform's hardware unavailable. If a session is
// Running it is paused without a Stop call (the resource owner already
// paused the hardware) and the client is notified. Idempotent.
func (s *Scheduler) OnResourceLost() {
	s.mu.Lock()
	var cb ClientCallback
	var key Key
	notify := false
	if !s.resourceLost {
		s.resourceLost = true
		if s.current != nil {
			if sess := s.lookup(*s.current); sess != nil && sess.state == Running {
				sess.state = Paused
				cb = sess.callback
				key = *s.current
				notify = true
			}
		}
	}
	s.mu.Unlock()
	if notify {
		cb.OnTranscodingPaused(key)
	}
}

// OnResourceAvailable clears the resource-lost flag and re-evaluates the
// current session. A no-op when the resource was not lost.
func (s *Scheduler) OnResourceAvailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resourceLost {
		return
	}
	s.resourceLost = false
	s.updateCurrentSessionLocked()
}

// updateCurrentSessionLocked re-evaluates which session should be current
// and drives the TranscoderControl transitions needed to get there.
func (s *Scheduler) updateCurrentSessionLocked() {
	top := s.topSessionLocked()
	if top == nil {
		// removeSessionLocked already clears current whenever the session it
		// removed was current, so an empty scheduler has current == nil too.
		return
	}

	topSess := s.lookup(*top)
	differs := s.current == nil || *s.current != *top
	if !differs && topSess.state == Running {
		return
	}

	if s.current != nil {
		if curSess := s.lookup(*s.current); curSess != nil && curSess.state == Running {
			if err := s.control.Pause(*s.current); err != nil {
				log.LogError(keyStr(*s.current), "error pausing session", err)
			}
			curSess.state = Paused
		}
	}

	if !s.resourceLost {
		switch topSess.state {
		case NotStarted:
			if err := s.control.Start(*top, topSess.request, topSess.callback); err != nil {
				log.LogError(keyStr(*top), "error starting session", err)
			}
			topSess.everStarted = true
		case Paused:
			if err := s.control.Resume(*top, topSess.request, topSess.callback); err != nil {
				log.LogError(keyStr(*top), "error resuming session", err)
			}
			topSess.everStarted = true
		}
		topSess.state = Running
	}

	s.current = top
}

// topSessionLocked returns the first session key in the first submitter's
// queue. Because Offline is pinned at the back and every other submitter's
// queue is removed the moment it empties (removeSessionLocked), the front
// submitter's queue is only ever empty when the whole scheduler is empty —
// so there is no need to scan past the front element.
func (s *Scheduler) topSessionLocked() *Key {
	front := s.order.Front()
	if front == nil {
		return nil
	}
	submitterID, _ := front.Value.(string)
	queue := s.queues[submitterID]
	if len(queue) == 0 {
		return nil
	}
	k := queue[0]
	return &k
}

// removeSessionLocked erases key from its submitter queue and the session
// registry, tearing down the submitter's queue and SubmitterOrder entry
// when it becomes empty.
func (s *Scheduler) removeSessionLocked(key Key) {
	sess := s.lookup(key)
	if sess == nil {
		return
	}
	submitterID := sess.submitterID
	queue := s.queues[submitterID]
	for i, k := range queue {
		if k == key {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	s.queues[submitterID] = queue

	if len(queue) == 0 && submitterID != Offline {
		delete(s.queues, submitterID)
		if elem, ok := s.submitterElems[submitterID]; ok {
			s.order.Remove(elem)
			delete(s.submitterElems, submitterID)
		}
		s.policy.UnregisterMonitor(submitterID)
		// Re-apply without the preserve-front guarantee: the queue that just
		// vanished may have been the preserved front itself.
		s.applyTopSetLocked(s.policy.GetTopSet(), false)
	}

	s.sessions.Remove(keyStr(key))
	if s.current != nil && *s.current == key {
		s.current = nil
	}
}

// SessionView is a read-only snapshot of one session, used by the operator
// HTTP surface (cmd/transcodectl) — not part of the core scheduler contract.
type SessionView struct {
	Key          Key
	SubmitterID  string
	State        State
	LastProgress float64
}

// Snapshot returns a point-in-time copy of every session currently tracked,
// for the `/sessions` debug endpoint.
func (s *Scheduler) Snapshot() []SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]SessionView, 0)
	for _, queue := range s.queues {
		for _, key := range queue {
			if sess := s.lookup(key); sess != nil {
				views = append(views, SessionView{
					Key:          sess.key,
					SubmitterID:  sess.submitterID,
					State:        sess.state,
					LastProgress: sess.lastProgress,
				})
			}
		}
	}
	return views
}
