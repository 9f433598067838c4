package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func realtimeRequest(submitter string) Request {
	return Request{SubmitterID: submitter, Priority: PriorityRealtime}
}

// TestBasicSubmitRunFinish covers the basic submit -> run -> finish path.
func TestBasicSubmitRunFinish(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	s := NewScheduler(control, policy)
	cb := &StubClientCallback{}

	key := Key{ClientID: "1", SessionID: 1}
	require.True(t, s.Submit(key, "100", realtimeRequest("100"), cb))
	require.Equal(t, []string{"start:1:1"}, control.Calls)

	req, ok := s.GetSession(key)
	require.True(t, ok)
	require.Equal(t, "100", req.SubmitterID)

	s.OnFinished(key)
	require.Equal(t, []string{"finished:1:1"}, cb.Events)
	_, ok = s.GetSession(key)
	require.False(t, ok)
	require.Nil(t, s.current)
	requireEmptyScheduler(t, s)
}

// TestPreemptionByTopSubmitterChange covers preemption driven by a change
// to the top-submitter set.
func TestPreemptionByTopSubmitterChange(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	policy.TopSet = map[string]struct{}{"100": {}}
	s := NewScheduler(control, policy)
	cbA := &StubClientCallback{}
	cbB := &StubClientCallback{}

	a := Key{ClientID: "1", SessionID: 1}
	b := Key{ClientID: "2", SessionID: 2}
	require.True(t, s.Submit(a, "100", realtimeRequest("100"), cbA))
	require.True(t, s.Submit(b, "200", realtimeRequest("200"), cbB))
	require.Equal(t, []string{"start:1:1"}, control.Calls)

	control.Calls = nil
	s.OnTopSubmittersChanged(map[string]struct{}{"200": {}})
	require.Equal(t, []string{"pause:1:1", "start:2:2"}, control.Calls)

	control.Calls = nil
	s.OnTopSubmittersChanged(map[string]struct{}{"100": {}})
	require.Equal(t, []string{"pause:2:2", "resume:1:1"}, control.Calls)
}

// TestResourceLoss covers pausing on resource loss and resuming on its
// return.
func TestResourceLoss(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	policy.TopSet = map[string]struct{}{"100": {}}
	s := NewScheduler(control, policy)
	cb := &StubClientCallback{}

	a := Key{ClientID: "1", SessionID: 1}
	require.True(t, s.Submit(a, "100", realtimeRequest("100"), cb))
	require.Equal(t, []string{"start:1:1"}, control.Calls)

	control.Calls = nil
	s.OnResourceLost()
	require.Empty(t, control.Calls, "resource loss must not invoke TranscoderControl")
	require.Equal(t, []string{"paused:1:1"}, cb.Events)

	c := Key{ClientID: "3", SessionID: 3}
	cbC := &StubClientCallback{}
	require.True(t, s.Submit(c, "300", realtimeRequest("300"), cbC))
	require.Empty(t, control.Calls, "no start while resource is lost")

	s.OnResourceAvailable()
	require.NotEmpty(t, control.Calls)
}

// TestOfflineRouting covers routing an unspecified-priority session to the
// Offline submitter.
func TestOfflineRouting(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	s := NewScheduler(control, policy)
	cb := &StubClientCallback{}

	key := Key{ClientID: "1", SessionID: 1}
	require.True(t, s.Submit(key, "999", Request{SubmitterID: "999", Priority: PriorityUnspecified}, cb))
	require.Equal(t, 0, len(policy.Monitored), "offline sessions never register with the submitter policy")
	require.Equal(t, []string{"start:1:1"}, control.Calls)
}

func TestSubmitRejectsDuplicateKey(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	s := NewScheduler(control, policy)
	key := Key{ClientID: "1", SessionID: 1}
	require.True(t, s.Submit(key, "100", realtimeRequest("100"), &StubClientCallback{}))
	require.False(t, s.Submit(key, "100", realtimeRequest("100"), &StubClientCallback{}))
}

func TestCancelNegativeSessionIDOnlyCancelsRealtimeSessions(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	policy.TopSet = map[string]struct{}{"100": {}}
	s := NewScheduler(control, policy)

	realtime := Key{ClientID: "1", SessionID: 1}
	offline := Key{ClientID: "1", SessionID: 2}
	require.True(t, s.Submit(realtime, "100", realtimeRequest("100"), &StubClientCallback{}))
	require.True(t, s.Submit(offline, "100", Request{SubmitterID: "100", Priority: PriorityUnspecified}, &StubClientCallback{}))

	require.True(t, s.Cancel("1", -1))
	_, ok := s.GetSession(realtime)
	require.False(t, ok)
	_, ok = s.GetSession(offline)
	require.True(t, ok, "offline sessions must survive a cancel(-1)")
}

func TestCancelUnknownSessionReturnsFalse(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	s := NewScheduler(control, policy)
	require.False(t, s.Cancel("nobody", 1))
}

func TestCancelPausedSessionStillCallsStop(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	policy.TopSet = map[string]struct{}{"100": {}}
	s := NewScheduler(control, policy)

	key := Key{ClientID: "1", SessionID: 1}
	require.True(t, s.Submit(key, "100", realtimeRequest("100"), &StubClientCallback{}))
	s.OnResourceLost()

	control.Calls = nil
	require.True(t, s.Cancel("1", 1))
	require.Contains(t, control.Calls, "stop:1:1")
}

func TestPipelineEventsIgnoredForUnknownSession(t *testing.T) {
	control := &StubTranscoderControl{
		StartFunc: func(Key, Request, ClientCallback) error { return nil },
	}
	policy := NewStubSubmitterPolicy()
	// Nothing is submitted, so key is unknown to the scheduler.
	s := NewScheduler(control, policy)
	cb := &StubClientCallback{}
	key := Key{ClientID: "1", SessionID: 1}

	// A progress/started event for a key that was never submitted must be
	// dropped silently, not panic.
	s.OnStarted(key)
	s.OnProgress(key, 50)
	require.Empty(t, cb.Events)
}

// TestOnFailedNotifiesAndRemoves exercises the single-notification failure
// path: the scheduler never retries a failed session.
func TestOnFailedNotifiesAndRemoves(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	s := NewScheduler(control, policy)
	cb := &StubClientCallback{}
	key := Key{ClientID: "1", SessionID: 1}
	require.True(t, s.Submit(key, "100", realtimeRequest("100"), cb))

	failure := errors.New("encoder hardware fault")
	s.OnFailed(key, failure)
	require.Equal(t, []string{"failed:1:1"}, cb.Events)
	require.ErrorIs(t, cb.LastErr, failure)
	_, ok := s.GetSession(key)
	require.False(t, ok)
}

// TestRemovingEverySessionRestoresInitialShape covers the invariant that
// removing every session returns the scheduler to its initial shape.
func TestRemovingEverySessionRestoresInitialShape(t *testing.T) {
	control := &StubTranscoderControl{}
	policy := NewStubSubmitterPolicy()
	policy.TopSet = map[string]struct{}{"100": {}, "200": {}}
	s := NewScheduler(control, policy)

	a := Key{ClientID: "1", SessionID: 1}
	b := Key{ClientID: "2", SessionID: 2}
	require.True(t, s.Submit(a, "100", realtimeRequest("100"), &StubClientCallback{}))
	require.True(t, s.Submit(b, "200", realtimeRequest("200"), &StubClientCallback{}))

	s.OnFinished(a)
	s.OnFinished(b)

	requireEmptyScheduler(t, s)
	require.Empty(t, policy.Monitored)
}

func requireEmptyScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, 1, s.order.Len())
	require.Equal(t, Offline, s.order.Front().Value.(string))
	require.Equal(t, 0, len(s.queues[Offline]))
	require.Nil(t, s.current)
}
