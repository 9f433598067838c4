package scheduler

// StubTranscoderControl is a function-field test double for
// TranscoderControl, following the same pattern as pipeline.StubCodec:
// only the behavior a test cares about needs to be set. Every call is also
// recorded in Calls for tests asserting on invocation order.
type StubTranscoderControl struct {
	StartFunc  func(key Key, request Request, callback ClientCallback) error
	PauseFunc  func(key Key) error
	ResumeFunc func(key Key, request Request, callback ClientCallback) error
	StopFunc   func(key Key) error

	Calls []string
}

func (c *StubTranscoderControl) Start(key Key, request Request, callback ClientCallback) error {
	c.Calls = append(c.Calls, "start:"+keyStr(key))
	if c.StartFunc != nil {
		return c.StartFunc(key, request, callback)
	}
	return nil
}

func (c *StubTranscoderControl) Pause(key Key) error {
	c.Calls = append(c.Calls, "pause:"+keyStr(key))
	if c.PauseFunc != nil {
		return c.PauseFunc(key)
	}
	return nil
}

func (c *StubTranscoderControl) Resume(key Key, request Request, callback ClientCallback) error {
	c.Calls = append(c.Calls, "resume:"+keyStr(key))
	if c.ResumeFunc != nil {
		return c.ResumeFunc(key, request, callback)
	}
	return nil
}

func (c *StubTranscoderControl) Stop(key Key) error {
	c.Calls = append(c.Calls, "stop:"+keyStr(key))
	if c.StopFunc != nil {
		return c.StopFunc(key)
	}
	return nil
}

// StubSubmitterPolicy is a test double for SubmitterPolicy. TopSet reports
// the submitters IsOnTop should answer true for; Monitored records every
// currently-registered submitter.
type StubSubmitterPolicy struct {
	TopSet     map[string]struct{}
	Monitored  map[string]bool
}

func NewStubSubmitterPolicy() *StubSubmitterPolicy {
	return &StubSubmitterPolicy{
		TopSet:    map[string]struct{}{},
		Monitored: map[string]bool{},
	}
}

func (p *StubSubmitterPolicy) RegisterMonitor(submitterID string) {
	p.Monitored[submitterID] = true
}

func (p *StubSubmitterPolicy) UnregisterMonitor(submitterID string) {
	delete(p.Monitored, submitterID)
}

func (p *StubSubmitterPolicy) IsOnTop(submitterID string) bool {
	_, ok := p.TopSet[submitterID]
	return ok
}

func (p *StubSubmitterPolicy) GetTopSet() map[string]struct{} {
	return p.TopSet
}

// StubClientCallback records every lifecycle event delivered to it as a
// string, so tests can assert on ordering with a plain slice comparison.
type StubClientCallback struct {
	Events []string
	LastErr error
}

func (c *StubClientCallback) OnTranscodingStarted(key Key) {
	c.Events = append(c.Events, "started:"+keyStr(key))
}

func (c *StubClientCallback) OnTranscodingPaused(key Key) {
	c.Events = append(c.Events, "paused:"+keyStr(key))
}

func (c *StubClientCallback) OnTranscodingResumed(key Key) {
	c.Events = append(c.Events, "resumed:"+keyStr(key))
}

func (c *StubClientCallback) OnTranscodingProgress(key Key, progress float64) {
	c.Events = append(c.Events, "progress:"+keyStr(key))
}

func (c *StubClientCallback) OnTranscodingFinished(key Key) {
	c.Events = append(c.Events, "finished:"+keyStr(key))
}

func (c *StubClientCallback) OnTranscodingFailed(key Key, err error) {
	c.Events = append(c.Events, "failed:"+keyStr(key))
	c.LastErr = err
}
