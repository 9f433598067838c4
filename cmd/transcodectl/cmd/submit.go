package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/livepeer/transcode-engine/control"
	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/log"
	"github.com/livepeer/transcode-engine/metrics"
	"github.com/livepeer/transcode-engine/scheduler"
)

var submitSubmitter string
var submitPriority string
var submitCancelAfter time.Duration

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Run one demo transcode session through the scheduler and exit",
	Long: `submit drives the scheduler end to end against the built-in
DemoBuilder (stub codecs, no real hardware) and blocks until the session
finishes, prints its outcome, and exits — useful for exercising the
scheduler and pipeline wiring without standing up a server. With
--cancel-after, it cancels the session itself instead of waiting for it to
reach end-of-stream, exercising the same Scheduler.Cancel path an operator
surface would call.`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitSubmitter, "submitter", "demo", "submitter id the session is attributed to")
	submitCmd.Flags().StringVar(&submitPriority, "priority", "realtime", "session priority: realtime or unspecified")
	submitCmd.Flags().DurationVar(&submitCancelAfter, "cancel-after", 0, "cancel the session after this long instead of waiting for it to finish (0 disables)")
}

// waitCallback blocks runSubmit until the session reaches a terminal state,
// whichever of OnTranscodingFinished/OnTranscodingFailed or a cancel-after
// timer gets there first; once guards against the loser also writing to
// done.
type waitCallback struct {
	done chan error
	once sync.Once
}

func (c *waitCallback) finish(err error) {
	c.once.Do(func() { c.done <- err })
}

func (c *waitCallback) OnTranscodingStarted(scheduler.Key)              {}
func (c *waitCallback) OnTranscodingPaused(scheduler.Key)               {}
func (c *waitCallback) OnTranscodingResumed(scheduler.Key)              {}
func (c *waitCallback) OnTranscodingProgress(key scheduler.Key, pct float64) {
	log.LogNoRequestID(fmt.Sprintf("%s progress=%.0f%%", key, pct))
}
func (c *waitCallback) OnTranscodingFinished(scheduler.Key) { c.finish(nil) }
func (c *waitCallback) OnTranscodingFailed(key scheduler.Key, err error) {
	c.finish(fmt.Errorf("session %s failed: %w", key, err))
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	priority := scheduler.PriorityRealtime
	if submitPriority == "unspecified" {
		priority = scheduler.PriorityUnspecified
	}

	pipelineControl := control.NewPipelineControl(&control.DemoBuilder{})
	policy := scheduler.NewStaticTopPolicy()
	policy.SetTopSet(map[string]struct{}{submitSubmitter: {}})
	sched := scheduler.NewScheduler(pipelineControl, policy)
	pipelineControl.SetScheduler(sched)

	key := scheduler.Key{ClientID: uuid.NewString(), SessionID: 1}
	request := scheduler.Request{
		SubmitterID: submitSubmitter,
		Priority:    priority,
		Source:      "demo-source",
		Destination: "demo-dest",
	}

	cb := &waitCallback{done: make(chan error, 1)}
	instrumented := metrics.InstrumentCallback(cb)
	if !sched.Submit(key, submitSubmitter, request, instrumented) {
		return fmt.Errorf("submit rejected: session %s already exists", key)
	}
	metrics.RecordSubmit(submitSubmitter)

	log.LogNoRequestID("submitted demo session " + key.String())

	if submitCancelAfter > 0 {
		go func() {
			time.Sleep(submitCancelAfter)
			if sched.Cancel(key.ClientID, key.SessionID) {
				metrics.RecordCancel(submitSubmitter)
				cb.finish(fmt.Errorf("session %s: %w", key, cerrors.Cancelled))
			}
		}()
	}

	if err := <-cb.done; err != nil {
		return err
	}
	log.LogNoRequestID("demo session " + key.String() + " finished")
	return nil
}
