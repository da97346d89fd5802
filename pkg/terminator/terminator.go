// Package terminator implements the bounded-duration termination signal
// every control loop in this system polls: "should I stop now?". It
// combines a time limit, single-shot semantics, and an external cancel flag
// supplied by pkg/registry.
//
// Grounded on original_source/chaosgarden/util/terminator.py.
package terminator

import (
	"time"

	"github.com/go-logr/logr"
)

// Terminator answers "should I stop now?" for a single control loop.
//
// It is cheap to poll: after construction, IsTerminated only reads plain
// fields and calls the supplied cancellation probe, no locks are taken here
// (the registry, not the Terminator, owns the lock that guards cancellation
// state).
type Terminator struct {
	log logr.Logger

	caller      string
	duration    time.Duration
	startTime   time.Time
	endTime     time.Time
	hasEndTime  bool
	invocations int

	singleInvocation bool
	isCancelled      func() bool
}

// New constructs a Terminator for a loop identified by caller (used only in
// log messages). duration <= 0 means "run once": IsTerminated returns true
// starting with its second call. isCancelled is polled on every call and is
// typically registry.Registry.IsCancelled bound to this loop's handle.
func New(log logr.Logger, caller string, duration time.Duration, isCancelled func() bool) *Terminator {
	t := &Terminator{
		log:              log,
		caller:           caller,
		duration:         duration,
		startTime:        time.Now(),
		singleInvocation: duration <= 0,
		isCancelled:      isCancelled,
	}
	if duration > 0 {
		t.endTime = t.startTime.Add(duration)
		t.hasEndTime = true
	}
	return t
}

// IsTerminated returns true once any of: single-shot semantics have consumed
// their one allowed iteration, the wall-clock deadline has passed, or
// external cancellation has been signalled. Every transition to terminated
// emits a one-line reason log, exactly once per cause per call.
func (t *Terminator) IsTerminated() bool {
	singleInvocationPerformed := t.singleInvocation && t.invocations >= 1
	if singleInvocationPerformed {
		t.logTermination("single invocation performed")
	}
	timeIsUp := t.hasEndTime && time.Now().After(t.endTime)
	if timeIsUp {
		t.logTermination("time is up")
	}
	cancelled := t.isCancelled != nil && t.isCancelled()
	if cancelled {
		t.logTermination("termination requested")
	}
	t.invocations++
	return singleInvocationPerformed || timeIsUp || cancelled
}

func (t *Terminator) logTermination(reason string) {
	t.log.Info(reason+", terminating now",
		"simulation", t.caller,
		"netDuration", time.Since(t.startTime).Round(100*time.Millisecond).String())
}
