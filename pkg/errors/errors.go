// Package errors classifies the error kinds this system distinguishes
// (spec §4.9, §7): validation errors abort a run before any side effect,
// transient errors are logged and swallowed by the calling control loop, and
// rollback errors are accumulated but never abort a rollback in progress.
//
// Grounded on the try/except shape of every original_source/chaosgarden
// control loop, which catches broadly and only lets a narrow set of
// programmer-facing mistakes (unknown mode, missing zone, unparseable
// selector) escape as fatal.
package errors

import "fmt"

// Validation wraps a configuration or input mistake that must abort the run
// before any side effect: an unknown mode, a missing/unresolvable zone, an
// unsupported cloud provider, or an unparseable selector.
type Validation struct {
	Reason string
	Err    error
}

func (e *Validation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

func (e *Validation) Unwrap() error { return e.Err }

// NewValidation constructs a Validation error.
func NewValidation(reason string, err error) *Validation {
	return &Validation{Reason: reason, Err: err}
}

// Transient wraps an error a control loop is expected to log and continue
// past: provider throttling that exhausted its retry budget, a list/operation
// timeout, a momentary network error. Never fatal.
type Transient struct {
	Op  string
	Err error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *Transient) Unwrap() error { return e.Err }

// NewTransient constructs a Transient error.
func NewTransient(op string, err error) *Transient {
	return &Transient{Op: op, Err: err}
}

// Fatal wraps an error that aborts the current setup step but, per spec §7,
// must still allow rollback/teardown to run to completion afterwards (e.g. a
// required ACL create failing during network-failure setup).
type Fatal struct {
	Op  string
	Err error
}

func (e *Fatal) Error() string {
	return fmt.Sprintf("fatal error during %s: %v", e.Op, e.Err)
}

func (e *Fatal) Unwrap() error { return e.Err }

// NewFatal constructs a Fatal error.
func NewFatal(op string, err error) *Fatal {
	return &Fatal{Op: op, Err: err}
}
