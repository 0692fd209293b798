/*
Package apperr defines the autopilot's error-kind taxonomy and the cycle
controller's propagation policy (Skip, Fail, or Pause the control loop).
*/
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the cycle controller's propagation policy.
type Kind string

const (
	KindConfiguration         Kind = "configuration_error"
	KindInsufficientData      Kind = "insufficient_data"
	KindValidationFailure     Kind = "validation_failure"
	KindBoundsViolation       Kind = "bounds_violation"
	KindCanaryFailure         Kind = "canary_failure"
	KindTimeout               Kind = "timeout"
	KindStatisticalAnalysis   Kind = "statistical_analysis_failed"
	KindIO                    Kind = "io_error"
)

// Policy is how the cycle controller should react to an error of a given Kind.
type Policy string

const (
	PolicySkip Policy = "skip"  // log and continue to the next cycle
	PolicyFail Policy = "fail"  // abort this cycle, record CycleFailed
	PolicyPause Policy = "pause" // halt the control loop until manually resumed
)

// policies maps each Kind to its propagation Policy.
var policies = map[Kind]Policy{
	KindConfiguration:       PolicyPause,
	KindInsufficientData:    PolicySkip,
	KindValidationFailure:   PolicyFail,
	KindBoundsViolation:     PolicyFail,
	KindCanaryFailure:       PolicyFail,
	KindTimeout:             PolicySkip,
	KindStatisticalAnalysis: PolicySkip,
	KindIO:                  PolicyPause,
}

// Error is an autopilot error carrying a Kind, a component tag, and an
// optional wrapped cause.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap builds an *Error wrapping cause. Returns nil if cause is nil.
func Wrap(cause error, kind Kind, component, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// PolicyFor resolves the propagation Policy for err, walking its wrap chain
// for the first *Error found. Errors with no Kind attached default to
// PolicyFail, since an un-classified error is never safe to silently skip.
func PolicyFor(err error) Policy {
	var ae *Error
	if errors.As(err, &ae) {
		if p, ok := policies[ae.Kind]; ok {
			return p
		}
	}
	return PolicyFail
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap) an
// *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
