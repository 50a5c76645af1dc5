// Package failures defines the classified error taxonomy of a verification run
// and the exit status each class maps to.
package failures

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies why a scenario did not pass.
type Kind int

const (
	KindNone Kind = iota
	KindUnknown
	KindAssertion
	KindLaunch
	KindNavigation
	KindTimeout
	KindInteraction
	KindCapture
	KindInjection
	KindInterrupted
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindUnknown:     "unknown",
	KindAssertion:   "assertion",
	KindLaunch:      "launch",
	KindNavigation:  "navigation",
	KindTimeout:     "timeout",
	KindInteraction: "interaction",
	KindCapture:     "capture",
	KindInjection:   "injection",
	KindInterrupted: "interrupted",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ExitCode is the process status reported for a failure of this kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindNone:
		return 0
	case KindLaunch:
		return 2
	case KindNavigation:
		return 3
	case KindTimeout:
		return 4
	case KindInteraction:
		return 5
	case KindCapture:
		return 6
	case KindInjection:
		return 7
	case KindInterrupted:
		return 130
	default:
		return 1
	}
}

// Regression reports whether the kind points at the application under test
// rather than at the harness or its environment.
func (k Kind) Regression() bool {
	return k == KindTimeout || k == KindAssertion
}

// Classified is implemented by every error in this package.
type Classified interface {
	error
	Kind() Kind
}

// LaunchError means the environment could not produce a browser session.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string { return fmt.Sprintf("browser launch failed: %v", e.Err) }
func (e *LaunchError) Unwrap() error { return e.Err }
func (e *LaunchError) Kind() Kind    { return KindLaunch }

// InjectionError means the host bridge stand-in was not in place before the
// application's first script ran.
type InjectionError struct {
	Reason string
	Err    error
}

func (e *InjectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge injection failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("bridge injection failed: %s", e.Reason)
}
func (e *InjectionError) Unwrap() error { return e.Err }
func (e *InjectionError) Kind() Kind    { return KindInjection }

// NavigationError means the target URL was unreachable or answered with a non-2xx status.
type NavigationError struct {
	URL    string
	Status int64
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: HTTP status %d", e.URL, e.Status)
}
func (e *NavigationError) Unwrap() error { return e.Err }
func (e *NavigationError) Kind() Kind    { return KindNavigation }

// TimeoutError means a wait condition was not satisfied in time.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Elapsed   time.Duration
	// LastErr is the most recent evaluation error, if polling ever failed.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s (limit %s) waiting for %s",
		e.Elapsed.Round(time.Millisecond), e.Timeout, e.Condition)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last evaluation error: %v)", e.LastErr)
	}
	return msg
}
func (e *TimeoutError) Unwrap() error { return e.LastErr }
func (e *TimeoutError) Kind() Kind    { return KindTimeout }

// InteractionError means an element could not be hovered or clicked.
type InteractionError struct {
	Action string
	Target string
	Err    error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Action, e.Target, e.Err)
}
func (e *InteractionError) Unwrap() error { return e.Err }
func (e *InteractionError) Kind() Kind    { return KindInteraction }

// AssertionError means an immediate expectation about page state did not hold.
type AssertionError struct {
	Expectation string
	Detail      string
}

func (e *AssertionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("expectation failed: %s", e.Expectation)
	}
	return fmt.Sprintf("expectation failed: %s: %s", e.Expectation, e.Detail)
}
func (e *AssertionError) Kind() Kind { return KindAssertion }

// CaptureError means an evidence artifact could not be written.
type CaptureError struct {
	Path string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture to %s failed: %v", e.Path, e.Err)
}
func (e *CaptureError) Unwrap() error { return e.Err }
func (e *CaptureError) Kind() Kind    { return KindCapture }

// InterruptedError marks a failure that happened because the run was
// cancelled. It outranks the kind of the error it wraps.
type InterruptedError struct {
	Err error
}

func (e *InterruptedError) Error() string { return fmt.Sprintf("interrupted: %v", e.Err) }
func (e *InterruptedError) Unwrap() error { return e.Err }
func (e *InterruptedError) Kind() Kind    { return KindInterrupted }

// Classify returns the kind of the outermost classified error in err's chain.
// Context cancellation that no component classified counts as an interrupt.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var c Classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	if errors.Is(err, context.Canceled) {
		return KindInterrupted
	}
	return KindUnknown
}

// Interrupted reports whether err was caused by the run being cancelled.
func Interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
