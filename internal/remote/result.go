// Package remote runs remote control-plane operations with bounded retry and
// drives asynchronous resources to a terminal state.
package remote

import (
	"context"
	"errors"
	"fmt"

	jujuerrors "github.com/juju/errors"
)

// DryRunID is the identifier returned for every operation in dry-run mode.
const DryRunID = "ocid1.dryrun.placeholder"

// ErrResourceFailed matches every ResourceFailedError.
const ErrResourceFailed = jujuerrors.ConstError("remote resource entered a failure state")

// Result is the decoded response of a remote call. Only the identifier, the
// tracking token and the lifecycle fields are interpreted; anything else a
// later step needs is carried in Attributes.
type Result struct {
	ID              string
	WorkRequestID   string
	State           string
	PercentComplete *float32
	Attributes      map[string]string
	DryRun          bool
}

// Attribute returns the named attribute or an empty string.
func (r *Result) Attribute(name string) string {
	if r == nil {
		return ""
	}
	return r.Attributes[name]
}

// OutcomeKind tags the result of a single remote call.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Retryable
	Fatal
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the classified result of a remote call.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Classify maps an error returned by a remote call onto an Outcome.
// Protocol mismatches, configuration problems, resource failures and
// cancellation are fatal. Every other execution failure is retryable.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: Success}
	}
	var (
		protocolErr *ProtocolError
		fatalErr    *FatalError
	)
	switch {
	case errors.As(err, &protocolErr),
		errors.As(err, &fatalErr),
		errors.Is(err, ErrResourceFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return Outcome{Kind: Fatal, Err: err}
	}
	return Outcome{Kind: Retryable, Err: err}
}

// ProtocolError reports a response that does not have the expected shape.
// Retrying cannot help.
type ProtocolError struct {
	Operation string
	Detail    string
	Err       error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("unexpected response from %s: %s", e.Operation, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// FatalError wraps a failure that happens before any remote call is made,
// such as a missing credential file.
type FatalError struct {
	Operation string
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ResourceFailedError reports a polled resource that reached one of its
// failure states.
type ResourceFailedError struct {
	Kind  string
	ID    string
	State string
}

func (e *ResourceFailedError) Error() string {
	return fmt.Sprintf("%s %s entered failure state %s", e.Kind, e.ID, e.State)
}

// Is reports whether target is ErrResourceFailed.
func (e *ResourceFailedError) Is(target error) bool {
	return target == ErrResourceFailed
}
