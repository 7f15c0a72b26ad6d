// Package errs holds the error kinds signalled by the runtime kernel, as
// catalogued by the framework's error handling design: registration
// failures are raised to the caller before any side effect is observable,
// while handler-time exceptions are routed through an agent's exception
// reaction instead of returned here.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error conditions the kernel can signal.
type Kind string

const (
	DuplicateCoopName              Kind = "duplicate_coop_name"
	ParentCoopNotFound             Kind = "parent_coop_not_found"
	CoopHasNoParent                Kind = "coop_has_no_parent"
	ParentStoppedAcceptingChildren Kind = "parent_stopped_accepting_children"
	ShuttingDown                   Kind = "shutting_down"
	UnknownDispatcher              Kind = "unknown_dispatcher"
	DuplicateSubscription          Kind = "duplicate_subscription"
	StateNotOwned                  Kind = "state_not_owned"
	BindFailed                     Kind = "bind_failed"
	ResultNotReceivedYet           Kind = "result_not_received_yet"
	SvcHandlerFailed               Kind = "svc_handler_failed"
	MutableMsgViolation            Kind = "mutable_msg_violation"
	RegistrationFailed             Kind = "registration_failed"
	CoopNotFound                   Kind = "coop_not_found"
)

// Error wraps a Kind with context and, where applicable, an underlying cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can do errors.Is(err, errs.New(errs.ShuttingDown, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs an *Error for the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap constructs an *Error for the given kind, keeping cause as Unwrap target.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf returns the Kind carried by err, if err is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
