package uadk

import (
	"errors"
	"fmt"
)

// Kind is the high-level error category a runtime operation can fail with
// (spec §7).
type Kind string

const (
	KindInvalidParam Kind = "invalid parameter"
	KindNoMemory     Kind = "no memory"
	KindNotSupported Kind = "not supported"
	KindQueueFull    Kind = "queue full"
	KindBusy         Kind = "busy"
	KindEAGAIN       Kind = "eagain"
	KindHWAccess     Kind = "hardware access"
	KindTimeout      Kind = "timeout"
	KindBadStatus    Kind = "bad status"
	KindStaleTag     Kind = "stale tag"
	KindPoolFull     Kind = "pool full"
)

// Error is the structured error every runtime entry point returns. Op names
// the failing operation, CtxID identifies the context index when one was
// selected (-1 otherwise), Kind is the stable category callers can switch
// on, Msg is a human-readable detail, and Inner wraps any underlying cause.
type Error struct {
	Op    string
	CtxID int
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.CtxID >= 0 {
		return fmt.Sprintf("uadk: %s: %s (ctx=%d)", e.Op, msg, e.CtxID)
	}
	return fmt.Sprintf("uadk: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison against another *Error by Kind, so
// callers can write `errors.Is(err, &uadk.Error{Kind: uadk.KindTimeout})`.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// NewError builds a structured error with no context index (ctx-independent
// failures: validation, init/uninit, key setup).
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, CtxID: -1, Kind: kind, Msg: msg}
}

// NewCtxError builds a structured error scoped to a specific context index.
func NewCtxError(op string, ctxID int, kind Kind, msg string) *Error {
	return &Error{Op: op, CtxID: ctxID, Kind: kind, Msg: msg}
}

// WrapError attaches operation context to an inner error without discarding
// a Kind the inner error already carries.
func WrapError(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	ctxID := -1
	var ie *Error
	if errors.As(inner, &ie) {
		ctxID = ie.CtxID
	}
	return &Error{Op: op, CtxID: ctxID, Kind: kind, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
