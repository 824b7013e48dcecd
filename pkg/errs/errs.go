// Package errs implements the closed error taxonomy every component of the
// codegraph engine tags its failures with: configuration, storage,
// transaction, schema/protocol, not-found, lock-timeout, deadlock, LLM and
// integrity errors, each wrapping an underlying cause and truncating the
// user-visible message to a bounded length.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories a caller can branch on.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindStorage       Kind = "storage"
	KindTransaction   Kind = "transaction"
	KindSchema        Kind = "schema"
	KindNotFound      Kind = "not_found"
	KindLockTimeout   Kind = "lock_timeout"
	KindDeadlock      Kind = "deadlock"
	KindLLM           Kind = "llm"
	KindIntegrity     Kind = "integrity"
)

// maxMessageLen bounds the user-visible message length; longer messages are
// truncated with an ellipsis sentinel.
const maxMessageLen = 512

// Error is the concrete error type produced by every package in this
// module. Op names the failing operation (e.g. "storage.PutBlob",
// "txn.Commit"); Err, when present, is the wrapped underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := truncate(e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen-1] + "…"
}

// New constructs an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) is a *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func Configuration(op, message string) *Error { return New(KindConfiguration, op, message) }
func Storage(op string, err error) *Error      { return Wrap(KindStorage, op, err, err.Error()) }
func Transaction(op, message string) *Error    { return New(KindTransaction, op, message) }
func Schema(op, message string) *Error         { return New(KindSchema, op, message) }

// NotFound builds a not-found error for the given entity kind and id, e.g.
// errs.NotFound("storage.GetNode", "node", string(id)).
func NotFound(op, entity, id string) *Error {
	return New(KindNotFound, op, fmt.Sprintf("%s %q not found", entity, id))
}

func LockTimeout(op, message string) *Error { return New(KindLockTimeout, op, message) }
func Deadlock(op, message string) *Error    { return New(KindDeadlock, op, message) }
func LLM(op string, err error) *Error       { return Wrap(KindLLM, op, err, err.Error()) }
func Integrity(op, message string) *Error   { return New(KindIntegrity, op, message) }

// Retriable reports whether a caller should retry the operation that
// produced err: lock timeouts, deadlocks and LLM/embedding failures are
// transient by nature; the rest are not.
func Retriable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindLockTimeout, KindDeadlock, KindLLM:
		return true
	default:
		return false
	}
}
