// Package errs provides the Thorium error taxonomy shared by every component.
//
// The taxonomy is deliberately thin: a Kind tag plus the wrapped cause. Loops
// decide retry policy by inspecting Kind, not by parsing error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of control-loop propagation.
type Kind int

const (
	// Internal covers invariant violations (partition math, deserialization).
	Internal Kind = iota
	// NotFound covers a referenced key that is absent.
	NotFound
	// Conflict covers a uniqueness invariant that would be violated.
	Conflict
	// Permission covers a principal lacking a role on a group.
	Permission
	// Validation covers an invalid request shape or value.
	Validation
	// Unavailable covers a downstream store or scheduler refusing a call.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Permission:
		return "permission"
	case Validation:
		return "validation"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// thoriumError is the concrete error type carrying a Kind.
type thoriumError struct {
	kind Kind
	msg  string
	err  error
}

func (e *thoriumError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *thoriumError) Unwrap() error { return e.err }

// New builds an error tagged with kind.
func New(kind Kind, msg string) error {
	return &thoriumError{kind: kind, msg: msg}
}

// Wrap tags err with kind, preserving it for errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &thoriumError{kind: kind, msg: msg, err: err}
}

// Is reports whether err (or any error in its chain) carries kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if te, ok := err.(*thoriumError); ok && te.kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Internal when untagged.
func KindOf(err error) Kind {
	var te *thoriumError
	if errors.As(err, &te) {
		return te.kind
	}
	return Internal
}

// Retryable reports whether the loop that hit err should try again next tick
// (Unavailable, Internal) as opposed to treating the outcome as terminal for
// this entity (NotFound, Conflict, Permission, Validation).
func Retryable(err error) bool {
	switch KindOf(err) {
	case Unavailable, Internal:
		return true
	default:
		return false
	}
}
