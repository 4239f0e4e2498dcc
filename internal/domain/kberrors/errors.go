// Package kberrors defines the error taxonomy shared across the knowledge
// base orchestrator. A sentinel Kind plus a wrapping Error type, so
// errors.Is/As work against the Kind rather than against formatted
// strings or typed error structs per failure mode.
package kberrors

import (
	"errors"
	"fmt"
)

// Kind classifies the failure modes the orchestrator's operations can raise.
type Kind string

const (
	InvalidSource    Kind = "invalid_source"
	ReaderFailed     Kind = "reader_failed"
	IndexBuildFailed Kind = "index_build_failed"
	StoreUnavailable Kind = "store_unavailable"
	VectorStoreError Kind = "vector_store_error"
	LLMError         Kind = "llm_error"
	UnknownLanguage  Kind = "unknown_language"
	NotFound         Kind = "not_found"
)

// Error wraps an underlying cause with the operation and kind that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, kberrors.New(kind, "", nil)) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error for the given op/kind, wrapping cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Sentinel lets callers probe a kind without allocating a comparison value
// by hand: errors.Is(err, kberrors.Sentinel(kberrors.NotFound)).
func Sentinel(kind Kind) error { return &Error{Kind: kind} }

// KindOf extracts the Kind from err, if it (or something it wraps) is a
// *Error; ok is false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
