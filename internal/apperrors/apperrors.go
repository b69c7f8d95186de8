// Package apperrors defines the structured errors returned by the ledger's
// public operations. Messages are safe to show to callers; storage causes are
// kept behind Unwrap and never rendered by Error.
package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger error.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindReferenceNotFound Kind = "reference_not_found"
	KindUnbalanced        Kind = "unbalanced"
	KindSequenceConflict  Kind = "sequence_conflict"
	KindSequenceExhausted Kind = "sequence_exhausted"
	KindPersistence       Kind = "persistence"
	KindInvalidRange      Kind = "invalid_range"
	KindNotFound          Kind = "not_found"
	KindAggregation       Kind = "aggregation"
)

// Sentinels for errors.Is.
var (
	ErrValidation        = errors.New("ledger: validation failed")
	ErrReferenceNotFound = errors.New("ledger: reference not found")
	ErrUnbalanced        = errors.New("ledger: unbalanced entry")
	ErrSequenceConflict  = errors.New("ledger: sequence conflict")
	ErrSequenceExhausted = errors.New("ledger: sequence exhausted")
	ErrPersistence       = errors.New("ledger: persistence failure")
	ErrInvalidRange      = errors.New("ledger: invalid date range")
	ErrNotFound          = errors.New("ledger: not found")
	ErrAggregation       = errors.New("ledger: aggregation failure")
)

var sentinels = map[Kind]error{
	KindValidation:        ErrValidation,
	KindReferenceNotFound: ErrReferenceNotFound,
	KindUnbalanced:        ErrUnbalanced,
	KindSequenceConflict:  ErrSequenceConflict,
	KindSequenceExhausted: ErrSequenceExhausted,
	KindPersistence:       ErrPersistence,
	KindInvalidRange:      ErrInvalidRange,
	KindNotFound:          ErrNotFound,
	KindAggregation:       ErrAggregation,
}

// Issue is a single problem found in the input. Line is the 1-based line
// number, or 0 for header-level issues.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Line    int    `json:"line,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("line %d %s: %s", i.Line, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Error is the structured error returned across the ledger's boundary.
type Error struct {
	Kind    Kind
	Message string
	Issues  []Issue
	// Delta is debit minus credit for unbalanced entries.
	Delta *decimal.Decimal
	err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, is := range e.Issues {
		b.WriteString("; ")
		b.WriteString(is.String())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Is matches the sentinel for the error's kind and for every issue kind it carries.
func (e *Error) Is(target error) bool {
	if target == sentinels[e.Kind] {
		return true
	}
	for _, is := range e.Issues {
		if target == sentinels[is.Kind] {
			return true
		}
	}
	return false
}

// HasKind reports whether the error or any of its issues has kind k.
func (e *Error) HasKind(k Kind) bool {
	if e.Kind == k {
		return true
	}
	for _, is := range e.Issues {
		if is.Kind == k {
			return true
		}
	}
	return false
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind that keeps cause for logging and
// errors.Is / errors.As, without exposing its text.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: cause}
}

// FromIssues builds a combined validation error. The error kind is the most
// fundamental kind present: validation, then reference_not_found, then unbalanced.
// Returns nil when issues is empty.
func FromIssues(issues []Issue, delta *decimal.Decimal) *Error {
	if len(issues) == 0 {
		return nil
	}
	kind := KindUnbalanced
	for _, is := range issues {
		switch is.Kind {
		case KindValidation:
			kind = KindValidation
		case KindReferenceNotFound:
			if kind != KindValidation {
				kind = KindReferenceNotFound
			}
		}
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("%d problem(s) in journal entry", len(issues)),
		Issues:  issues,
		Delta:   delta,
	}
}

// KindOf returns the kind of err if it is an *Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
