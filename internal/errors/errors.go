// Package errors provides error handling utilities for mgtk.
// It offers consistent error wrapping, HTTP status failures and skip
// accounting so that per-item failures stay visible without aborting a run.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Op represents an operation name for error context.
type Op string

// Error represents an application error with context.
type Error struct {
	Op   Op     // Operation that failed
	Kind Kind   // Category of error
	Err  error  // Underlying error
	Msg  string // Additional context message
}

// Kind represents the category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNetwork
	KindHTTP
	KindIO
	KindParse
	KindConfig
	KindValidation
	KindStorage
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given arguments.
// Arguments can be: Op, Kind, error, string (message).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Msg = a
		}
	}
	return e
}

// Wrap wraps an error with an operation name for context.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Err: err}
}

// WrapMsg wraps an error with an operation name and message.
func WrapMsg(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Msg: msg, Err: err}
}

// FetchFailure is returned when a remote resource answers with a
// non-success HTTP status.
type FetchFailure struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (f *FetchFailure) Error() string {
	return fmt.Sprintf("failed to get URL: %s. HTTP status code: %d", f.URL, f.StatusCode)
}

// NotFound reports whether the remote answered 404.
func (f *FetchFailure) NotFound() bool {
	return f.StatusCode == http.StatusNotFound
}

// AsFetchFailure extracts a FetchFailure from an error chain.
func AsFetchFailure(err error) (*FetchFailure, bool) {
	var ff *FetchFailure
	if stderrors.As(err, &ff) {
		return ff, true
	}
	return nil, false
}

// As re-exports errors.As so callers only import this package.
func As(err error, target any) bool { return stderrors.As(err, target) }

// IsKind checks if an error is of the given kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// GetKind returns the kind of an error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	var ff *FetchFailure
	if stderrors.As(err, &ff) {
		return KindHTTP
	}
	return KindUnknown
}

// SkipCounter tracks how many items an operation skipped.
// Use this to surface the shortfall of a partially failed run.
type SkipCounter struct {
	Op         string
	Count      int
	LastErr    error
	LastDetail string
}

// NewSkipCounter creates a new skip counter for the given operation.
func NewSkipCounter(op string) *SkipCounter {
	return &SkipCounter{Op: op}
}

// Skip records a skipped item due to an error.
func (s *SkipCounter) Skip(err error, detail string) {
	s.Count++
	s.LastErr = err
	s.LastDetail = detail
}

// Report logs a warning if any items were skipped.
func (s *SkipCounter) Report(log *zap.Logger) {
	if s.Count == 0 {
		return
	}
	log.Warn("items skipped",
		zap.String("op", s.Op),
		zap.Int("count", s.Count),
		zap.String("last_detail", s.LastDetail),
		zap.Error(s.LastErr))
}

// IgnoreError explicitly ignores an error with a reason.
//
// Example:
//
//	errors.IgnoreError(log, file.Close(), "closing manifest after failed write")
func IgnoreError(log *zap.Logger, err error, reason string) {
	if err != nil {
		log.Debug("ignoring error", zap.String("reason", reason), zap.Error(err))
	}
}
