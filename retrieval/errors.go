package retrieval

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// Kind is the stable error classification surfaced to callers. The raw
// upstream error text stays in logs and never crosses the tool boundary.
type Kind string

const (
	KindValidation             Kind = "VALIDATION_ERROR"
	KindUnsupportedPredicate   Kind = "UNSUPPORTED_PREDICATE"
	KindIndexNotFound          Kind = "INDEX_NOT_FOUND"
	KindDimensionMismatch      Kind = "DIMENSION_MISMATCH"
	KindTraversalDepthExceeded Kind = "TRAVERSAL_DEPTH_EXCEEDED"
	KindUpstreamTimeout        Kind = "UPSTREAM_TIMEOUT"
	KindUpstreamUnavailable    Kind = "UPSTREAM_UNAVAILABLE"
	KindNotFound               Kind = "NOT_FOUND"
	KindInternal               Kind = "INTERNAL"
)

// ErrUpstreamUnavailable marks connection-level failures. The session
// cache discards its driver handle when it sees this kind.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Error is a classified engine error.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a classified error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapE classifies an existing error, keeping it in the chain.
func WrapE(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: err}
}

// Classify maps any engine error onto its Kind. Unrecognized errors are
// INTERNAL.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	switch {
	case errors.Is(err, vector.ErrIndexNotFound):
		return KindIndexNotFound
	case errors.Is(err, vector.ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, store.ErrTraversalDepthExceeded):
		return KindTraversalDepthExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	}
	return KindInternal
}
