package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Leaf errors. Failures raised while serializing are marked with one of the
// first three so callers can classify them with errors.Is.
var (
	// ErrHandlerFailure marks a registered handler that returned an error or panicked.
	ErrHandlerFailure = errors.New("core: handler failure")
	// ErrMemberAccess marks a single member that could not be read.
	ErrMemberAccess = errors.New("core: member access failure")
	// ErrUnexpected marks a failure that escaped every other guard.
	ErrUnexpected = errors.New("core: unexpected failure")

	// ErrNilHandler is returned when registering a nil handler or a handler without a type.
	ErrNilHandler = errors.New("core: handler is nil or has no type")
	// ErrInvalidDepth is returned for depths outside Basic..Deep.
	ErrInvalidDepth = errors.New("core: invalid depth")
	// ErrBudgetExceeded marks values that were not materialized because a budget ran out.
	ErrBudgetExceeded = errors.New("core: serialization budget exceeded")
	// ErrNotStruct indicates the provided value or type is not a struct.
	ErrNotStruct = errors.New("core: target is not a struct")
	// ErrUnknownFormat is returned for payload formats other than json and msgpack.
	ErrUnknownFormat = errors.New("core: unknown payload format")
)

// FailureKind classifies a recorded diagnostic.
type FailureKind string

const (
	FailureHandler    FailureKind = "handler"
	FailureMember     FailureKind = "member_access"
	FailureUnexpected FailureKind = "unexpected"
)

// MemberError records a member or handler that failed during a pass.
type MemberError struct {
	Member  string
	Path    string
	Kind    FailureKind
	Message string
}

// Error implements the error interface.
func (e MemberError) Error() string {
	return fmt.Sprintf("%s at %s (%s): %s", e.Member, e.Path, e.Kind, e.Message)
}

func kindOf(err error) FailureKind {
	switch {
	case errors.Is(err, ErrHandlerFailure):
		return FailureHandler
	case errors.Is(err, ErrMemberAccess):
		return FailureMember
	default:
		return FailureUnexpected
	}
}

// recovered converts a recovered panic value into a marked error.
func recovered(r any, mark error) error {
	var err error
	if e, ok := r.(error); ok {
		err = errors.Wrap(e, "panic")
	} else {
		err = errors.Newf("panic: %v", r)
	}
	return errors.Mark(err, mark)
}
