package bookingclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a commit failed and what the caller can do about it.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindNotAuthenticated
	KindSlotConflict
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindSlotConflict:
		return "slot_conflict"
	case KindValidation:
		return "validation_error"
	default:
		return "transient_error"
	}
}

// CommitError is returned by Committer.Commit. Message is safe to show to the user as-is.
type CommitError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CommitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *CommitError) Unwrap() error { return e.Err }

// Retryable reports whether trying again can succeed without user intervention beyond
// re-selecting a slot. NotAuthenticated needs a login and Validation needs corrected input.
func (e *CommitError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindSlotConflict
}

// KindOf returns the kind of a *CommitError anywhere in err's chain. Any other error is
// treated as transient.
func KindOf(err error) ErrorKind {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// APIError is a non-2xx response from the booking service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("booking api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("booking api: %d: %s", e.Status, e.Message)
}
