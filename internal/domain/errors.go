package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrLinkNotFound     = errors.New("link not found")
	ErrNotClaimable     = errors.New("link not claimable")
	ErrNotInProgress    = errors.New("link not in progress")
	ErrNoElement        = errors.New("no matching element")
	ErrCommentsNotFound = errors.New("comments not found")
	ErrUnknownPlugin    = errors.New("unknown plugin")
	ErrSessionClosed    = errors.New("session closed")
)

// ErrorKind classifies a per-link crawl failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNavigationFailed
	KindUnstable
	KindExtractionEmpty
	KindStorageFailure
	KindInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case KindNavigationFailed:
		return "NavigationFailed"
	case KindUnstable:
		return "Unstable"
	case KindExtractionEmpty:
		return "ExtractionEmpty"
	case KindStorageFailure:
		return "StorageFailure"
	case KindInterrupted:
		return "Interrupted"
	default:
		return "None"
	}
}

// SessionError is a classified failure of one link's crawl attempt.
// Its Error string is recorded verbatim as the journal reason.
type SessionError struct {
	Kind ErrorKind
	Err  error
}

// NewSessionError wraps err with kind.
func NewSessionError(kind ErrorKind, err error) *SessionError {
	return &SessionError{Kind: kind, Err: err}
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first SessionError in err's chain.
func KindOf(err error) ErrorKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNone
}
