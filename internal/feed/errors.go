package feed

import (
	"fmt"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
)

// ErrorKind classifies a feed failure.
type ErrorKind int

const (
	KindUnavailable ErrorKind = iota + 1
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned when the feed as a whole cannot be used. The existing
// catalog must be left untouched when it occurs.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("feed %s (%s): %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps the kind onto the domain sentinels so callers can use errors.Is.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindUnavailable:
		return target == domain.ErrFeedUnavailable
	case KindMalformed:
		return target == domain.ErrFeedMalformed
	}
	return false
}

func unavailable(path string, err error) error {
	return &Error{Kind: KindUnavailable, Path: path, Err: err}
}

func malformed(path string, err error) error {
	return &Error{Kind: KindMalformed, Path: path, Err: err}
}
