package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind int

const (
	KindFailed      Kind = iota // Transport failure or unexpected status
	KindRateLimited             // Upstream throttled the request
	KindCancelled               // Superseded or cancelled by the caller
)

func (k Kind) String() string {
	switch k {
	case KindFailed:
		return "failed"
	case KindRateLimited:
		return "rate_limited"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Gateway.Fetch.
type Error struct {
	Kind       Kind
	Key        string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %s", e.Key, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s: %s: %s", e.Key, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errSuperseded is the cancel cause for a request replaced under the same key.
var errSuperseded = errors.New("request superseded")

// ErrGatewayClosed is the cancel cause used by CancelAll.
var ErrGatewayClosed = errors.New("gateway cancelled")

// KindOf returns the kind of err. Errors that are not *Error are KindFailed.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindFailed
}

// IsCancelled reports whether err is a cancellation that callers should ignore.
func IsCancelled(err error) bool {
	return err != nil && KindOf(err) == KindCancelled
}

// IsRateLimited reports whether err is an upstream throttle.
func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}

// Failed wraps err as a KindFailed error for key.
func Failed(key string, err error) *Error {
	return &Error{Kind: KindFailed, Key: key, Message: err.Error(), Err: err}
}
