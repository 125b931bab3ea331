// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies endpoint failures for the relay loops
type ErrorKind int

const (
	// KindConnectFailed means the endpoint could not be opened or connected
	KindConnectFailed ErrorKind = iota + 1
	// KindTimeout means no data arrived within the read window. It is a retry signal, not a failure.
	KindTimeout
	// KindIOFailure means a read or write broke after a successful open
	KindIOFailure
	// KindConfigInvalid means the device or pipe address itself is unusable
	KindConfigInvalid
)

// String returns the string representation of an ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindConnectFailed:
		return "connect_failed"
	case KindTimeout:
		return "timeout"
	case KindIOFailure:
		return "io_failure"
	case KindConfigInvalid:
		return "config_invalid"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind, for use with errors.Is
var (
	ErrConnectFailed = errors.New("endpoint connect failed")
	ErrTimeout       = errors.New("endpoint read timeout")
	ErrIOFailure     = errors.New("endpoint i/o failure")
	ErrConfigInvalid = errors.New("endpoint configuration invalid")

	// ErrNotOpen is wrapped into an IOFailure when I/O is attempted on a closed endpoint
	ErrNotOpen = errors.New("endpoint not open")
)

// Error is the error type returned by every Endpoint operation
type Error struct {
	Kind     ErrorKind
	Op       string
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Endpoint, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Endpoint, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConnectFailed:
		return ErrConnectFailed
	case KindTimeout:
		return ErrTimeout
	case KindIOFailure:
		return ErrIOFailure
	case KindConfigInvalid:
		return ErrConfigInvalid
	default:
		return nil
	}
}

func newError(kind ErrorKind, endpoint, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Endpoint: endpoint, Err: err}
}

// KindOf returns the kind of an endpoint error, or 0 when err carries none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrConnectFailed):
		return KindConnectFailed
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrIOFailure):
		return KindIOFailure
	case errors.Is(err, ErrConfigInvalid):
		return KindConfigInvalid
	}
	return 0
}

// IsTimeout reports whether err is the no-data retry signal
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
