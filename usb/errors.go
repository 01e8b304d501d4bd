package usb

import (
	"errors"
	"fmt"
)

type Kind int8

const (
	KindUnknown Kind = iota
	KindPlatform
	KindNotFound
	KindPermission
	KindTransport
	KindIO
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindNotFound:
		return "device not found"
	case KindPermission:
		return "permission denied"
	case KindTransport:
		return "transport"
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// Error classifies a failure without exposing the transport's concrete error
// shape. The wrapped cause stays opaque; retry logic only ever asks
// IsRetryable.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	temporary bool
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Transient wraps a transport failure that is worth retrying, such as a
// timeout or a busy endpoint.
func Transient(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Msg: msg, Err: err, temporary: true}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool { return e.temporary }

// IsRetryable reports whether err, anywhere in its chain, marks itself as a
// transient transport failure.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
