// Package errs defines the sentinel error kinds shared across the
// session transport core, checked with errors.Is/errors.As rather than
// string matching.
package errs

import "errors"

// Kind is a coarse error category surfaced to the UI layer.
type Kind int

const (
	InvalidConfig Kind = iota
	SpawnFailed
	AuthFailed
	WriteFailed
	ResizeFailed
	Io
	ProtocolError
	NotFound
	PermissionDenied
	OperationFailed
	CorruptStore
	ChannelClosed
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case SpawnFailed:
		return "SpawnFailed"
	case AuthFailed:
		return "AuthFailed"
	case WriteFailed:
		return "WriteFailed"
	case ResizeFailed:
		return "ResizeFailed"
	case Io:
		return "Io"
	case ProtocolError:
		return "ProtocolError"
	case NotFound:
		return "NotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case OperationFailed:
		return "OperationFailed"
	case CorruptStore:
		return "CorruptStore"
	case ChannelClosed:
		return "ChannelClosed"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with a message and an optional wrapped cause, so
// callers can both errors.Is against a Kind and unwrap to the original
// error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, errs.InvalidConfig) by comparing Kind against
// a bare Kind value wrapped in an *Error, via KindError.
func (e *Error) Is(target error) bool {
	var k *kindSentinel
	if errors.As(target, &k) {
		return e.Kind == k.kind
	}
	return false
}

// kindSentinel lets a bare Kind be used as an errors.Is target: errors.Is(err, errs.Sentinel(errs.NotFound)).
type kindSentinel struct{ kind Kind }

func (k *kindSentinel) Error() string { return k.kind.String() }

// Sentinel returns an error usable as an errors.Is comparison target for
// every *Error of the given Kind.
func Sentinel(kind Kind) error {
	return &kindSentinel{kind: kind}
}
