// Package rigerr defines the error taxonomy shared by the rig engine,
// the I/O transport, and the network rig-control server.
package rigerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way callers need to react to it, not by
// which component raised it.
type Kind int

const (
	// InvalidArgument covers bad user input: an out-of-band frequency,
	// an unsupported mode, a malformed command argument.
	InvalidArgument Kind = iota
	// NotSupported means the operation is absent from a rig's capability
	// bitset.
	NotSupported
	// NoDevice means a serial, socket, or audio device I/O failed or was
	// lost.
	NoDevice
	// Timeout means a bounded wait for bytes or readiness expired.
	Timeout
	// ProtocolError means a rig response or network command line failed
	// to parse.
	ProtocolError
	// Fatal means a setup-time or invariant violation: undersized
	// windows, allocation failure, channel mismatch.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotSupported:
		return "NotSupported"
	case NoDevice:
		return "NoDevice"
	case Timeout:
		return "Timeout"
	case ProtocolError:
		return "ProtocolError"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error, the concrete type callers recover with
// errors.As.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Errno maps a Kind to the conventional positive error number rigctld
// reports as `RPRT -<n>`. The mapping follows the small, fixed vocabulary
// that real rigctld clients expect (a handful of hamlib RIG_E* values);
// it is not meant to be exhaustive of POSIX errno.
func (k Kind) Errno() int {
	switch k {
	case InvalidArgument:
		return 1
	case NotSupported:
		return 11
	case NoDevice:
		return 5
	case Timeout:
		return 16
	case ProtocolError:
		return 8
	case Fatal:
		return 9
	default:
		return 1
	}
}

// ErrTimeout is the sentinel a Port or Framer returns for a plain read
// timeout, as distinct from a dead or absent device.
var ErrTimeout = New(Timeout, "read timeout")

// IsTimeout reports whether err is, or wraps, a Timeout-kind Error.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == Timeout
	}
	return false
}
