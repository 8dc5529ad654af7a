package status

import (
	"errors"
	"fmt"
)

// The raw status values returned by the probe operations. Any other nonzero value is advisory.
const (
	StatusOK    int32 = 0
	StatusError int32 = -1
)

// Error is the failure of the probe operation.
type Error struct {
	// Op is the name of the failed operation, such as "SetBreakpoint".
	Op   string
	Code Code
	// Detail is the optional host side context. Empty if the probe reported the error.
	Detail string
}

// New returns the error of the operation.
func New(op string, code Code) *Error {
	return &Error{Op: op, Code: code.Normalize()}
}

// Newf returns the error with the formatted detail message.
func Newf(op string, code Code, format string, v ...interface{}) *Error {
	return &Error{Op: op, Code: code.Normalize(), Detail: fmt.Sprintf(format, v...)}
}

// Error returns the decoded error string with the numeric code.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %d -- %s", e.Op, e.Code, e.Code.Message())
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is reports whether the target is the error with the same code.
// The operation name is ignored so that `errors.Is(err, status.New("", status.ResourceErr))` works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Warning is the advisory condition the probe reported. The operation itself succeeded.
type Warning struct {
	Op  string
	Raw int32
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: unexpected return value: %d", w.Op, w.Raw)
}

// Decode interprets the raw status of the operation. errno is called to query the last error number
// only when the status indicates the failure. The returned warning is nil unless the status is advisory.
func Decode(op string, raw int32, errno func() (int32, error)) (*Warning, error) {
	switch raw {
	case StatusOK:
		return nil, nil
	case StatusError:
		num, err := errno()
		if err != nil {
			return nil, &Error{Op: op, Code: CommErr, Detail: fmt.Sprintf("failed to query error number: %v", err)}
		}
		return nil, New(op, Code(num))
	default:
		return &Warning{Op: op, Raw: raw}, nil
	}
}

// CodeOf returns the code of the error. Returns NoErr if err is nil and InternalErr if err is not the probe error.
func CodeOf(err error) Code {
	if err == nil {
		return NoErr
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalErr
}

// Is returns true if the err is the probe error with the code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsConnectivity returns true if the err invalidates the session's assumed state.
func IsConnectivity(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code.Category() == Connectivity
}
