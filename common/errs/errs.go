package errs

import (
	"github.com/pkg/errors"
)

const (
	CodeTruncated   = 1001
	CodeMalformed   = 1002
	CodeUnsupported = 1003
	CodeNotFound    = 1004
	CodeUnknown     = 9999
)

var (
	ErrTruncated   = New(CodeTruncated, "truncated input")
	ErrMalformed   = New(CodeMalformed, "malformed input")
	ErrUnsupported = New(CodeUnsupported, "unsupported input")
	ErrNotFound    = New(CodeNotFound, "not found")
)

const (
	Success = "success"
)

type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(code int32, msg string) error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

func Code(e error) int32 {
	if e == nil {
		return 0
	}
	err, ok := e.(*Error)
	if !ok {
		return CodeUnknown
	}

	if err == (*Error)(nil) {
		return 0
	}
	return err.Code
}

func Msg(e error) string {
	if e == nil {
		return Success
	}
	err, ok := e.(*Error)
	if !ok {
		return "unknown error: " + e.Error()
	}

	if err == (*Error)(nil) {
		return Success
	}

	return err.Msg
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Cause unwraps err to the innermost error so that Code and Msg can be
// used on wrapped errors.
func Cause(err error) error {
	return errors.Cause(err)
}
