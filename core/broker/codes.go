package broker

import (
	"errors"
	"fmt"
)

// Result codes carried by control-plane responses. Zero and positive values
// are not failures.
const (
	CodeOK              int32 = 0
	CodePending         int32 = 1
	CodeNotFound        int32 = -1
	CodeAllocation      int32 = -2
	CodeTimeout         int32 = -3
	CodeInternal        int32 = -4
	CodeInvalidArgument int32 = -5
	CodeCanceled        int32 = -6
)

var codes = []struct {
	err  error
	code int32
}{
	{ErrPending, CodePending},
	{ErrNotFound, CodeNotFound},
	{ErrAllocation, CodeAllocation},
	{ErrTimeout, CodeTimeout},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrCanceled, CodeCanceled},
	{ErrInternal, CodeInternal},
	{ErrClosed, CodeInternal},
}

// ResultCode maps err onto a result code. Errors outside the taxonomy are internal.
func ResultCode(err error) int32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorFromCode is the inverse of ResultCode.
func ErrorFromCode(code int32) error {
	if code == CodeOK {
		return nil
	}
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	if code > 0 {
		return nil
	}
	return fmt.Errorf("%w: result code %d", ErrInternal, code)
}

// IsFailure reports whether code denotes a failed request.
func IsFailure(code int32) bool {
	return code < 0
}
