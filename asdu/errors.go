package asdu

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates that a value or unit could not be constructed because
	// one of its fields is outside the legal range.
	ErrInvalidArgument = errors.New("asdu: invalid argument")

	// ErrTruncated indicates that the input ended before a complete element, object or
	// unit header could be decoded.
	ErrTruncated = errors.New("asdu: truncated payload")

	// ErrUnknownType indicates a type identification that is neither a standard type nor
	// claimed by a registered extension.
	ErrUnknownType = errors.New("asdu: unknown type identification")

	// ErrShortBuffer indicates that the destination buffer is too small for the encoded value.
	ErrShortBuffer = errors.New("asdu: buffer too short")

	// ErrMalformed indicates a structurally invalid unit, e.g. trailing bytes, zero objects
	// or a sequence flag on a type that cannot be sent as a sequence.
	ErrMalformed = errors.New("asdu: malformed unit")

	// ErrTooLong indicates that an encoded unit exceeds MaxSize.
	ErrTooLong = errors.New("asdu: unit too long")
)

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func truncated(what string, need int, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncated, what, need, have)
}
