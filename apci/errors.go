package apci

import "errors"

var (
	// ErrBadStartByte indicates a frame that does not begin with StartByte.
	ErrBadStartByte = errors.New("apci: bad start byte")

	// ErrBadLength indicates an APDU length outside [MinLength, MaxLength], or a length
	// that does not match the frame format.
	ErrBadLength = errors.New("apci: bad length")

	// ErrBadControl indicates a control field that matches none of the I, S or U formats.
	ErrBadControl = errors.New("apci: bad control field")
)

var (
	// ErrSeqViolation indicates a received send sequence number that is not the expected
	// one, or an acknowledgment of frames that were never sent.
	ErrSeqViolation = errors.New("apci: sequence number violation")

	// ErrWindowFull indicates that k I frames are outstanding and no further I frame may
	// be sent until the peer acknowledges.
	ErrWindowFull = errors.New("apci: send window full")

	// ErrT1Timeout indicates that a sent I frame or U request was not confirmed within t1.
	ErrT1Timeout = errors.New("apci: t1 timeout")
)

var (
	// ErrInvalidTransition is returned when an attempt is made to transition the link
	// state to an invalid state.
	ErrInvalidTransition = errors.New("apci: invalid state transition")

	// ErrLinkClosed indicates that the link reached the closed state.
	ErrLinkClosed = errors.New("apci: link closed")
)

// IsFramingError reports whether err is one of the frame codec errors.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrBadStartByte) || errors.Is(err, ErrBadLength) || errors.Is(err, ErrBadControl)
}
