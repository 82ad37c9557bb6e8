package apci

import (
	"fmt"
	"strconv"
)

const (
	// StartByte begins every APDU.
	StartByte = 0x68
	// MinLength is the APDU length of a frame without payload.
	MinLength = 4
	// MaxLength is the largest APDU length, counted after the length octet.
	MaxLength = 253
	// MaxPayload is the largest unit that fits into an I frame.
	MaxPayload = MaxLength - MinLength
	// SeqModulus is the modulus of the send and receive sequence numbers.
	SeqModulus = 32768

	headerSize = 2
	seqMask    = SeqModulus - 1
)

// Format is the control field format of a frame.
type Format uint8

const (
	IFormat Format = iota // numbered information transfer
	SFormat               // numbered supervisory
	UFormat               // unnumbered control
)

func (f Format) String() string {
	switch f {
	case IFormat:
		return "I"
	case SFormat:
		return "S"
	case UFormat:
		return "U"
	default:
		return "Format(" + strconv.Itoa(int(f)) + ")"
	}
}

// UFunction is the function octet of a U frame.
type UFunction uint8

const (
	StartDTAct UFunction = 0x07
	StartDTCon UFunction = 0x0B
	StopDTAct  UFunction = 0x13
	StopDTCon  UFunction = 0x23
	TestFRAct  UFunction = 0x43
	TestFRCon  UFunction = 0x83
)

func (fn UFunction) valid() bool {
	switch fn {
	case StartDTAct, StartDTCon, StopDTAct, StopDTCon, TestFRAct, TestFRCon:
		return true
	default:
		return false
	}
}

// IsAct reports whether fn is an activation (request) function.
func (fn UFunction) IsAct() bool {
	return fn == StartDTAct || fn == StopDTAct || fn == TestFRAct
}

// Con returns the confirmation matching the activation fn. Confirmations are returned
// unchanged.
func (fn UFunction) Con() UFunction {
	switch fn {
	case StartDTAct:
		return StartDTCon
	case StopDTAct:
		return StopDTCon
	case TestFRAct:
		return TestFRCon
	default:
		return fn
	}
}

func (fn UFunction) String() string {
	switch fn {
	case StartDTAct:
		return "STARTDT_ACT"
	case StartDTCon:
		return "STARTDT_CON"
	case StopDTAct:
		return "STOPDT_ACT"
	case StopDTCon:
		return "STOPDT_CON"
	case TestFRAct:
		return "TESTFR_ACT"
	case TestFRCon:
		return "TESTFR_CON"
	default:
		return fmt.Sprintf("UFunction(0x%02X)", uint8(fn))
	}
}

// Frame is a decoded APDU. The zero value is not a valid frame; use NewIFrame,
// NewSFrame, NewUFrame or Decode.
type Frame struct {
	format  Format
	sendSeq uint16
	recvSeq uint16
	fn      UFunction
	payload []byte
}

// NewIFrame returns an I frame carrying payload, an encoded unit.
func NewIFrame(sendSeq, recvSeq uint16, payload []byte) (Frame, error) {
	if sendSeq > seqMask || recvSeq > seqMask {
		return Frame{}, fmt.Errorf("%w: sequence number out of range [0, %d]", ErrBadControl, seqMask)
	}
	if len(payload) == 0 || len(payload) > MaxPayload {
		return Frame{}, fmt.Errorf("%w: payload size %d out of range [1, %d]", ErrBadLength, len(payload), MaxPayload)
	}

	return Frame{format: IFormat, sendSeq: sendSeq, recvSeq: recvSeq, payload: payload}, nil
}

// NewSFrame returns a supervisory frame acknowledging everything before recvSeq.
func NewSFrame(recvSeq uint16) (Frame, error) {
	if recvSeq > seqMask {
		return Frame{}, fmt.Errorf("%w: sequence number out of range [0, %d]", ErrBadControl, seqMask)
	}

	return Frame{format: SFormat, recvSeq: recvSeq}, nil
}

// NewUFrame returns an unnumbered control frame.
func NewUFrame(fn UFunction) (Frame, error) {
	if !fn.valid() {
		return Frame{}, fmt.Errorf("%w: %s", ErrBadControl, fn)
	}

	return Frame{format: UFormat, fn: fn}, nil
}

// Format returns the frame format.
func (f Frame) Format() Format { return f.format }

// SendSeq returns the send sequence number of an I frame.
func (f Frame) SendSeq() uint16 { return f.sendSeq }

// RecvSeq returns the receive sequence number of an I or S frame.
func (f Frame) RecvSeq() uint16 { return f.recvSeq }

// Function returns the function of a U frame.
func (f Frame) Function() UFunction { return f.fn }

// Payload returns the unit bytes of an I frame. The slice must not be modified.
func (f Frame) Payload() []byte { return f.payload }

// Len returns the encoded size of the frame including start and length octets.
func (f Frame) Len() int {
	return headerSize + MinLength + len(f.payload)
}

// AppendTo appends the encoded frame to dst.
func (f Frame) AppendTo(dst []byte) []byte {
	dst = append(dst, StartByte, byte(MinLength+len(f.payload)))

	switch f.format {
	case IFormat:
		dst = append(dst,
			byte(f.sendSeq<<1), byte(f.sendSeq>>7),
			byte(f.recvSeq<<1), byte(f.recvSeq>>7),
		)
		dst = append(dst, f.payload...)
	case SFormat:
		dst = append(dst, 0x01, 0x00, byte(f.recvSeq<<1), byte(f.recvSeq>>7))
	case UFormat:
		dst = append(dst, byte(f.fn), 0x00, 0x00, 0x00)
	}

	return dst
}

// ToBytes returns the encoded frame.
func (f Frame) ToBytes() []byte {
	return f.AppendTo(make([]byte, 0, f.Len()))
}

func (f Frame) String() string {
	switch f.format {
	case IFormat:
		return fmt.Sprintf("I[send=%d recv=%d len=%d]", f.sendSeq, f.recvSeq, len(f.payload))
	case SFormat:
		return fmt.Sprintf("S[recv=%d]", f.recvSeq)
	default:
		return "U[" + f.fn.String() + "]"
	}
}

// Decode decodes one complete APDU. The payload of an I frame aliases b.
func Decode(b []byte) (Frame, error) {
	if len(b) < headerSize+MinLength {
		return Frame{}, fmt.Errorf("%w: frame size %d below %d", ErrBadLength, len(b), headerSize+MinLength)
	}
	if b[0] != StartByte {
		return Frame{}, fmt.Errorf("%w: 0x%02X", ErrBadStartByte, b[0])
	}

	length := int(b[1])
	if length < MinLength || length > MaxLength {
		return Frame{}, fmt.Errorf("%w: %d out of range [%d, %d]", ErrBadLength, length, MinLength, MaxLength)
	}
	if len(b) != headerSize+length {
		return Frame{}, fmt.Errorf("%w: length octet %d, frame carries %d", ErrBadLength, length, len(b)-headerSize)
	}

	return decodeAPDU(b[headerSize:])
}

// decodeAPDU decodes the control field and payload that follow the length octet.
func decodeAPDU(apdu []byte) (Frame, error) {
	c := apdu[:MinLength]
	payload := apdu[MinLength:]

	switch {
	case c[0]&0x01 == 0:
		if len(payload) == 0 {
			return Frame{}, fmt.Errorf("%w: I frame without payload", ErrBadLength)
		}

		return Frame{
			format:  IFormat,
			sendSeq: (uint16(c[0]) | uint16(c[1])<<8) >> 1,
			recvSeq: (uint16(c[2]) | uint16(c[3])<<8) >> 1,
			payload: payload,
		}, nil

	case c[0]&0x03 == 0x01:
		if c[0] != 0x01 || c[1] != 0 {
			return Frame{}, fmt.Errorf("%w: S frame % X", ErrBadControl, c)
		}
		if len(payload) != 0 {
			return Frame{}, fmt.Errorf("%w: S frame with %d payload bytes", ErrBadLength, len(payload))
		}

		return Frame{format: SFormat, recvSeq: (uint16(c[2]) | uint16(c[3])<<8) >> 1}, nil

	default:
		fn := UFunction(c[0])
		if !fn.valid() || c[1] != 0 || c[2] != 0 || c[3] != 0 {
			return Frame{}, fmt.Errorf("%w: U frame % X", ErrBadControl, c)
		}
		if len(payload) != 0 {
			return Frame{}, fmt.Errorf("%w: U frame with %d payload bytes", ErrBadLength, len(payload))
		}

		return Frame{format: UFormat, fn: fn}, nil
	}
}
