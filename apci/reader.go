package apci

import (
	"fmt"
	"io"
	"net"
	"time"
)

// FrameReader reads and decodes individual APDUs from a net.Conn.
//
// It implements the framing in four phases:
//  1. Read the start byte (no timeout, the link may idle between frames)
//  2. Validate the start byte
//  3. Set the fragment deadline and read the length octet and the APDU body
//  4. Decode the control field and payload
//
// FrameReader is NOT goroutine-safe. Only one ReadFrame call may be active at a time,
// consistent with the single reader goroutine of a connection.
type FrameReader struct {
	fragmentTimeout time.Duration
	head            [headerSize]byte
}

// NewFrameReader returns a reader that allows fragmentTimeout between the start byte
// and the last byte of a frame. A zero timeout disables the deadline.
func NewFrameReader(fragmentTimeout time.Duration) *FrameReader {
	return &FrameReader{fragmentTimeout: fragmentTimeout}
}

// ReadFrame reads one complete frame from conn.
//
// On success it returns the decoded frame and the raw frame bytes, which the frame
// payload aliases. When decoding fails the raw bytes read so far are still returned to
// allow hex-dump logging of the malformed frame.
func (fr *FrameReader) ReadFrame(conn net.Conn) (frame Frame, raw []byte, err error) {
	// Phase 1: read the start byte without deadline.
	if err = conn.SetReadDeadline(time.Time{}); err != nil {
		return Frame{}, nil, fmt.Errorf("clear read deadline: %w", err)
	}

	if _, err = io.ReadFull(conn, fr.head[:1]); err != nil {
		return Frame{}, nil, fmt.Errorf("read start byte: %w", err)
	}

	// Phase 2: validate the start byte.
	if fr.head[0] != StartByte {
		return Frame{}, fr.head[:1:1], fmt.Errorf("%w: 0x%02X", ErrBadStartByte, fr.head[0])
	}

	// Phase 3: read length and body under the fragment timeout.
	if fr.fragmentTimeout > 0 {
		if err = conn.SetReadDeadline(time.Now().Add(fr.fragmentTimeout)); err != nil {
			return Frame{}, nil, fmt.Errorf("set fragment deadline: %w", err)
		}
	}

	if _, err = io.ReadFull(conn, fr.head[1:2]); err != nil {
		return Frame{}, nil, fmt.Errorf("read frame length: %w", err)
	}

	length := int(fr.head[1])
	if length < MinLength || length > MaxLength {
		return Frame{}, fr.head[:2:2], fmt.Errorf("%w: %d out of range [%d, %d]", ErrBadLength, length, MinLength, MaxLength)
	}

	raw = make([]byte, headerSize+length)
	raw[0], raw[1] = fr.head[0], fr.head[1]

	if _, err = io.ReadFull(conn, raw[headerSize:]); err != nil {
		return Frame{}, nil, fmt.Errorf("read frame body: %w", err)
	}

	// Phase 4: decode.
	frame, err = decodeAPDU(raw[headerSize:])
	if err != nil {
		return Frame{}, raw, fmt.Errorf("decode frame: %w", err)
	}

	return frame, raw, nil
}
