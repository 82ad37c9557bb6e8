package asdu

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/arloliu/go-iec104/internal/util"
)

// NameOfFile identifies a file in file transfer units.
type NameOfFile uint16

func (n NameOfFile) Kind() ElementKind { return KindNOF }
func (n NameOfFile) Size() int         { return 2 }

func (n NameOfFile) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(n), byte(n>>8))
}

func (n NameOfFile) String() string { return "NOF(" + strconv.Itoa(int(n)) + ")" }

func decodeNOF(b []byte) (Element, int, error) {
	return NameOfFile(binary.LittleEndian.Uint16(b)), 2, nil
}

// NameOfSection identifies a section of a file.
type NameOfSection uint8

func (n NameOfSection) Kind() ElementKind { return KindNOS }
func (n NameOfSection) Size() int         { return 1 }

func (n NameOfSection) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(n))
}

func (n NameOfSection) String() string { return "NOS(" + strconv.Itoa(int(n)) + ")" }

// LengthOfFile is the 24-bit length of a file or section.
type LengthOfFile uint32

// MaxLengthOfFile is the largest encodable file length.
const MaxLengthOfFile = 1<<24 - 1

// NewLengthOfFile builds a LengthOfFile. n must fit in 24 bits.
func NewLengthOfFile(n int) (LengthOfFile, error) {
	if n < 0 || n > MaxLengthOfFile {
		return 0, invalidArg("length of file %d out of range [0, %d]", n, MaxLengthOfFile)
	}

	return LengthOfFile(n), nil
}

func (l LengthOfFile) Kind() ElementKind { return KindLOF }
func (l LengthOfFile) Size() int         { return 3 }

func (l LengthOfFile) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(l), byte(l>>8), byte(l>>16))
}

func (l LengthOfFile) String() string { return "LOF(" + strconv.Itoa(int(l)) + ")" }

func decodeLOF(b []byte) (Element, int, error) {
	return LengthOfFile(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16), 3, nil
}

// FRQ is the file ready qualifier.
type FRQ struct {
	value    uint8
	negative bool
}

// NewFRQ builds a FRQ. value must be in 0..127; negative marks a negative confirmation.
func NewFRQ(value int, negative bool) (FRQ, error) {
	if value < 0 || value > 127 {
		return FRQ{}, invalidArg("file ready qualifier %d out of range [0, 127]", value)
	}

	return FRQ{value: uint8(value), negative: negative}, nil
}

func (q FRQ) Value() int        { return int(q.value) }
func (q FRQ) Negative() bool    { return q.negative }
func (q FRQ) Kind() ElementKind { return KindFRQ }
func (q FRQ) Size() int         { return 1 }

func (q FRQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, sevenBitFlag(q.value, q.negative))
}

func (q FRQ) String() string { return fmt.Sprintf("FRQ(%d,negative=%t)", q.value, q.negative) }

func decodeFRQ(b []byte) (Element, int, error) {
	return FRQ{value: b[0] & 0x7F, negative: b[0]&0x80 != 0}, 1, nil
}

// SRQ is the section ready qualifier.
type SRQ struct {
	value    uint8
	notReady bool
}

// NewSRQ builds a SRQ. value must be in 0..127.
func NewSRQ(value int, notReady bool) (SRQ, error) {
	if value < 0 || value > 127 {
		return SRQ{}, invalidArg("section ready qualifier %d out of range [0, 127]", value)
	}

	return SRQ{value: uint8(value), notReady: notReady}, nil
}

func (q SRQ) Value() int        { return int(q.value) }
func (q SRQ) NotReady() bool    { return q.notReady }
func (q SRQ) Kind() ElementKind { return KindSRQ }
func (q SRQ) Size() int         { return 1 }

func (q SRQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, sevenBitFlag(q.value, q.notReady))
}

func (q SRQ) String() string { return fmt.Sprintf("SRQ(%d,notReady=%t)", q.value, q.notReady) }

func decodeSRQ(b []byte) (Element, int, error) {
	return SRQ{value: b[0] & 0x7F, notReady: b[0]&0x80 != 0}, 1, nil
}

func sevenBitFlag(value uint8, flag bool) byte {
	b := value & 0x7F
	if flag {
		b |= 0x80
	}

	return b
}

// Select and call actions carried in the low nibble of SCQ.
const (
	SelectFile        = 1
	RequestFile       = 2
	DeactivateFile    = 3
	DeleteFile        = 4
	SelectSection     = 5
	RequestSection    = 6
	DeactivateSection = 7
)

// SCQ is the select and call qualifier.
type SCQ struct {
	action uint8
	reason uint8
}

// NewSCQ builds a SCQ. action and reason must each be in 0..15.
func NewSCQ(action int, reason int) (SCQ, error) {
	a, r, err := nibbles("select and call qualifier", action, reason)
	return SCQ{action: a, reason: r}, err
}

func (q SCQ) Action() int       { return int(q.action) }
func (q SCQ) Reason() int       { return int(q.reason) }
func (q SCQ) Kind() ElementKind { return KindSCQ }
func (q SCQ) Size() int         { return 1 }

func (q SCQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, q.action|q.reason<<4)
}

func (q SCQ) String() string { return fmt.Sprintf("SCQ(action=%d,reason=%d)", q.action, q.reason) }

func decodeSCQ(b []byte) (Element, int, error) {
	return SCQ{action: b[0] & 0x0F, reason: b[0] >> 4}, 1, nil
}

// Acknowledge actions carried in the low nibble of AFQ.
const (
	AckFilePositive    = 1
	AckFileNegative    = 2
	AckSectionPositive = 3
	AckSectionNegative = 4
)

// AFQ is the acknowledge file or section qualifier.
type AFQ struct {
	action uint8
	reason uint8
}

// NewAFQ builds an AFQ. action and reason must each be in 0..15.
func NewAFQ(action int, reason int) (AFQ, error) {
	a, r, err := nibbles("acknowledge file qualifier", action, reason)
	return AFQ{action: a, reason: r}, err
}

func (q AFQ) Action() int       { return int(q.action) }
func (q AFQ) Reason() int       { return int(q.reason) }
func (q AFQ) Kind() ElementKind { return KindAFQ }
func (q AFQ) Size() int         { return 1 }

func (q AFQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, q.action|q.reason<<4)
}

func (q AFQ) String() string { return fmt.Sprintf("AFQ(action=%d,reason=%d)", q.action, q.reason) }

func decodeAFQ(b []byte) (Element, int, error) {
	return AFQ{action: b[0] & 0x0F, reason: b[0] >> 4}, 1, nil
}

func nibbles(name string, low int, high int) (uint8, uint8, error) {
	if low < 0 || low > 15 || high < 0 || high > 15 {
		return 0, 0, invalidArg("%s (%d, %d) out of range [0, 15]", name, low, high)
	}

	return uint8(low), uint8(high), nil
}

// Last section or segment qualifiers.
const (
	LSQFileTransferWithoutDeact LSQ = 1
	LSQFileTransferWithDeact    LSQ = 2
	LSQSectionWithoutDeact      LSQ = 3
	LSQSectionWithDeact         LSQ = 4
)

// LSQ is the last section or segment qualifier.
type LSQ uint8

func (q LSQ) Kind() ElementKind { return KindLSQ }
func (q LSQ) Size() int         { return 1 }

func (q LSQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(q))
}

func (q LSQ) String() string { return "LSQ(" + strconv.Itoa(int(q)) + ")" }

// CHS is the arithmetic checksum of a section or file.
type CHS uint8

// Checksum computes the modulo-256 sum of data.
func Checksum(data []byte) CHS {
	var sum uint8
	for _, b := range data {
		sum += b
	}

	return CHS(sum)
}

func (c CHS) Kind() ElementKind { return KindCHS }
func (c CHS) Size() int         { return 1 }

func (c CHS) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(c))
}

func (c CHS) String() string { return "CHS(" + strconv.Itoa(int(c)) + ")" }

// SOF is the status of file carried in directory entries.
type SOF struct {
	status    uint8
	lastFile  bool
	directory bool
	active    bool
}

// NewSOF builds a SOF. status must be in 0..31.
func NewSOF(status int, lastFile bool, directory bool, active bool) (SOF, error) {
	if status < 0 || status > 31 {
		return SOF{}, invalidArg("status of file %d out of range [0, 31]", status)
	}

	return SOF{status: uint8(status), lastFile: lastFile, directory: directory, active: active}, nil
}

func (s SOF) Status() int       { return int(s.status) }
func (s SOF) LastFile() bool    { return s.lastFile }
func (s SOF) Directory() bool   { return s.directory }
func (s SOF) Active() bool      { return s.active }
func (s SOF) Kind() ElementKind { return KindSOF }
func (s SOF) Size() int         { return 1 }

func (s SOF) Encode(buf []byte, offset int) (int, error) {
	b := s.status
	if s.lastFile {
		b |= 0x20
	}
	if s.directory {
		b |= 0x40
	}
	if s.active {
		b |= 0x80
	}

	return putBytes(buf, offset, b)
}

func (s SOF) String() string {
	return fmt.Sprintf("SOF(%d,lfd=%t,for=%t,fa=%t)", s.status, s.lastFile, s.directory, s.active)
}

func decodeSOF(b []byte) (Element, int, error) {
	return SOF{status: b[0] & 0x1F, lastFile: b[0]&0x20 != 0, directory: b[0]&0x40 != 0, active: b[0]&0x80 != 0}, 1, nil
}

// Segment is a file segment, transmitted as a one byte length followed by the data.
type Segment struct {
	data []byte
}

// MaxSegmentSize is the largest segment that fits in a single unit.
const MaxSegmentSize = 240

// NewSegment copies data into a segment of at most MaxSegmentSize bytes.
func NewSegment(data []byte) (Segment, error) {
	if len(data) > MaxSegmentSize {
		return Segment{}, invalidArg("segment of %d bytes exceeds %d", len(data), MaxSegmentSize)
	}

	return Segment{data: util.CloneSlice(data, 0)}, nil
}

// Data returns a copy of the segment bytes.
func (s Segment) Data() []byte { return util.CloneSlice(s.data, 0) }

func (s Segment) Kind() ElementKind { return KindSEG }
func (s Segment) Size() int         { return 1 + len(s.data) }

func (s Segment) Encode(buf []byte, offset int) (int, error) {
	if offset < 0 || offset+s.Size() > len(buf) {
		return 0, fmt.Errorf("%w: segment needs %d bytes at offset %d", ErrShortBuffer, s.Size(), offset)
	}
	buf[offset] = byte(len(s.data))
	copy(buf[offset+1:], s.data)

	return s.Size(), nil
}

func (s Segment) String() string { return "SEG(" + hex.EncodeToString(s.data) + ")" }

func decodeSegment(b []byte) (Element, int, error) {
	n := int(b[0])
	if len(b) < 1+n {
		return nil, 0, truncated("SEG", 1+n, len(b))
	}

	return Segment{data: util.CloneSlice(b[1:1+n], 0)}, 1 + n, nil
}

// Raw carries opaque bytes of a private type identification. When decoded it consumes
// every remaining byte of the input.
type Raw struct {
	data []byte
}

// NewRaw copies data into a Raw element.
func NewRaw(data []byte) Raw {
	return Raw{data: util.CloneSlice(data, 0)}
}

// Data returns a copy of the raw bytes.
func (r Raw) Data() []byte { return util.CloneSlice(r.data, 0) }

func (r Raw) Kind() ElementKind { return KindRAW }
func (r Raw) Size() int         { return len(r.data) }

func (r Raw) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, r.data...)
}

func (r Raw) String() string { return "RAW(" + hex.EncodeToString(r.data) + ")" }

func decodeRaw(b []byte) (Element, int, error) {
	return Raw{data: util.CloneSlice(b, 0)}, len(b), nil
}
