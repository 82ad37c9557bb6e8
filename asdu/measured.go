package asdu

import (
	"encoding/binary"
	"math"
	"strconv"
)

// VTI is a step position value with transient state indication.
type VTI struct {
	value     int8
	transient bool
}

// NewVTI builds a VTI. The value must be in -64..63.
func NewVTI(value int, transient bool) (VTI, error) {
	if value < -64 || value > 63 {
		return VTI{}, invalidArg("step position %d out of range [-64, 63]", value)
	}

	return VTI{value: int8(value), transient: transient}, nil
}

// Value returns the step position.
func (v VTI) Value() int { return int(v.value) }

// Transient reports whether the equipment is in transient state.
func (v VTI) Transient() bool { return v.transient }

func (v VTI) Kind() ElementKind { return KindVTI }
func (v VTI) Size() int         { return 1 }

func (v VTI) Encode(buf []byte, offset int) (int, error) {
	b := byte(v.value) & 0x7F
	if v.transient {
		b |= 0x80
	}

	return putBytes(buf, offset, b)
}

func (v VTI) String() string {
	return "VTI(" + strconv.Itoa(int(v.value)) + ",transient=" + strconv.FormatBool(v.transient) + ")"
}

func decodeVTI(b []byte) (Element, int, error) {
	raw := b[0] & 0x7F
	if raw&0x40 != 0 {
		raw |= 0x80 // sign-extend bit 6
	}

	return VTI{value: int8(raw), transient: b[0]&0x80 != 0}, 1, nil
}

// NormalizedValue is a fixed-point fraction in [-1, 1-2^-15] stored as a signed 16-bit integer.
// Any int16 is a valid raw value; use NewNormalizedValue to convert from a float.
type NormalizedValue int16

// NewNormalizedValue converts f to the nearest normalized value.
func NewNormalizedValue(f float64) (NormalizedValue, error) {
	if math.IsNaN(f) || f < -1 || f > 1-1.0/32768 {
		return 0, invalidArg("normalized value %v out of range [-1, 1-2^-15]", f)
	}

	return NormalizedValue(math.Round(f * 32768)), nil
}

// Float returns the value as a fraction.
func (n NormalizedValue) Float() float64 { return float64(n) / 32768 }

func (n NormalizedValue) Kind() ElementKind { return KindNVA }
func (n NormalizedValue) Size() int         { return 2 }

func (n NormalizedValue) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(n), byte(uint16(n)>>8))
}

func (n NormalizedValue) String() string {
	return "NVA(" + strconv.FormatFloat(n.Float(), 'f', -1, 64) + ")"
}

func decodeNVA(b []byte) (Element, int, error) {
	return NormalizedValue(int16(binary.LittleEndian.Uint16(b))), 2, nil
}

// ScaledValue is a signed 16-bit measured or set-point value.
type ScaledValue int16

// NewScaledValue builds a ScaledValue. The value must fit in a signed 16-bit integer.
func NewScaledValue(v int) (ScaledValue, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, invalidArg("scaled value %d out of range [-32768, 32767]", v)
	}

	return ScaledValue(v), nil
}

func (s ScaledValue) Kind() ElementKind { return KindSVA }
func (s ScaledValue) Size() int         { return 2 }

func (s ScaledValue) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(s), byte(uint16(s)>>8))
}

func (s ScaledValue) String() string { return "SVA(" + strconv.Itoa(int(s)) + ")" }

func decodeSVA(b []byte) (Element, int, error) {
	return ScaledValue(int16(binary.LittleEndian.Uint16(b))), 2, nil
}

// ShortFloat is an IEEE 754 single precision value.
type ShortFloat float32

// NewShortFloat builds a ShortFloat. NaN, infinities and values beyond float32 range
// are rejected.
func NewShortFloat(f float64) (ShortFloat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
		return 0, invalidArg("short float %v is not representable", f)
	}

	return ShortFloat(float32(f)), nil
}

func (f ShortFloat) Kind() ElementKind { return KindR32 }
func (f ShortFloat) Size() int         { return 4 }

func (f ShortFloat) Encode(buf []byte, offset int) (int, error) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(f)))

	return putBytes(buf, offset, b[:]...)
}

func (f ShortFloat) String() string {
	return "R32(" + strconv.FormatFloat(float64(f), 'g', -1, 32) + ")"
}

func decodeR32(b []byte) (Element, int, error) {
	return ShortFloat(math.Float32frombits(binary.LittleEndian.Uint32(b))), 4, nil
}

// BitString is a 32 bit binary state information. It is transmitted most significant
// byte first.
type BitString uint32

// Bit reports bit position 1..32, where position 1 is the least significant bit.
func (s BitString) Bit(position int) bool {
	if position < 1 || position > 32 {
		return false
	}

	return s&(1<<(position-1)) != 0
}

func (s BitString) Kind() ElementKind { return KindBSI }
func (s BitString) Size() int         { return 4 }

func (s BitString) Encode(buf []byte, offset int) (int, error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(s))

	return putBytes(buf, offset, b[:]...)
}

func (s BitString) String() string { return "BSI(0x" + strconv.FormatUint(uint64(s), 16) + ")" }

func decodeBSI(b []byte) (Element, int, error) {
	return BitString(binary.BigEndian.Uint32(b)), 4, nil
}

// StatusChange holds 16 status bits and 16 change detection bits.
type StatusChange uint32

// NewStatusChange packs status and change detection bits.
func NewStatusChange(status uint16, changes uint16) StatusChange {
	return StatusChange(uint32(status)<<16 | uint32(changes))
}

// Status returns the 16 status bits.
func (s StatusChange) Status() uint16 { return uint16(s >> 16) }

// Changes returns the 16 status change detection bits.
func (s StatusChange) Changes() uint16 { return uint16(s) }

func (s StatusChange) Kind() ElementKind { return KindSCD }
func (s StatusChange) Size() int         { return 4 }

func (s StatusChange) Encode(buf []byte, offset int) (int, error) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(s))

	return putBytes(buf, offset, b[:]...)
}

func (s StatusChange) String() string {
	return "SCD(st=0x" + strconv.FormatUint(uint64(s.Status()), 16) +
		",cd=0x" + strconv.FormatUint(uint64(s.Changes()), 16) + ")"
}

func decodeSCD(b []byte) (Element, int, error) {
	return StatusChange(binary.BigEndian.Uint32(b)), 4, nil
}

// BinaryCounter is a binary counter reading with sequence number and flags.
type BinaryCounter struct {
	value    int32
	seq      uint8
	carry    bool
	adjusted bool
	invalid  bool
}

// NewBinaryCounter builds a BinaryCounter. The sequence number must be in 0..31.
func NewBinaryCounter(value int32, seq int, carry bool, adjusted bool, invalid bool) (BinaryCounter, error) {
	if seq < 0 || seq > 31 {
		return BinaryCounter{}, invalidArg("counter sequence number %d out of range [0, 31]", seq)
	}

	return BinaryCounter{value: value, seq: uint8(seq), carry: carry, adjusted: adjusted, invalid: invalid}, nil
}

func (c BinaryCounter) Value() int32      { return c.value }
func (c BinaryCounter) Sequence() int     { return int(c.seq) }
func (c BinaryCounter) Carry() bool       { return c.carry }
func (c BinaryCounter) Adjusted() bool    { return c.adjusted }
func (c BinaryCounter) Invalid() bool     { return c.invalid }
func (c BinaryCounter) Kind() ElementKind { return KindBCR }
func (c BinaryCounter) Size() int         { return 5 }

func (c BinaryCounter) Encode(buf []byte, offset int) (int, error) {
	var b [5]byte
	binary.LittleEndian.PutUint32(b[:4], uint32(c.value))
	b[4] = c.seq & 0x1F
	if c.carry {
		b[4] |= 0x20
	}
	if c.adjusted {
		b[4] |= 0x40
	}
	if c.invalid {
		b[4] |= 0x80
	}

	return putBytes(buf, offset, b[:]...)
}

func (c BinaryCounter) String() string {
	return "BCR(" + strconv.FormatInt(int64(c.value), 10) + ",sq=" + strconv.Itoa(int(c.seq)) +
		",cy=" + strconv.FormatBool(c.carry) + ",ca=" + strconv.FormatBool(c.adjusted) +
		",iv=" + strconv.FormatBool(c.invalid) + ")"
}

func decodeBCR(b []byte) (Element, int, error) {
	return BinaryCounter{
		value:    int32(binary.LittleEndian.Uint32(b)),
		seq:      b[4] & 0x1F,
		carry:    b[4]&0x20 != 0,
		adjusted: b[4]&0x40 != 0,
		invalid:  b[4]&0x80 != 0,
	}, 5, nil
}
