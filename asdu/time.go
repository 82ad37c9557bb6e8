package asdu

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	timeInvalidBit = 0x80
	timeSummerBit  = 0x80
	maxMillis      = 59999
)

// Time16 is the two-octet binary time (CP16), milliseconds 0..59999.
type Time16 uint16

// NewTime16 builds a CP16 value from a duration below one minute.
func NewTime16(d time.Duration) (Time16, error) {
	ms := d.Milliseconds()
	if ms < 0 || ms > maxMillis {
		return 0, invalidArg("CP16 time %v out of range [0, 59.999s]", d)
	}

	return Time16(ms), nil
}

// Duration returns the time as a duration.
func (t Time16) Duration() time.Duration { return time.Duration(t) * time.Millisecond }

func (t Time16) Kind() ElementKind { return KindCP16 }
func (t Time16) Size() int         { return 2 }

func (t Time16) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(t), byte(t>>8))
}

func (t Time16) String() string { return fmt.Sprintf("CP16(%dms)", uint16(t)) }

func decodeTime16(b []byte) (Element, int, error) {
	return Time16(binary.LittleEndian.Uint16(b)), 2, nil
}

// Time24 is the three-octet binary time (CP24): milliseconds within the minute and the minute.
type Time24 struct {
	ms      uint16
	minute  uint8
	invalid bool
}

// NewTime24 takes the second, millisecond and minute of t.
func NewTime24(t time.Time, invalid bool) Time24 {
	return Time24{
		ms:      uint16(t.Second()*1000 + t.Nanosecond()/int(time.Millisecond)),
		minute:  uint8(t.Minute()),
		invalid: invalid,
	}
}

func (t Time24) Millisecond() int  { return int(t.ms) }
func (t Time24) Minute() int       { return int(t.minute) }
func (t Time24) Invalid() bool     { return t.invalid }
func (t Time24) Kind() ElementKind { return KindCP24 }
func (t Time24) Size() int         { return 3 }

func (t Time24) Encode(buf []byte, offset int) (int, error) {
	minute := t.minute & 0x3F
	if t.invalid {
		minute |= timeInvalidBit
	}

	return putBytes(buf, offset, byte(t.ms), byte(t.ms>>8), minute)
}

func (t Time24) String() string {
	return fmt.Sprintf("CP24(%02d:%02d.%03d,iv=%t)", t.minute, t.ms/1000, t.ms%1000, t.invalid)
}

func decodeTime24(b []byte) (Element, int, error) {
	return Time24{
		ms:      binary.LittleEndian.Uint16(b),
		minute:  b[2] & 0x3F,
		invalid: b[2]&timeInvalidBit != 0,
	}, 3, nil
}

// Time56 is the seven-octet binary time (CP56) used for absolute time tags.
type Time56 struct {
	ms      uint16
	minute  uint8
	hour    uint8
	day     uint8
	weekday uint8 // 1 = Monday .. 7 = Sunday, 0 = not used
	month   uint8
	year    uint8 // years since 2000
	invalid bool
	summer  bool
}

// NewTime56 converts t to CP56. The year must be in 2000..2099. The summer time flag is
// taken from t's location.
func NewTime56(t time.Time, invalid bool) (Time56, error) {
	if t.Year() < 2000 || t.Year() > 2099 {
		return Time56{}, invalidArg("CP56 year %d out of range [2000, 2099]", t.Year())
	}

	return Time56{
		ms:      uint16(t.Second()*1000 + t.Nanosecond()/int(time.Millisecond)),
		minute:  uint8(t.Minute()),
		hour:    uint8(t.Hour()),
		day:     uint8(t.Day()),
		weekday: uint8((int(t.Weekday())+6)%7 + 1),
		month:   uint8(t.Month()),
		year:    uint8(t.Year() - 2000),
		invalid: invalid,
		summer:  t.IsDST(),
	}, nil
}

// Time returns the CP56 value as a time in loc. Decoded values with out-of-range
// fields are normalized by time.Date.
func (t Time56) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	return time.Date(2000+int(t.year), time.Month(t.month), int(t.day), int(t.hour), int(t.minute),
		int(t.ms/1000), int(t.ms%1000)*int(time.Millisecond), loc)
}

func (t Time56) Millisecond() int  { return int(t.ms) }
func (t Time56) Minute() int       { return int(t.minute) }
func (t Time56) Hour() int         { return int(t.hour) }
func (t Time56) Day() int          { return int(t.day) }
func (t Time56) Weekday() int      { return int(t.weekday) }
func (t Time56) Month() int        { return int(t.month) }
func (t Time56) Year() int         { return 2000 + int(t.year) }
func (t Time56) Invalid() bool     { return t.invalid }
func (t Time56) Summer() bool      { return t.summer }
func (t Time56) Kind() ElementKind { return KindCP56 }
func (t Time56) Size() int         { return 7 }

func (t Time56) Encode(buf []byte, offset int) (int, error) {
	var b [7]byte
	binary.LittleEndian.PutUint16(b[:2], t.ms)
	b[2] = t.minute & 0x3F
	if t.invalid {
		b[2] |= timeInvalidBit
	}
	b[3] = t.hour & 0x1F
	if t.summer {
		b[3] |= timeSummerBit
	}
	b[4] = t.day&0x1F | (t.weekday&0x07)<<5
	b[5] = t.month & 0x0F
	b[6] = t.year & 0x7F

	return putBytes(buf, offset, b[:]...)
}

func (t Time56) String() string {
	return fmt.Sprintf("CP56(%04d-%02d-%02d %02d:%02d:%02d.%03d,iv=%t,su=%t)",
		t.Year(), t.month, t.day, t.hour, t.minute, t.ms/1000, t.ms%1000, t.invalid, t.summer)
}

func decodeTime56(b []byte) (Element, int, error) {
	return Time56{
		ms:      binary.LittleEndian.Uint16(b),
		minute:  b[2] & 0x3F,
		invalid: b[2]&timeInvalidBit != 0,
		hour:    b[3] & 0x1F,
		summer:  b[3]&timeSummerBit != 0,
		day:     b[4] & 0x1F,
		weekday: b[4] >> 5,
		month:   b[5] & 0x0F,
		year:    b[6] & 0x7F,
	}, 7, nil
}
