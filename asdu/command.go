package asdu

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	selectBit    = 0x80
	qualifierMax = 31
)

// SCO is a single command.
type SCO struct {
	on        bool
	qualifier uint8
	selectCmd bool
	spare     bool // reserved bit 1, kept as received
}

// NewSCO builds a single command. The qualifier of command must be in 0..31; select
// marks a select (true) or execute (false) command.
func NewSCO(on bool, qualifier int, selectCmd bool) (SCO, error) {
	if qualifier < 0 || qualifier > qualifierMax {
		return SCO{}, invalidArg("qualifier of command %d out of range [0, 31]", qualifier)
	}

	return SCO{on: on, qualifier: uint8(qualifier), selectCmd: selectCmd}, nil
}

func (c SCO) On() bool          { return c.on }
func (c SCO) Qualifier() int    { return int(c.qualifier) }
func (c SCO) Select() bool      { return c.selectCmd }
func (c SCO) Kind() ElementKind { return KindSCO }
func (c SCO) Size() int         { return 1 }

func (c SCO) Encode(buf []byte, offset int) (int, error) {
	b := c.qualifier << 2
	if c.on {
		b |= 0x01
	}
	if c.spare {
		b |= 0x02
	}
	if c.selectCmd {
		b |= selectBit
	}

	return putBytes(buf, offset, b)
}

func (c SCO) String() string {
	return fmt.Sprintf("SCO(on=%t,qu=%d,select=%t)", c.on, c.qualifier, c.selectCmd)
}

func decodeSCO(b []byte) (Element, int, error) {
	return SCO{
		on:        b[0]&0x01 != 0,
		spare:     b[0]&0x02 != 0,
		qualifier: (b[0] >> 2) & 0x1F,
		selectCmd: b[0]&selectBit != 0,
	}, 1, nil
}

// DoubleCommandState is the state of a double command.
type DoubleCommandState uint8

const (
	DoubleCommandNotPermitted0 DoubleCommandState = 0
	DoubleCommandOff           DoubleCommandState = 1
	DoubleCommandOn            DoubleCommandState = 2
	DoubleCommandNotPermitted3 DoubleCommandState = 3
)

// DCO is a double command.
type DCO struct {
	state     DoubleCommandState
	qualifier uint8
	selectCmd bool
}

// NewDCO builds a double command. The state must be in 0..3 and the qualifier in 0..31.
func NewDCO(state DoubleCommandState, qualifier int, selectCmd bool) (DCO, error) {
	if state > DoubleCommandNotPermitted3 {
		return DCO{}, invalidArg("double command state %d out of range [0, 3]", state)
	}
	if qualifier < 0 || qualifier > qualifierMax {
		return DCO{}, invalidArg("qualifier of command %d out of range [0, 31]", qualifier)
	}

	return DCO{state: state, qualifier: uint8(qualifier), selectCmd: selectCmd}, nil
}

func (c DCO) State() DoubleCommandState { return c.state }
func (c DCO) Qualifier() int            { return int(c.qualifier) }
func (c DCO) Select() bool              { return c.selectCmd }
func (c DCO) Kind() ElementKind         { return KindDCO }
func (c DCO) Size() int                 { return 1 }

func (c DCO) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, encodeStateCommand(uint8(c.state), c.qualifier, c.selectCmd))
}

func (c DCO) String() string {
	return fmt.Sprintf("DCO(state=%d,qu=%d,select=%t)", c.state, c.qualifier, c.selectCmd)
}

func decodeDCO(b []byte) (Element, int, error) {
	state, qu, sel := decodeStateCommand(b[0])
	return DCO{state: DoubleCommandState(state), qualifier: qu, selectCmd: sel}, 1, nil
}

// StepCommandState is the state of a regulating step command.
type StepCommandState uint8

const (
	StepNotPermitted0 StepCommandState = 0
	StepLower         StepCommandState = 1
	StepHigher        StepCommandState = 2
	StepNotPermitted3 StepCommandState = 3
)

// RCO is a regulating step command.
type RCO struct {
	state     StepCommandState
	qualifier uint8
	selectCmd bool
}

// NewRCO builds a regulating step command. The state must be in 0..3 and the qualifier in 0..31.
func NewRCO(state StepCommandState, qualifier int, selectCmd bool) (RCO, error) {
	if state > StepNotPermitted3 {
		return RCO{}, invalidArg("step command state %d out of range [0, 3]", state)
	}
	if qualifier < 0 || qualifier > qualifierMax {
		return RCO{}, invalidArg("qualifier of command %d out of range [0, 31]", qualifier)
	}

	return RCO{state: state, qualifier: uint8(qualifier), selectCmd: selectCmd}, nil
}

func (c RCO) State() StepCommandState { return c.state }
func (c RCO) Qualifier() int          { return int(c.qualifier) }
func (c RCO) Select() bool            { return c.selectCmd }
func (c RCO) Kind() ElementKind       { return KindRCO }
func (c RCO) Size() int               { return 1 }

func (c RCO) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, encodeStateCommand(uint8(c.state), c.qualifier, c.selectCmd))
}

func (c RCO) String() string {
	return fmt.Sprintf("RCO(state=%d,qu=%d,select=%t)", c.state, c.qualifier, c.selectCmd)
}

func decodeRCO(b []byte) (Element, int, error) {
	state, qu, sel := decodeStateCommand(b[0])
	return RCO{state: StepCommandState(state), qualifier: qu, selectCmd: sel}, 1, nil
}

func encodeStateCommand(state uint8, qualifier uint8, selectCmd bool) byte {
	b := state&0x03 | qualifier<<2
	if selectCmd {
		b |= selectBit
	}

	return b
}

func decodeStateCommand(b byte) (state uint8, qualifier uint8, selectCmd bool) {
	return b & 0x03, (b >> 2) & 0x1F, b&selectBit != 0
}

// QOS is the qualifier of a set-point command.
type QOS struct {
	ql        uint8
	selectCmd bool
}

// NewQOS builds a set-point qualifier. The qualifier must be in 0..127.
func NewQOS(ql int, selectCmd bool) (QOS, error) {
	if ql < 0 || ql > 127 {
		return QOS{}, invalidArg("qualifier of set-point %d out of range [0, 127]", ql)
	}

	return QOS{ql: uint8(ql), selectCmd: selectCmd}, nil
}

func (q QOS) Qualifier() int    { return int(q.ql) }
func (q QOS) Select() bool      { return q.selectCmd }
func (q QOS) Kind() ElementKind { return KindQOS }
func (q QOS) Size() int         { return 1 }

func (q QOS) Encode(buf []byte, offset int) (int, error) {
	b := q.ql
	if q.selectCmd {
		b |= selectBit
	}

	return putBytes(buf, offset, b)
}

func (q QOS) String() string { return fmt.Sprintf("QOS(ql=%d,select=%t)", q.ql, q.selectCmd) }

func decodeQOS(b []byte) (Element, int, error) {
	return QOS{ql: b[0] & 0x7F, selectCmd: b[0]&selectBit != 0}, 1, nil
}

// QPM is the qualifier of parameter of measured values.
type QPM struct {
	kind         uint8
	changed      bool
	notOperating bool
}

// Parameter kinds carried in QPM.
const (
	ParamThreshold = 1
	ParamFilter    = 2
	ParamLowLimit  = 3
	ParamHighLimit = 4
)

// NewQPM builds a QPM. kind must be in 0..63; changed is the local parameter change
// flag (LPC) and notOperating the parameter operation flag (POP).
func NewQPM(kind int, changed bool, notOperating bool) (QPM, error) {
	if kind < 0 || kind > 63 {
		return QPM{}, invalidArg("kind of parameter %d out of range [0, 63]", kind)
	}

	return QPM{kind: uint8(kind), changed: changed, notOperating: notOperating}, nil
}

func (q QPM) ParamKind() int     { return int(q.kind) }
func (q QPM) Changed() bool      { return q.changed }
func (q QPM) NotOperating() bool { return q.notOperating }
func (q QPM) Kind() ElementKind  { return KindQPM }
func (q QPM) Size() int          { return 1 }

func (q QPM) Encode(buf []byte, offset int) (int, error) {
	b := q.kind
	if q.changed {
		b |= 0x40
	}
	if q.notOperating {
		b |= 0x80
	}

	return putBytes(buf, offset, b)
}

func (q QPM) String() string {
	return fmt.Sprintf("QPM(kpa=%d,lpc=%t,pop=%t)", q.kind, q.changed, q.notOperating)
}

func decodeQPM(b []byte) (Element, int, error) {
	return QPM{kind: b[0] & 0x3F, changed: b[0]&0x40 != 0, notOperating: b[0]&0x80 != 0}, 1, nil
}

// QPA is the qualifier of parameter activation.
type QPA uint8

func (q QPA) Kind() ElementKind { return KindQPA }
func (q QPA) Size() int         { return 1 }

func (q QPA) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(q))
}

func (q QPA) String() string { return "QPA(" + strconv.Itoa(int(q)) + ")" }

// QOI is the qualifier of interrogation.
type QOI uint8

// QOIStation requests a station interrogation.
const QOIStation QOI = 20

// QOIGroup returns the qualifier for group interrogation 1..16.
func QOIGroup(group int) (QOI, error) {
	if group < 1 || group > 16 {
		return 0, invalidArg("interrogation group %d out of range [1, 16]", group)
	}

	return QOIStation + QOI(group), nil
}

func (q QOI) Kind() ElementKind { return KindQOI }
func (q QOI) Size() int         { return 1 }

func (q QOI) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(q))
}

func (q QOI) String() string { return "QOI(" + strconv.Itoa(int(q)) + ")" }

// Counter freeze behaviour carried in QCC.
const (
	FreezeRead            = 0
	FreezeNoReset         = 1
	FreezeWithReset       = 2
	FreezeCounterReset    = 3
	CounterRequestGeneral = 5 // request all counters
)

// QCC is the qualifier of counter interrogation command.
type QCC struct {
	request uint8
	freeze  uint8
}

// NewQCC builds a QCC. request must be in 0..63 and freeze in 0..3.
func NewQCC(request int, freeze int) (QCC, error) {
	if request < 0 || request > 63 {
		return QCC{}, invalidArg("counter request %d out of range [0, 63]", request)
	}
	if freeze < 0 || freeze > 3 {
		return QCC{}, invalidArg("counter freeze %d out of range [0, 3]", freeze)
	}

	return QCC{request: uint8(request), freeze: uint8(freeze)}, nil
}

func (q QCC) Request() int      { return int(q.request) }
func (q QCC) Freeze() int       { return int(q.freeze) }
func (q QCC) Kind() ElementKind { return KindQCC }
func (q QCC) Size() int         { return 1 }

func (q QCC) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, q.request|q.freeze<<6)
}

func (q QCC) String() string { return fmt.Sprintf("QCC(rqt=%d,frz=%d)", q.request, q.freeze) }

func decodeQCC(b []byte) (Element, int, error) {
	return QCC{request: b[0] & 0x3F, freeze: b[0] >> 6}, 1, nil
}

// QRP is the qualifier of reset process command.
type QRP uint8

const (
	QRPGeneralReset QRP = 1
	QRPResetEvents  QRP = 2
)

func (q QRP) Kind() ElementKind { return KindQRP }
func (q QRP) Size() int         { return 1 }

func (q QRP) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(q))
}

func (q QRP) String() string { return "QRP(" + strconv.Itoa(int(q)) + ")" }

// COI is the cause of initialization.
type COI struct {
	cause            uint8
	afterParamChange bool
}

// NewCOI builds a COI. cause must be in 0..127.
func NewCOI(cause int, afterParamChange bool) (COI, error) {
	if cause < 0 || cause > 127 {
		return COI{}, invalidArg("cause of initialization %d out of range [0, 127]", cause)
	}

	return COI{cause: uint8(cause), afterParamChange: afterParamChange}, nil
}

func (c COI) Cause() int             { return int(c.cause) }
func (c COI) AfterParamChange() bool { return c.afterParamChange }
func (c COI) Kind() ElementKind      { return KindCOI }
func (c COI) Size() int              { return 1 }

func (c COI) Encode(buf []byte, offset int) (int, error) {
	b := c.cause
	if c.afterParamChange {
		b |= 0x80
	}

	return putBytes(buf, offset, b)
}

func (c COI) String() string { return fmt.Sprintf("COI(%d,bs=%t)", c.cause, c.afterParamChange) }

func decodeCOI(b []byte) (Element, int, error) {
	return COI{cause: b[0] & 0x7F, afterParamChange: b[0]&0x80 != 0}, 1, nil
}

// FBP is the fixed test bit pattern 0x55 0xAA carried by the test command.
type FBP struct{}

var fixedTestPattern = [2]byte{0x55, 0xAA}

func (FBP) Kind() ElementKind { return KindFBP }
func (FBP) Size() int         { return 2 }

func (FBP) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, fixedTestPattern[:]...)
}

func (FBP) String() string { return "FBP(55AA)" }

func decodeFBP(b []byte) (Element, int, error) {
	if b[0] != fixedTestPattern[0] || b[1] != fixedTestPattern[1] {
		return nil, 0, malformed("fixed test bit pattern is %02X%02X", b[0], b[1])
	}

	return FBP{}, 2, nil
}

// TestSequenceCounter is the 16-bit counter carried by the test command with time tag.
type TestSequenceCounter uint16

func (t TestSequenceCounter) Kind() ElementKind { return KindTSC }
func (t TestSequenceCounter) Size() int         { return 2 }

func (t TestSequenceCounter) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(t), byte(t>>8))
}

func (t TestSequenceCounter) String() string { return "TSC(" + strconv.Itoa(int(t)) + ")" }

func decodeTSC(b []byte) (Element, int, error) {
	return TestSequenceCounter(binary.LittleEndian.Uint16(b)), 2, nil
}
