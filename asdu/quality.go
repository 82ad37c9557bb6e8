package asdu

import (
	"strconv"
	"strings"
)

// Quality holds the quality flag bits shared by SIQ, DIQ, QDS, QDP and SEP.
// Only the bits meaningful for the element are written; others are masked off.
type Quality uint8

const (
	QualityOV Quality = 0x01 // overflow
	QualityEI Quality = 0x08 // elapsed time invalid
	QualityBL Quality = 0x10 // blocked
	QualitySB Quality = 0x20 // substituted
	QualityNT Quality = 0x40 // not topical
	QualityIV Quality = 0x80 // invalid

	// QualityGood is the absence of all quality flags.
	QualityGood Quality = 0
)

const pointQualityMask = QualityBL | QualitySB | QualityNT | QualityIV

func (q Quality) String() string {
	if q == 0 {
		return "good"
	}

	names := []struct {
		bit  Quality
		name string
	}{
		{QualityIV, "IV"}, {QualityNT, "NT"}, {QualitySB, "SB"},
		{QualityBL, "BL"}, {QualityEI, "EI"}, {QualityOV, "OV"},
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if q&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}

	return strings.Join(parts, "|")
}

// SIQ is a single-point information with quality descriptor.
type SIQ uint8

// NewSIQ builds a SIQ from the point state and the BL, SB, NT and IV quality flags.
func NewSIQ(on bool, q Quality) SIQ {
	v := uint8(q & pointQualityMask)
	if on {
		v |= 0x01
	}

	return SIQ(v)
}

// On reports the single-point state.
func (s SIQ) On() bool { return s&0x01 != 0 }

// Quality returns the quality flags.
func (s SIQ) Quality() Quality { return Quality(s) & pointQualityMask }

func (s SIQ) Kind() ElementKind { return KindSIQ }
func (s SIQ) Size() int         { return 1 }

func (s SIQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(s))
}

func (s SIQ) String() string {
	return "SIQ(on=" + strconv.FormatBool(s.On()) + ",q=" + s.Quality().String() + ")"
}

// DoublePoint is the state of a double-point information.
type DoublePoint uint8

const (
	DoublePointIntermediate  DoublePoint = 0
	DoublePointOff           DoublePoint = 1
	DoublePointOn            DoublePoint = 2
	DoublePointIndeterminate DoublePoint = 3
)

func (d DoublePoint) String() string {
	switch d {
	case DoublePointIntermediate:
		return "intermediate"
	case DoublePointOff:
		return "off"
	case DoublePointOn:
		return "on"
	case DoublePointIndeterminate:
		return "indeterminate"
	default:
		return "invalid(" + strconv.Itoa(int(d)) + ")"
	}
}

// DIQ is a double-point information with quality descriptor.
type DIQ uint8

// NewDIQ builds a DIQ. The state must be in 0..3.
func NewDIQ(state DoublePoint, q Quality) (DIQ, error) {
	if state > DoublePointIndeterminate {
		return 0, invalidArg("double point state %d out of range [0, 3]", state)
	}

	return DIQ(uint8(state) | uint8(q&pointQualityMask)), nil
}

// State returns the double-point state.
func (d DIQ) State() DoublePoint { return DoublePoint(d & 0x03) }

// Quality returns the quality flags.
func (d DIQ) Quality() Quality { return Quality(d) & pointQualityMask }

func (d DIQ) Kind() ElementKind { return KindDIQ }
func (d DIQ) Size() int         { return 1 }

func (d DIQ) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(d))
}

func (d DIQ) String() string {
	return "DIQ(" + d.State().String() + ",q=" + d.Quality().String() + ")"
}

// QDS is the quality descriptor that accompanies measured values.
type QDS uint8

// NewQDS builds a QDS from the OV, BL, SB, NT and IV flags.
func NewQDS(q Quality) QDS {
	return QDS(q & (pointQualityMask | QualityOV))
}

// Quality returns the quality flags.
func (q QDS) Quality() Quality { return Quality(q) & (pointQualityMask | QualityOV) }

func (q QDS) Kind() ElementKind { return KindQDS }
func (q QDS) Size() int         { return 1 }

func (q QDS) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(q))
}

func (q QDS) String() string { return "QDS(" + q.Quality().String() + ")" }

// QDP is the quality descriptor for events of protection equipment.
type QDP uint8

// NewQDP builds a QDP from the EI, BL, SB, NT and IV flags.
func NewQDP(q Quality) QDP {
	return QDP(q & (pointQualityMask | QualityEI))
}

// Quality returns the quality flags.
func (q QDP) Quality() Quality { return Quality(q) & (pointQualityMask | QualityEI) }

func (q QDP) Kind() ElementKind { return KindQDP }
func (q QDP) Size() int         { return 1 }

func (q QDP) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(q))
}

func (q QDP) String() string { return "QDP(" + q.Quality().String() + ")" }

// SEP is a single event of protection equipment.
type SEP uint8

// NewSEP builds a SEP from the event state (0..3) and the EI, BL, SB, NT and IV flags.
func NewSEP(state DoublePoint, q Quality) (SEP, error) {
	if state > DoublePointIndeterminate {
		return 0, invalidArg("event state %d out of range [0, 3]", state)
	}

	return SEP(uint8(state) | uint8(q&(pointQualityMask|QualityEI))), nil
}

// State returns the event state.
func (s SEP) State() DoublePoint { return DoublePoint(s & 0x03) }

// Quality returns the quality flags.
func (s SEP) Quality() Quality { return Quality(s) & (pointQualityMask | QualityEI) }

func (s SEP) Kind() ElementKind { return KindSEP }
func (s SEP) Size() int         { return 1 }

func (s SEP) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(s))
}

func (s SEP) String() string {
	return "SEP(" + s.State().String() + ",q=" + s.Quality().String() + ")"
}

// SPE holds the start events of protection equipment.
type SPE uint8

const (
	SPEGeneralStart SPE = 0x01 // GS
	SPEStartL1      SPE = 0x02 // SL1
	SPEStartL2      SPE = 0x04 // SL2
	SPEStartL3      SPE = 0x08 // SL3
	SPEStartEarth   SPE = 0x10 // SIE
	SPEStartReverse SPE = 0x20 // SRD
)

// Has reports whether all bits of flag are set.
func (s SPE) Has(flag SPE) bool { return s&flag == flag }

func (s SPE) Kind() ElementKind { return KindSPE }
func (s SPE) Size() int         { return 1 }

func (s SPE) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(s))
}

func (s SPE) String() string { return "SPE(0x" + strconv.FormatUint(uint64(s), 16) + ")" }

// OCI holds the output circuit information of protection equipment.
type OCI uint8

const (
	OCIGeneral OCI = 0x01 // GC
	OCIPhaseL1 OCI = 0x02 // CL1
	OCIPhaseL2 OCI = 0x04 // CL2
	OCIPhaseL3 OCI = 0x08 // CL3
)

// Has reports whether all bits of flag are set.
func (o OCI) Has(flag OCI) bool { return o&flag == flag }

func (o OCI) Kind() ElementKind { return KindOCI }
func (o OCI) Size() int         { return 1 }

func (o OCI) Encode(buf []byte, offset int) (int, error) {
	return putBytes(buf, offset, byte(o))
}

func (o OCI) String() string { return "OCI(0x" + strconv.FormatUint(uint64(o), 16) + ")" }
