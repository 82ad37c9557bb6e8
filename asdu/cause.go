package asdu

import (
	"strconv"
	"strings"
)

// Cause is the 6-bit cause of transmission code.
type Cause uint8

const (
	Periodic                  Cause = 1
	Background                Cause = 2
	Spontaneous               Cause = 3
	Initialized               Cause = 4
	Request                   Cause = 5
	Activation                Cause = 6
	ActivationCon             Cause = 7
	Deactivation              Cause = 8
	DeactivationCon           Cause = 9
	ActivationTermination     Cause = 10
	ReturnInfoRemote          Cause = 11
	ReturnInfoLocal           Cause = 12
	FileTransfer              Cause = 13
	InterrogatedByStation     Cause = 20
	InterrogatedByGroup1      Cause = 21 // groups 2..16 follow consecutively up to 36
	RequestedByGeneralCounter Cause = 37
	RequestedByGroup1Counter  Cause = 38 // groups 2..4 follow consecutively up to 41
	UnknownTypeID             Cause = 44
	UnknownCause              Cause = 45
	UnknownCommonAddress      Cause = 46
	UnknownObjectAddress      Cause = 47
)

// MaxCause is the largest encodable cause code.
const MaxCause Cause = 0x3F

var causeNames [64]string

func init() {
	named := map[Cause]string{
		Periodic:                  "PERIODIC",
		Background:                "BACKGROUND_SCAN",
		Spontaneous:               "SPONTANEOUS",
		Initialized:               "INITIALIZED",
		Request:                   "REQUEST",
		Activation:                "ACTIVATION",
		ActivationCon:             "ACTIVATION_CON",
		Deactivation:              "DEACTIVATION",
		DeactivationCon:           "DEACTIVATION_CON",
		ActivationTermination:     "ACTIVATION_TERMINATION",
		ReturnInfoRemote:          "RETURN_INFO_REMOTE",
		ReturnInfoLocal:           "RETURN_INFO_LOCAL",
		FileTransfer:              "FILE_TRANSFER",
		InterrogatedByStation:     "INTERROGATED_BY_STATION",
		RequestedByGeneralCounter: "REQUESTED_BY_GENERAL_COUNTER",
		UnknownTypeID:             "UNKNOWN_TYPE_ID",
		UnknownCause:              "UNKNOWN_CAUSE_OF_TRANSMISSION",
		UnknownCommonAddress:      "UNKNOWN_COMMON_ADDRESS_OF_ASDU",
		UnknownObjectAddress:      "UNKNOWN_INFORMATION_OBJECT_ADDRESS",
	}
	for c, name := range named {
		causeNames[c] = name
	}
	for g := Cause(0); g < 16; g++ {
		causeNames[InterrogatedByGroup1+g] = "INTERROGATED_BY_GROUP_" + strconv.Itoa(int(g)+1)
	}
	for g := Cause(0); g < 4; g++ {
		causeNames[RequestedByGroup1Counter+g] = "REQUESTED_BY_GROUP_" + strconv.Itoa(int(g)+1) + "_COUNTER"
	}
}

// Known reports whether c is a standard cause code.
func (c Cause) Known() bool {
	return c <= MaxCause && causeNames[c] != ""
}

// String returns the standard name of c or "UNKNOWN(n)".
func (c Cause) String() string {
	if c.Known() {
		return causeNames[c]
	}

	return "UNKNOWN(" + strconv.Itoa(int(c)) + ")"
}

// COT is the cause of transmission field of a unit.
//
// Originator is only carried on the wire when the connection uses a two-byte cause field.
type COT struct {
	Cause      Cause
	Test       bool
	Negative   bool
	Originator uint8
}

const (
	cotTestBit     = 0x80
	cotNegativeBit = 0x40
)

// NewCOT returns a COT with the given cause and no flags.
func NewCOT(cause Cause) COT {
	return COT{Cause: cause}
}

func (c COT) validate() error {
	if c.Cause > MaxCause {
		return invalidArg("cause %d exceeds %d", c.Cause, MaxCause)
	}

	return nil
}

func (c COT) firstByte() byte {
	b := byte(c.Cause)
	if c.Test {
		b |= cotTestBit
	}
	if c.Negative {
		b |= cotNegativeBit
	}

	return b
}

func parseCOT(b byte) COT {
	return COT{
		Cause:    Cause(b & byte(MaxCause)),
		Test:     b&cotTestBit != 0,
		Negative: b&cotNegativeBit != 0,
	}
}

func (c COT) String() string {
	var sb strings.Builder
	sb.WriteString(c.Cause.String())
	if c.Test {
		sb.WriteString(",test")
	}
	if c.Negative {
		sb.WriteString(",negative")
	}
	if c.Originator != 0 {
		sb.WriteString(",orig=")
		sb.WriteString(strconv.Itoa(int(c.Originator)))
	}

	return sb.String()
}
