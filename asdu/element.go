package asdu

import (
	"fmt"
	"strconv"
)

// ElementKind identifies one of the information element encodings.
type ElementKind uint8

const (
	KindInvalid ElementKind = iota
	KindSIQ                 // single-point information with quality
	KindDIQ                 // double-point information with quality
	KindQDS                 // quality descriptor
	KindVTI                 // value with transient state indication
	KindNVA                 // normalized value
	KindSVA                 // scaled value
	KindR32                 // short floating point number
	KindBSI                 // binary state information, 32 bit
	KindSCD                 // status and status change detection
	KindBCR                 // binary counter reading
	KindSEP                 // single event of protection equipment
	KindSPE                 // start events of protection equipment
	KindOCI                 // output circuit information of protection equipment
	KindQDP                 // quality descriptor for events of protection equipment
	KindSCO                 // single command
	KindDCO                 // double command
	KindRCO                 // regulating step command
	KindQOS                 // qualifier of set-point command
	KindQPM                 // qualifier of parameter of measured values
	KindQPA                 // qualifier of parameter activation
	KindQOI                 // qualifier of interrogation
	KindQCC                 // qualifier of counter interrogation command
	KindQRP                 // qualifier of reset process command
	KindCOI                 // cause of initialization
	KindFBP                 // fixed test bit pattern
	KindTSC                 // test sequence counter
	KindCP16                // two-octet binary time
	KindCP24                // three-octet binary time
	KindCP56                // seven-octet binary time
	KindNOF                 // name of file
	KindLOF                 // length of file or section
	KindFRQ                 // file ready qualifier
	KindSRQ                 // section ready qualifier
	KindSCQ                 // select and call qualifier
	KindLSQ                 // last section or segment qualifier
	KindAFQ                 // acknowledge file or section qualifier
	KindCHS                 // checksum
	KindSOF                 // status of file
	KindNOS                 // name of section
	KindSEG                 // file segment, length prefixed
	KindRAW                 // opaque private bytes, consumes the remaining input
	kindCount
)

// Element is a single encoded information element.
//
// All implementations in this package are immutable values. Extensions may provide
// their own implementations for private type identifications.
type Element interface {
	// Kind returns the element kind.
	Kind() ElementKind
	// Size returns the number of bytes Encode writes.
	Size() int
	// Encode writes the element into buf starting at offset and returns the number of
	// bytes written.
	Encode(buf []byte, offset int) (int, error)
	// String returns a short human readable form used in logs.
	String() string
}

type kindInfo struct {
	name   string
	size   int // fixed size in bytes, 0 for variable size kinds
	decode func(b []byte) (Element, int, error)
}

var kindTable [kindCount]kindInfo

func init() {
	kindTable = [kindCount]kindInfo{
		KindSIQ:  {"SIQ", 1, func(b []byte) (Element, int, error) { return SIQ(b[0]), 1, nil }},
		KindDIQ:  {"DIQ", 1, func(b []byte) (Element, int, error) { return DIQ(b[0]), 1, nil }},
		KindQDS:  {"QDS", 1, func(b []byte) (Element, int, error) { return QDS(b[0]), 1, nil }},
		KindVTI:  {"VTI", 1, decodeVTI},
		KindNVA:  {"NVA", 2, decodeNVA},
		KindSVA:  {"SVA", 2, decodeSVA},
		KindR32:  {"R32", 4, decodeR32},
		KindBSI:  {"BSI", 4, decodeBSI},
		KindSCD:  {"SCD", 4, decodeSCD},
		KindBCR:  {"BCR", 5, decodeBCR},
		KindSEP:  {"SEP", 1, func(b []byte) (Element, int, error) { return SEP(b[0]), 1, nil }},
		KindSPE:  {"SPE", 1, func(b []byte) (Element, int, error) { return SPE(b[0]), 1, nil }},
		KindOCI:  {"OCI", 1, func(b []byte) (Element, int, error) { return OCI(b[0]), 1, nil }},
		KindQDP:  {"QDP", 1, func(b []byte) (Element, int, error) { return QDP(b[0]), 1, nil }},
		KindSCO:  {"SCO", 1, decodeSCO},
		KindDCO:  {"DCO", 1, decodeDCO},
		KindRCO:  {"RCO", 1, decodeRCO},
		KindQOS:  {"QOS", 1, decodeQOS},
		KindQPM:  {"QPM", 1, decodeQPM},
		KindQPA:  {"QPA", 1, func(b []byte) (Element, int, error) { return QPA(b[0]), 1, nil }},
		KindQOI:  {"QOI", 1, func(b []byte) (Element, int, error) { return QOI(b[0]), 1, nil }},
		KindQCC:  {"QCC", 1, decodeQCC},
		KindQRP:  {"QRP", 1, func(b []byte) (Element, int, error) { return QRP(b[0]), 1, nil }},
		KindCOI:  {"COI", 1, decodeCOI},
		KindFBP:  {"FBP", 2, decodeFBP},
		KindTSC:  {"TSC", 2, decodeTSC},
		KindCP16: {"CP16", 2, decodeTime16},
		KindCP24: {"CP24", 3, decodeTime24},
		KindCP56: {"CP56", 7, decodeTime56},
		KindNOF:  {"NOF", 2, decodeNOF},
		KindLOF:  {"LOF", 3, decodeLOF},
		KindFRQ:  {"FRQ", 1, decodeFRQ},
		KindSRQ:  {"SRQ", 1, decodeSRQ},
		KindSCQ:  {"SCQ", 1, decodeSCQ},
		KindLSQ:  {"LSQ", 1, func(b []byte) (Element, int, error) { return LSQ(b[0]), 1, nil }},
		KindAFQ:  {"AFQ", 1, decodeAFQ},
		KindCHS:  {"CHS", 1, func(b []byte) (Element, int, error) { return CHS(b[0]), 1, nil }},
		KindSOF:  {"SOF", 1, decodeSOF},
		KindNOS:  {"NOS", 1, func(b []byte) (Element, int, error) { return NameOfSection(b[0]), 1, nil }},
		KindSEG:  {"SEG", 0, decodeSegment},
		KindRAW:  {"RAW", 0, decodeRaw},
	}
}

// String returns the element kind mnemonic.
func (k ElementKind) String() string {
	if k < kindCount && kindTable[k].name != "" {
		return kindTable[k].name
	}

	return "KIND(" + strconv.Itoa(int(k)) + ")"
}

// FixedSize returns the encoded width of k, or 0 when the width depends on the value.
func (k ElementKind) FixedSize() int {
	if k >= kindCount {
		return 0
	}

	return kindTable[k].size
}

// DecodeElement decodes one element of the given kind from buf starting at offset.
// It returns the element and the number of bytes consumed.
//
// Flag and quality bits are preserved as received, whatever their combination.
func DecodeElement(buf []byte, offset int, kind ElementKind) (Element, int, error) {
	if kind == KindInvalid || kind >= kindCount {
		return nil, 0, fmt.Errorf("%w: element kind %d", ErrMalformed, kind)
	}
	if offset < 0 || offset > len(buf) {
		return nil, 0, fmt.Errorf("%w: offset %d outside buffer of %d bytes", ErrTruncated, offset, len(buf))
	}

	info := kindTable[kind]
	rest := buf[offset:]
	if len(rest) < info.size || (info.size == 0 && kind == KindSEG && len(rest) == 0) {
		need := info.size
		if need == 0 {
			need = 1
		}

		return nil, 0, truncated(info.name, need, len(rest))
	}

	return info.decode(rest)
}

// putBytes copies src into buf at offset after a bounds check.
func putBytes(buf []byte, offset int, src ...byte) (int, error) {
	if offset < 0 || offset+len(src) > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes at offset %d, buffer has %d", ErrShortBuffer, len(src), offset, len(buf))
	}

	return copy(buf[offset:], src), nil
}
