package asdu

import "strconv"

// TypeID is the type identification of a unit. It selects the layout of every
// information object in the unit.
type TypeID uint8

// Process information in monitor direction.
const (
	MSpNa1 TypeID = 1  // single-point information
	MSpTa1 TypeID = 2  // single-point information with CP24 time tag
	MDpNa1 TypeID = 3  // double-point information
	MDpTa1 TypeID = 4  // double-point information with CP24 time tag
	MStNa1 TypeID = 5  // step position information
	MStTa1 TypeID = 6  // step position information with CP24 time tag
	MBoNa1 TypeID = 7  // bitstring of 32 bit
	MBoTa1 TypeID = 8  // bitstring of 32 bit with CP24 time tag
	MMeNa1 TypeID = 9  // measured value, normalized value
	MMeTa1 TypeID = 10 // measured value, normalized value with CP24 time tag
	MMeNb1 TypeID = 11 // measured value, scaled value
	MMeTb1 TypeID = 12 // measured value, scaled value with CP24 time tag
	MMeNc1 TypeID = 13 // measured value, short floating point number
	MMeTc1 TypeID = 14 // measured value, short floating point number with CP24 time tag
	MItNa1 TypeID = 15 // integrated totals
	MItTa1 TypeID = 16 // integrated totals with CP24 time tag
	MEpTa1 TypeID = 17 // event of protection equipment with CP24 time tag
	MEpTb1 TypeID = 18 // packed start events of protection equipment with CP24 time tag
	MEpTc1 TypeID = 19 // packed output circuit information of protection equipment with CP24 time tag
	MPsNa1 TypeID = 20 // packed single-point information with status change detection
	MMeNd1 TypeID = 21 // measured value, normalized value without quality descriptor
	MSpTb1 TypeID = 30 // single-point information with CP56 time tag
	MDpTb1 TypeID = 31 // double-point information with CP56 time tag
	MStTb1 TypeID = 32 // step position information with CP56 time tag
	MBoTb1 TypeID = 33 // bitstring of 32 bit with CP56 time tag
	MMeTd1 TypeID = 34 // measured value, normalized value with CP56 time tag
	MMeTe1 TypeID = 35 // measured value, scaled value with CP56 time tag
	MMeTf1 TypeID = 36 // measured value, short floating point number with CP56 time tag
	MItTb1 TypeID = 37 // integrated totals with CP56 time tag
	MEpTd1 TypeID = 38 // event of protection equipment with CP56 time tag
	MEpTe1 TypeID = 39 // packed start events of protection equipment with CP56 time tag
	MEpTf1 TypeID = 40 // packed output circuit information of protection equipment with CP56 time tag
)

// Process information in control direction.
const (
	CScNa1 TypeID = 45 // single command
	CDcNa1 TypeID = 46 // double command
	CRcNa1 TypeID = 47 // regulating step command
	CSeNa1 TypeID = 48 // set-point command, normalized value
	CSeNb1 TypeID = 49 // set-point command, scaled value
	CSeNc1 TypeID = 50 // set-point command, short floating point number
	CBoNa1 TypeID = 51 // bitstring of 32 bit command
	CScTa1 TypeID = 58 // single command with CP56 time tag
	CDcTa1 TypeID = 59 // double command with CP56 time tag
	CRcTa1 TypeID = 60 // regulating step command with CP56 time tag
	CSeTa1 TypeID = 61 // set-point command, normalized value with CP56 time tag
	CSeTb1 TypeID = 62 // set-point command, scaled value with CP56 time tag
	CSeTc1 TypeID = 63 // set-point command, short floating point number with CP56 time tag
	CBoTa1 TypeID = 64 // bitstring of 32 bit command with CP56 time tag
)

// System information, parameters and file transfer.
const (
	MEiNa1 TypeID = 70  // end of initialization
	CIcNa1 TypeID = 100 // interrogation command
	CCiNa1 TypeID = 101 // counter interrogation command
	CRdNa1 TypeID = 102 // read command
	CCsNa1 TypeID = 103 // clock synchronization command
	CTsNa1 TypeID = 104 // test command
	CRpNa1 TypeID = 105 // reset process command
	CCdNa1 TypeID = 106 // delay acquisition command
	CTsTa1 TypeID = 107 // test command with CP56 time tag
	PMeNa1 TypeID = 110 // parameter of measured value, normalized value
	PMeNb1 TypeID = 111 // parameter of measured value, scaled value
	PMeNc1 TypeID = 112 // parameter of measured value, short floating point number
	PAcNa1 TypeID = 113 // parameter activation
	FFrNa1 TypeID = 120 // file ready
	FSrNa1 TypeID = 121 // section ready
	FScNa1 TypeID = 122 // call directory, select file, call file, call section
	FLsNa1 TypeID = 123 // last section, last segment
	FAfNa1 TypeID = 124 // ack file, ack section
	FSgNa1 TypeID = 125 // segment
	FDrTa1 TypeID = 126 // directory
	FScNb1 TypeID = 127 // query log, request archive file
)

// PrivateRangeStart is the first type identification of the private range.
const PrivateRangeStart TypeID = 128

// Known reports whether t is a standard type identification with a built-in layout.
func (t TypeID) Known() bool {
	return typeTable[t].known
}

// IsPrivate reports whether t lies in the private range 128..255.
func (t TypeID) IsPrivate() bool {
	return t >= PrivateRangeStart
}

// Sequenceable reports whether units of type t may use sequential addressing.
func (t TypeID) Sequenceable() bool {
	return typeTable[t].sequence
}

// String returns the standard mnemonic, e.g. "M_SP_NA_1".
// Unregistered codes return "PRIVATE(n)" or "UNKNOWN(n)".
func (t TypeID) String() string {
	if info := typeTable[t]; info.known {
		return info.name
	}

	if t.IsPrivate() {
		return "PRIVATE(" + strconv.Itoa(int(t)) + ")"
	}

	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}
