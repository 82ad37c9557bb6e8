// Package asdu implements the application service data units of IEC 60870-5-101/104
// and the complete catalogue of their information elements.
//
// A unit consists of the data unit identifier (type identification, variable structure
// qualifier, cause of transmission and common address) followed by one or more
// information objects. The widths of the cause, common address and object address
// fields are fixed per link and described by Params.
//
// Elements are immutable values. Constructors such as NewScaledValue or NewSCO validate
// their ranges and return an error wrapping ErrInvalidArgument; decoding never rejects a
// flag combination and preserves every bit it reads.
//
// Usage Example:
//
//	codec, _ := asdu.NewCodec(asdu.DefaultParams)
//
//	u, _ := asdu.NewUnit(asdu.MSpNa1, false, asdu.NewCOT(asdu.Spontaneous), 1,
//	    asdu.NewObject(100, asdu.NewSIQ(true, asdu.QualityGood)),
//	)
//	b, _ := codec.Encode(u)
//
//	decoded, err := codec.Decode(b)
//
// Type identifications outside the standard catalogue are rejected with ErrUnknownType
// unless an Extension passed to NewCodec claims them.
package asdu
