package asdu

import (
	"strconv"
	"strings"

	"github.com/arloliu/go-iec104/internal/util"
)

const (
	// MaxSize is the largest encoded unit that fits into one I frame.
	MaxSize = 249
	// MaxObjects is the largest object count the variable structure qualifier can carry.
	MaxObjects = 127
	// MaxAddress is the largest information object address (three octets).
	MaxAddress = 1<<24 - 1

	vsqSequenceBit = 0x80
)

// Params holds the per-connection field widths of the unit header and object addresses.
type Params struct {
	CauseSize      int // 1 or 2, the second octet carries the originator address
	CommonAddrSize int // 1 or 2
	IOASize        int // 1, 2 or 3
}

// DefaultParams are the widths mandated for IEC 60870-5-104 links.
var DefaultParams = Params{CauseSize: 2, CommonAddrSize: 2, IOASize: 3}

// Valid checks the field widths.
func (p Params) Valid() error {
	if p.CauseSize < 1 || p.CauseSize > 2 {
		return invalidArg("cause of transmission size %d out of range [1, 2]", p.CauseSize)
	}
	if p.CommonAddrSize < 1 || p.CommonAddrSize > 2 {
		return invalidArg("common address size %d out of range [1, 2]", p.CommonAddrSize)
	}
	if p.IOASize < 1 || p.IOASize > 3 {
		return invalidArg("information object address size %d out of range [1, 3]", p.IOASize)
	}

	return nil
}

func (p Params) headerSize() int {
	return 2 + p.CauseSize + p.CommonAddrSize
}

func (p Params) maxCommonAddr() uint16 {
	if p.CommonAddrSize == 1 {
		return 0xFF
	}

	return 0xFFFF
}

func (p Params) maxAddress() uint32 {
	return 1<<(8*p.IOASize) - 1
}

// InformationObject is one addressed group of elements.
type InformationObject struct {
	Address  uint32
	Elements []Element
}

// NewObject returns an information object with the given address and elements.
func NewObject(address uint32, elems ...Element) InformationObject {
	return InformationObject{Address: address, Elements: elems}
}

func (o InformationObject) clone() InformationObject {
	if len(o.Elements) == 0 {
		return InformationObject{Address: o.Address}
	}

	return InformationObject{Address: o.Address, Elements: util.CloneSlice(o.Elements, 0)}
}

func (o InformationObject) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(o.Address), 10))
	sb.WriteString(":")
	for i, e := range o.Elements {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(e.String())
	}

	return sb.String()
}

// Header is the decoded data unit identifier. Extensions receive it together with the
// object payload.
type Header struct {
	Type       TypeID
	Sequential bool
	Count      int
	COT        COT
	CommonAddr uint16
}

// Unit is an immutable application service data unit.
type Unit struct {
	typeID     TypeID
	sequential bool
	count      int
	cot        COT
	commonAddr uint16
	objects    []InformationObject
}

// NewUnit validates and builds a unit.
//
// The object count must be in 1..127. For standard types every object must carry the
// element kinds of the type's layout, and sequential mode is only accepted for types
// that allow it, with consecutive object addresses.
func NewUnit(typeID TypeID, sequential bool, cot COT, commonAddr uint16, objects ...InformationObject) (*Unit, error) {
	if err := cot.validate(); err != nil {
		return nil, err
	}
	if len(objects) == 0 || len(objects) > MaxObjects {
		return nil, invalidArg("object count %d out of range [1, %d]", len(objects), MaxObjects)
	}

	info := typeTable[typeID]
	if info.known {
		if sequential && !info.sequence {
			return nil, invalidArg("%s cannot be sent as a sequence", typeID)
		}
		for i, obj := range objects {
			if err := checkLayout(typeID, info.elems, obj); err != nil {
				return nil, invalidArg("object %d: %v", i, err)
			}
		}
	}

	for i, obj := range objects {
		if obj.Address > MaxAddress {
			return nil, invalidArg("object %d address %d exceeds %d", i, obj.Address, MaxAddress)
		}
		if sequential && i > 0 && obj.Address != objects[0].Address+uint32(i) {
			return nil, invalidArg("sequence object %d address %d, expected %d", i, obj.Address, objects[0].Address+uint32(i))
		}
		for j, e := range obj.Elements {
			if e == nil {
				return nil, invalidArg("object %d element %d is nil", i, j)
			}
		}
	}

	u := &Unit{
		typeID:     typeID,
		sequential: sequential,
		count:      len(objects),
		cot:        cot,
		commonAddr: commonAddr,
		objects:    make([]InformationObject, len(objects)),
	}
	for i, obj := range objects {
		u.objects[i] = obj.clone()
	}

	return u, nil
}

// NewPrivateUnit builds a unit of a type outside the standard catalogue. The header
// count is written as given, which lets extensions carry payloads that are not split
// into individual objects.
func NewPrivateUnit(h Header, objects ...InformationObject) (*Unit, error) {
	if h.Type.Known() {
		return nil, invalidArg("%s is a standard type", h.Type)
	}
	if err := h.COT.validate(); err != nil {
		return nil, err
	}
	if h.Count < 1 || h.Count > MaxObjects {
		return nil, invalidArg("object count %d out of range [1, %d]", h.Count, MaxObjects)
	}
	if len(objects) == 0 {
		return nil, invalidArg("no objects")
	}

	u := &Unit{
		typeID:     h.Type,
		sequential: h.Sequential,
		count:      h.Count,
		cot:        h.COT,
		commonAddr: h.CommonAddr,
		objects:    make([]InformationObject, len(objects)),
	}
	for i, obj := range objects {
		if obj.Address > MaxAddress {
			return nil, invalidArg("object %d address %d exceeds %d", i, obj.Address, MaxAddress)
		}
		u.objects[i] = obj.clone()
	}

	return u, nil
}

func checkLayout(t TypeID, kinds []ElementKind, obj InformationObject) error {
	if len(obj.Elements) != len(kinds) {
		return invalidArg("%s expects %d elements, got %d", t, len(kinds), len(obj.Elements))
	}
	for i, e := range obj.Elements {
		if e == nil {
			return invalidArg("element %d is nil", i)
		}
		if e.Kind() != kinds[i] {
			return invalidArg("%s element %d must be %s, got %s", t, i, kinds[i], e.Kind())
		}
	}

	return nil
}

// Type returns the type identification.
func (u *Unit) Type() TypeID { return u.typeID }

// Sequential reports whether the unit is encoded with the SQ bit set.
func (u *Unit) Sequential() bool { return u.sequential }

// COT returns the cause of transmission field.
func (u *Unit) COT() COT { return u.cot }

// Cause is shorthand for COT().Cause.
func (u *Unit) Cause() Cause { return u.cot.Cause }

// CommonAddr returns the common address of the unit.
func (u *Unit) CommonAddr() uint16 { return u.commonAddr }

// Len returns the object count written in the header.
func (u *Unit) Len() int { return u.count }

// Header returns the data unit identifier.
func (u *Unit) Header() Header {
	return Header{Type: u.typeID, Sequential: u.sequential, Count: u.count, COT: u.cot, CommonAddr: u.commonAddr}
}

// Objects returns a copy of the information objects.
func (u *Unit) Objects() []InformationObject {
	objs := make([]InformationObject, len(u.objects))
	for i, obj := range u.objects {
		objs[i] = obj.clone()
	}

	return objs
}

// Object returns the i-th information object.
func (u *Unit) Object(i int) (InformationObject, bool) {
	if i < 0 || i >= len(u.objects) {
		return InformationObject{}, false
	}

	return u.objects[i].clone(), true
}

// FirstAddress returns the address of the first object.
func (u *Unit) FirstAddress() uint32 {
	return u.objects[0].Address
}

// Confirmation returns a mirrored unit confirming u. ACTIVATION becomes ACTIVATION_CON
// and DEACTIVATION becomes DEACTIVATION_CON, other causes are kept.
func (u *Unit) Confirmation(negative bool) *Unit {
	cause := u.cot.Cause
	switch cause {
	case Activation:
		cause = ActivationCon
	case Deactivation:
		cause = DeactivationCon
	}

	return u.mirror(negative, cause)
}

// ConfirmationWithCause mirrors u with an explicit cause. Test flag and originator
// address are kept. A cause above MaxCause is an invalid argument.
func (u *Unit) ConfirmationWithCause(negative bool, cause Cause) (*Unit, error) {
	if cause > MaxCause {
		return nil, invalidArg("cause %d exceeds %d", cause, MaxCause)
	}

	return u.mirror(negative, cause), nil
}

func (u *Unit) mirror(negative bool, cause Cause) *Unit {
	c := *u
	c.cot.Cause = cause
	c.cot.Negative = negative
	c.objects = u.Objects()

	return &c
}

func (u *Unit) String() string {
	var sb strings.Builder
	sb.WriteString(u.typeID.String())
	if u.sequential {
		sb.WriteString(" SQ")
	}
	sb.WriteString(" n=")
	sb.WriteString(strconv.Itoa(u.count))
	sb.WriteString(" cot=")
	sb.WriteString(u.cot.String())
	sb.WriteString(" ca=")
	sb.WriteString(strconv.Itoa(int(u.commonAddr)))
	sb.WriteString(" [")
	for i, obj := range u.objects {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(obj.String())
	}
	sb.WriteString("]")

	return sb.String()
}
