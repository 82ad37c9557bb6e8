package asdu

import (
	"fmt"
)

// Extension decodes the objects of type identifications outside the standard catalogue.
//
// An extension claims codes through Types. Only codes without a built-in layout may be
// claimed, and a code may be claimed by one extension at most.
type Extension interface {
	// Types returns the type identifications handled by the extension.
	Types() []TypeID
	// DecodeObjects decodes everything after the data unit identifier.
	DecodeObjects(h Header, payload []byte, p Params) ([]InformationObject, error)
}

// Codec encodes and decodes units with fixed field widths.
//
// A Codec is immutable after NewCodec and safe for concurrent use.
type Codec struct {
	params Params
	claims [256]Extension
}

// NewCodec validates p and resolves the extension claims.
func NewCodec(p Params, exts ...Extension) (*Codec, error) {
	if err := p.Valid(); err != nil {
		return nil, err
	}

	c := &Codec{params: p}
	var owner [256]int
	for i, ext := range exts {
		if ext == nil {
			continue
		}
		for _, t := range ext.Types() {
			if t.Known() {
				return nil, invalidArg("extension claims standard type %s", t)
			}
			if owner[t] != 0 && owner[t] != i+1 {
				return nil, invalidArg("type %s claimed by more than one extension", t)
			}
			owner[t] = i + 1
			c.claims[t] = ext
		}
	}

	return c, nil
}

// Params returns the field widths of the codec.
func (c *Codec) Params() Params { return c.params }

// Claimed reports whether an extension decodes t.
func (c *Codec) Claimed(t TypeID) bool { return c.claims[t] != nil }

// Decode parses one complete unit. Every byte of b must belong to the unit.
func (c *Codec) Decode(b []byte) (*Unit, error) {
	p := c.params
	hs := p.headerSize()
	if len(b) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrTooLong, len(b), MaxSize)
	}
	if len(b) < hs {
		return nil, truncated("data unit identifier", hs, len(b))
	}

	h := Header{
		Type:       TypeID(b[0]),
		Sequential: b[1]&vsqSequenceBit != 0,
		Count:      int(b[1] &^ vsqSequenceBit),
		COT:        parseCOT(b[2]),
	}
	if p.CauseSize == 2 {
		h.COT.Originator = b[3]
	}
	h.CommonAddr = uint16(b[2+p.CauseSize])
	if p.CommonAddrSize == 2 {
		h.CommonAddr |= uint16(b[3+p.CauseSize]) << 8
	}

	if h.Count == 0 {
		return nil, malformed("%s with zero objects", h.Type)
	}

	payload := b[hs:]
	info := typeTable[h.Type]
	if !info.known {
		ext := c.claims[h.Type]
		if ext == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, h.Type)
		}

		objs, err := ext.DecodeObjects(h, payload, p)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}

		u, err := NewPrivateUnit(h, objs...)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", h.Type, err)
		}

		return u, nil
	}

	if h.Sequential && !info.sequence {
		return nil, malformed("%s cannot be sent as a sequence", h.Type)
	}

	objs := make([]InformationObject, h.Count)
	off := 0
	var base uint32
	for i := range objs {
		var addr uint32
		if !h.Sequential || i == 0 {
			if len(payload)-off < p.IOASize {
				return nil, truncated("object address", p.IOASize, len(payload)-off)
			}
			addr = readAddress(payload[off:], p.IOASize)
			off += p.IOASize
			base = addr
			if h.Sequential && uint64(base)+uint64(h.Count-1) > uint64(p.maxAddress()) {
				return nil, malformed("sequence of %d objects from address %d overflows %d octets", h.Count, base, p.IOASize)
			}
		} else {
			addr = base + uint32(i)
		}

		var elems []Element
		if len(info.elems) > 0 {
			elems = make([]Element, len(info.elems))
		}
		for j, kind := range info.elems {
			e, n, err := DecodeElement(payload, off, kind)
			if err != nil {
				return nil, fmt.Errorf("decode %s object %d: %w", h.Type, i, err)
			}
			elems[j] = e
			off += n
		}
		objs[i] = InformationObject{Address: addr, Elements: elems}
	}

	if off != len(payload) {
		return nil, malformed("%d trailing bytes after %s", len(payload)-off, h.Type)
	}

	return &Unit{
		typeID:     h.Type,
		sequential: h.Sequential,
		count:      h.Count,
		cot:        h.COT,
		commonAddr: h.CommonAddr,
		objects:    objs,
	}, nil
}

// Encode returns the wire form of u.
func (c *Codec) Encode(u *Unit) ([]byte, error) {
	return c.AppendEncode(make([]byte, 0, MaxSize), u)
}

// AppendEncode appends the wire form of u to dst.
func (c *Codec) AppendEncode(dst []byte, u *Unit) ([]byte, error) {
	if u == nil {
		return dst, invalidArg("nil unit")
	}

	p := c.params
	if u.commonAddr > p.maxCommonAddr() {
		return dst, invalidArg("common address %d does not fit %d octets", u.commonAddr, p.CommonAddrSize)
	}
	if u.cot.Originator != 0 && p.CauseSize == 1 {
		return dst, invalidArg("originator address %d needs a two octet cause field", u.cot.Originator)
	}
	for i, obj := range u.objects {
		if obj.Address > p.maxAddress() {
			return dst, invalidArg("object %d address %d does not fit %d octets", i, obj.Address, p.IOASize)
		}
	}

	size := c.encodedSize(u)
	if size > MaxSize {
		return dst, fmt.Errorf("%w: %d bytes, max %d", ErrTooLong, size, MaxSize)
	}

	start := len(dst)
	dst = append(dst, make([]byte, size)...)
	buf := dst[start:]

	buf[0] = byte(u.typeID)
	buf[1] = byte(u.count)
	if u.sequential {
		buf[1] |= vsqSequenceBit
	}
	buf[2] = u.cot.firstByte()
	if p.CauseSize == 2 {
		buf[3] = u.cot.Originator
	}
	buf[2+p.CauseSize] = byte(u.commonAddr)
	if p.CommonAddrSize == 2 {
		buf[3+p.CauseSize] = byte(u.commonAddr >> 8)
	}

	off := p.headerSize()
	for i, obj := range u.objects {
		if !u.sequential || i == 0 {
			writeAddress(buf[off:], obj.Address, p.IOASize)
			off += p.IOASize
		}
		for _, e := range obj.Elements {
			n, err := e.Encode(buf, off)
			if err != nil {
				return dst[:start], fmt.Errorf("encode %s object %d: %w", u.typeID, i, err)
			}
			off += n
		}
	}

	return dst, nil
}

func (c *Codec) encodedSize(u *Unit) int {
	p := c.params
	size := p.headerSize()
	for i, obj := range u.objects {
		if !u.sequential || i == 0 {
			size += p.IOASize
		}
		for _, e := range obj.Elements {
			size += e.Size()
		}
	}

	return size
}

func readAddress(b []byte, size int) uint32 {
	var addr uint32
	for i := 0; i < size; i++ {
		addr |= uint32(b[i]) << (8 * i)
	}

	return addr
}

func writeAddress(b []byte, addr uint32, size int) {
	for i := 0; i < size; i++ {
		b[i] = byte(addr >> (8 * i))
	}
}

type rawExtension struct {
	types []TypeID
}

// NewRawExtension returns an extension that keeps the payload of the given private
// types undecoded. The unit carries one object: the first object address followed by a
// Raw element holding the remaining bytes.
func NewRawExtension(types ...TypeID) Extension {
	return &rawExtension{types: append([]TypeID(nil), types...)}
}

func (r *rawExtension) Types() []TypeID {
	return append([]TypeID(nil), r.types...)
}

func (r *rawExtension) DecodeObjects(_ Header, payload []byte, p Params) ([]InformationObject, error) {
	if len(payload) < p.IOASize {
		return nil, truncated("object address", p.IOASize, len(payload))
	}

	raw := NewRaw(payload[p.IOASize:])

	return []InformationObject{NewObject(readAddress(payload, p.IOASize), raw)}, nil
}
