package asdu

import (
	"testing"
)

// FuzzDecode feeds arbitrary bytes to the unit decoder.
//
// Decode must never panic, and every unit it accepts must encode again and decode to
// an equal unit.
func FuzzDecode(f *testing.F) {
	// Seed: M_SP_NA_1, spontaneous, CA 1, IOA 100, on
	f.Add([]byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01})

	// Seed: M_ME_NB_1 sequence of two
	f.Add([]byte{0x0B, 0x82, 0x14, 0x00, 0x01, 0x00, 0x0A, 0x00, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00})

	// Seed: C_IC_NA_1 station interrogation
	f.Add([]byte{0x64, 0x01, 0x06, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x14})

	// Seed: C_CS_NA_1 clock sync
	f.Add([]byte{0x67, 0x01, 0x06, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x08, 0xE1, 0x06, 0x19})

	// Seed: F_SG_NA_1 with a segment
	f.Add([]byte{0x7D, 0x01, 0x0D, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0x01, 0x02, 0xAB, 0xCD})

	// Seed: private type claimed by the raw extension
	f.Add([]byte{0xC8, 0x01, 0x03, 0x00, 0x01, 0x00, 0x01, 0x02, 0x03, 0xAA})

	// Seed: truncated header, zero count, unknown type
	f.Add([]byte{0x01, 0x01})
	f.Add([]byte{0x01, 0x00, 0x03, 0x00, 0x01, 0x00})
	f.Add([]byte{0x16, 0x01, 0x03, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x01})

	codec, err := NewCodec(DefaultParams, NewRawExtension(200))
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		u, err := codec.Decode(data)
		if err != nil {
			return
		}

		b, err := codec.Encode(u)
		if err != nil {
			t.Fatalf("encode of decoded %s: %v", u, err)
		}

		again, err := codec.Decode(b)
		if err != nil {
			t.Fatalf("decode of re-encoded %s: %v", u, err)
		}
		if again.String() != u.String() {
			t.Fatalf("round trip mismatch: %s != %s", again, u)
		}
	})
}
