package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeADDI(t *testing.T) {
	// addi x5, x0, 7
	word := encodeI(0x13, 5, 0, 0, 7)
	op, view := Decode(word, DefaultExtensions)
	require.Equal(t, OpADDI, op)
	require.Equal(t, 5, view.Rd())
	require.Equal(t, 0, view.Rs1())
	require.Equal(t, int64(7), view.ImmI())
	require.Equal(t, 4, view.Length)
}

func TestDecodeMUL(t *testing.T) {
	// mul x7, x5, x6
	word := encodeR(0x33, 7, 0, 1, 5, 6)
	op, _ := Decode(word, DefaultExtensions)
	require.Equal(t, OpMUL, op)
}

func TestDecodeMULUndefWithoutExtension(t *testing.T) {
	word := encodeR(0x33, 7, 0, 1, 5, 6)
	op, _ := Decode(word, DefaultExtensions&^ExtM)
	require.Equal(t, OpUndef, op)
}

func TestDecodeJAL(t *testing.T) {
	// jal x1, 8
	word := encodeJ(0x6f, 1, 8)
	op, view := Decode(word, DefaultExtensions)
	require.Equal(t, OpJAL, op)
	require.Equal(t, int64(8), view.ImmJ())
	require.Equal(t, 1, view.Rd())
}

func TestDecodeBranch(t *testing.T) {
	word := encodeB(0x63, 0, 5, 6, 16) // beq x5, x6, 16
	op, view := Decode(word, DefaultExtensions)
	require.Equal(t, OpBEQ, op)
	require.Equal(t, int64(16), view.ImmB())
}

func TestDecodeUnrecognizedIsUndef(t *testing.T) {
	op, _ := Decode(0x0000007f, DefaultExtensions)
	require.Equal(t, OpUndef, op)
}

func TestDecodeCompressedNOP(t *testing.T) {
	// c.nop = 0x0001
	op, view := Decode(0x0001, DefaultExtensions)
	require.Equal(t, OpADDI, op)
	require.Equal(t, 2, view.Length)
	require.Equal(t, 0, view.Rd())
	require.Equal(t, int64(0), view.ImmI())
}

func TestDecodeCompressedDisabledIsUndef(t *testing.T) {
	op, _ := Decode(0x0001, DefaultExtensions&^ExtC)
	require.Equal(t, OpUndef, op)
}

func TestDecodeCompressedLI(t *testing.T) {
	// c.li x5, 5 : funct3=010, rd=00101, imm bits -> 0b010_0_00101_00101_01
	word := uint16(0x2) << 13
	word |= uint16(5) << 7 // rd
	word |= uint16(5) << 2 // imm[4:0] lower bits (5 = 0b00101)
	word |= 0x1            // quadrant 1
	op, view := Decode(uint32(word), DefaultExtensions)
	require.Equal(t, OpADDI, op)
	require.Equal(t, 5, view.Rd())
	require.Equal(t, 0, view.Rs1())
	require.Equal(t, int64(5), view.ImmI())
}

func TestDecodeSRAIDistinctFromSRLI(t *testing.T) {
	// srli x5, x6, 3
	srli := encodeI(0x13, 5, 5, 6, 3)
	op, view := Decode(srli, DefaultExtensions)
	require.Equal(t, OpSRLI, op)
	require.Equal(t, uint(3), view.Shamt())

	// srai x5, x6, 3 (funct7 = 0x20 packed into imm[11:5])
	srai := encodeI(0x13, 5, 5, 6, 0x400|3)
	op, view = Decode(srai, DefaultExtensions)
	require.Equal(t, OpSRAI, op)
	require.Equal(t, uint(3), view.Shamt())
}

func TestDecodeSRAIWDistinctFromSRLIW(t *testing.T) {
	srliw := encodeI(0x1b, 5, 5, 6, 2)
	op, _ := Decode(srliw, DefaultExtensions)
	require.Equal(t, OpSRLIW, op)

	sraiw := encodeI(0x1b, 5, 5, 6, 0x400|2)
	op, _ = Decode(sraiw, DefaultExtensions)
	require.Equal(t, OpSRAIW, op)
}

func TestDecodeCompressedLUI(t *testing.T) {
	// c.lui x5, 0x35 (imm17=1, imm[16:12]=0b10101) -> lui x5, 0xffff5000
	word := uint16(0x72d5)
	op, view := Decode(uint32(word), DefaultExtensions)
	require.Equal(t, OpLUI, op)
	require.Equal(t, 5, view.Rd())
	require.Equal(t, int64(-45056), view.ImmU())
}

func TestDecodeCompressedADDI16SP(t *testing.T) {
	// c.addi16sp x2, -32
	word := uint16(0x713d)
	op, view := Decode(uint32(word), DefaultExtensions)
	require.Equal(t, OpADDI, op)
	require.Equal(t, 2, view.Rd())
	require.Equal(t, 2, view.Rs1())
	require.Equal(t, int64(-32), view.ImmI())
}

func TestDecodeCompressedSRLIAndSRAI(t *testing.T) {
	srli := uint16(0x8095) // c.srli x9, 5
	op, view := Decode(uint32(srli), DefaultExtensions)
	require.Equal(t, OpSRLI, op)
	require.Equal(t, 9, view.Rd())
	require.Equal(t, uint(5), view.Shamt())

	srai := uint16(0x8495) // c.srai x9, 5
	op, view = Decode(uint32(srai), DefaultExtensions)
	require.Equal(t, OpSRAI, op)
	require.Equal(t, 9, view.Rd())
	require.Equal(t, uint(5), view.Shamt())
}

func TestDecodeCompressedANDI(t *testing.T) {
	word := uint16(0x98f5) // c.andi x9, x9, -3
	op, view := Decode(uint32(word), DefaultExtensions)
	require.Equal(t, OpANDI, op)
	require.Equal(t, int64(-3), view.ImmI())
}

func TestDecodeCompressedRegisterALUGroup(t *testing.T) {
	cases := []struct {
		name string
		word uint16
		op   OpId
	}{
		{"C.SUB", 0x8c89, OpSUB},
		{"C.XOR", 0x8ca9, OpXOR},
		{"C.OR", 0x8cc9, OpOR},
		{"C.AND", 0x8ce9, OpAND},
		{"C.SUBW", 0x9c89, OpSUBW},
		{"C.ADDW", 0x9ca9, OpADDW},
	}
	for _, tc := range cases {
		op, view := Decode(uint32(tc.word), DefaultExtensions)
		require.Equalf(t, tc.op, op, "%s", tc.name)
		require.Equal(t, 9, view.Rd())
	}
}
