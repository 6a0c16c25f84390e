/*
rviss - Compressed (RVC) instruction expansion.

	Copyright 2024, Richard Cornwell

	Permission is hereby granted, free of charge, to any person obtaining a copy
	of this software and associated documentation files (the "Software"), to deal
	in the Software without restriction, including without limitation the rights
	to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
	copies of the Software, and to permit persons to whom the Software is
	furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
	AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
	LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
	OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
	SOFTWARE.

*/

package decoder

// decodeCompressed expands the common C-extension encodings into an
// equivalent 32-bit word before classification. Encodings this
// function doesn't recognize expand to an all-ones word, which
// decode32 never matches, yielding OpUndef — the "unrecognized
// encoding yields UNDEF" rule from spec.md §4.1.
func decodeCompressed(c uint16, avail Ext) (OpId, View) {
	view := View{Length: 2}
	if !gated(avail, ExtC) {
		view.Word = 0xffffffff
		return OpUndef, view
	}

	op := c & 0x3
	funct3 := (c >> 13) & 0x7

	rdRs1Full := int((c >> 7) & 0x1f)
	rdRs2Full := int((c >> 2) & 0x1f)
	rdPrime := 8 + int((c>>7)&0x7)
	rs2Prime := 8 + int((c>>2)&0x7)
	rs1Prime := 8 + int((c>>7)&0x7)

	word := func(w uint32, shape Shape) (OpId, View) {
		view.Word = w
		view.Shape = shape
		return classify(w), view
	}

	switch op {
	case 0: // quadrant 0
		switch funct3 {
		case 0: // C.ADDI4SPN -> addi rd', x2, nzuimm
			imm := ((c >> 7) & 0x30) | ((c >> 1) & 0x3c0) | ((c >> 4) & 0x4) | ((c >> 2) & 0x8)
			return word(encodeI(0x13, rdPrime, 0, 2, uint32(imm)), ShapeI)
		case 2: // C.LW -> lw rd', offset(rs1')
			imm := ((c << 1) & 0x40) | ((c >> 7) & 0x38) | ((c >> 4) & 0x4)
			return word(encodeI(0x03, rdPrime, 2, rs1Prime, uint32(imm)), ShapeI)
		case 3: // C.LD -> ld rd', offset(rs1')
			imm := ((c << 1) & 0xc0) | ((c >> 7) & 0x38)
			return word(encodeI(0x03, rdPrime, 3, rs1Prime, uint32(imm)), ShapeI)
		case 6: // C.SW -> sw rs2', offset(rs1')
			imm := ((c << 1) & 0x40) | ((c >> 7) & 0x38) | ((c >> 4) & 0x4)
			return word(encodeS(0x23, 2, rs1Prime, rs2Prime, uint32(imm)), ShapeS)
		case 7: // C.SD -> sd rs2', offset(rs1')
			imm := ((c << 1) & 0xc0) | ((c >> 7) & 0x38)
			return word(encodeS(0x23, 3, rs1Prime, rs2Prime, uint32(imm)), ShapeS)
		}
	case 1: // quadrant 1
		switch funct3 {
		case 0: // C.ADDI / C.NOP -> addi rd, rd, nzimm
			imm := signExtend6(((c>>7)&0x20)|((c>>2)&0x1f)) & 0xfff
			return word(encodeI(0x13, rdRs1Full, 0, rdRs1Full, uint32(imm)), ShapeI)
		case 1: // C.ADDIW -> addiw rd, rd, imm
			imm := signExtend6(((c>>7)&0x20)|((c>>2)&0x1f)) & 0xfff
			return word(encodeI(0x1b, rdRs1Full, 0, rdRs1Full, uint32(imm)), ShapeI)
		case 2: // C.LI -> addi rd, x0, imm
			imm := signExtend6(((c>>7)&0x20)|((c>>2)&0x1f)) & 0xfff
			return word(encodeI(0x13, rdRs1Full, 0, 0, uint32(imm)), ShapeI)
		case 5: // C.J -> jal x0, offset
			imm := decodeCJImm(c)
			return word(encodeJ(0x6f, 0, uint32(imm)), ShapeJ)
		case 3: // C.LUI / C.ADDI16SP
			if rdRs1Full == 2 { // C.ADDI16SP -> addi x2, x2, nzimm
				w := uint32(c)
				nzimm := ((w >> 3) & 0x200) | ((w >> 2) & 0x10) | ((w << 1) & 0x40) |
					((w << 4) & 0x180) | ((w << 3) & 0x20)
				imm := signExtend10(nzimm)
				return word(encodeI(0x13, 2, 0, 2, imm), ShapeI)
			}
			// C.LUI rd, nzimm -> lui rd, nzimm
			w := uint32(c)
			nzimm := ((w << 5) & 0x20000) | ((w << 10) & 0x1f000)
			imm := signExtend18(nzimm)
			return word(encodeU(0x37, rdRs1Full, imm), ShapeU)
		case 4:
			funct2Hi := (c >> 10) & 0x3
			switch funct2Hi {
			case 0: // C.SRLI rd', rd', shamt
				shamt := ((c >> 7) & 0x20) | ((c >> 2) & 0x1f)
				return word(encodeI(0x13, rdPrime, 5, rs1Prime, uint32(shamt)), ShapeI)
			case 1: // C.SRAI rd', rd', shamt
				shamt := ((c >> 7) & 0x20) | ((c >> 2) & 0x1f)
				return word(encodeI(0x13, rdPrime, 5, rs1Prime, 0x400|uint32(shamt)), ShapeI)
			case 2: // C.ANDI rd', rd', imm
				imm := signExtend6(((c>>7)&0x20) | ((c >> 2) & 0x1f))
				return word(encodeI(0x13, rdPrime, 7, rs1Prime, imm), ShapeI)
			case 3:
				funct2Lo := (c >> 5) & 0x3
				if (c>>12)&1 == 0 {
					switch funct2Lo {
					case 0: // C.SUB rd', rd', rs2'
						return word(encodeR(0x33, rdPrime, 0, 0x20, rs1Prime, rs2Prime), ShapeR)
					case 1: // C.XOR rd', rd', rs2'
						return word(encodeR(0x33, rdPrime, 4, 0, rs1Prime, rs2Prime), ShapeR)
					case 2: // C.OR rd', rd', rs2'
						return word(encodeR(0x33, rdPrime, 6, 0, rs1Prime, rs2Prime), ShapeR)
					case 3: // C.AND rd', rd', rs2'
						return word(encodeR(0x33, rdPrime, 7, 0, rs1Prime, rs2Prime), ShapeR)
					}
				} else {
					switch funct2Lo {
					case 0: // C.SUBW rd', rd', rs2'
						return word(encodeR(0x3b, rdPrime, 0, 0x20, rs1Prime, rs2Prime), ShapeR)
					case 1: // C.ADDW rd', rd', rs2'
						return word(encodeR(0x3b, rdPrime, 0, 0, rs1Prime, rs2Prime), ShapeR)
					}
				}
			}
		case 6: // C.BEQZ -> beq rs1', x0, offset
			imm := decodeCBImm(c)
			return word(encodeB(0x63, 0, rs1Prime, 0, uint32(imm)), ShapeB)
		case 7: // C.BNEZ -> bne rs1', x0, offset
			imm := decodeCBImm(c)
			return word(encodeB(0x63, 1, rs1Prime, 0, uint32(imm)), ShapeB)
		}
	case 2: // quadrant 2
		switch funct3 {
		case 0: // C.SLLI -> slli rd, rd, shamt
			shamt := ((c >> 7) & 0x20) | ((c >> 2) & 0x1f)
			return word(encodeI(0x13, rdRs1Full, 1, rdRs1Full, uint32(shamt)), ShapeI)
		case 2: // C.LWSP -> lw rd, offset(x2)
			imm := ((c >> 2) & 0x1c) | ((c >> 7) & 0x20) | ((c << 4) & 0xc0)
			return word(encodeI(0x03, rdRs1Full, 2, 2, uint32(imm)), ShapeI)
		case 3: // C.LDSP -> ld rd, offset(x2)
			imm := ((c >> 2) & 0x18) | ((c >> 7) & 0x20) | ((c << 4) & 0x1c0)
			return word(encodeI(0x03, rdRs1Full, 3, 2, uint32(imm)), ShapeI)
		case 4:
			lo := (c >> 12) & 1
			if lo == 0 {
				if rdRs2Full == 0 { // C.JR -> jalr x0, 0(rs1)
					return word(encodeI(0x67, 0, 0, rdRs1Full, 0), ShapeI)
				}
				// C.MV -> add rd, x0, rs2
				return word(encodeR(0x33, rdRs1Full, 0, 0, 0, rdRs2Full), ShapeR)
			}
			if rdRs2Full == 0 {
				if rdRs1Full == 0 { // C.EBREAK
					return word(0x73|(1<<20), ShapeNone)
				}
				// C.JALR -> jalr x1, 0(rs1)
				return word(encodeI(0x67, 1, 0, rdRs1Full, 0), ShapeI)
			}
			// C.ADD -> add rd, rd, rs2
			return word(encodeR(0x33, rdRs1Full, 0, 0, rdRs1Full, rdRs2Full), ShapeR)
		case 6: // C.SWSP -> sw rs2, offset(x2)
			imm := ((c >> 7) & 0x3c) | ((c >> 1) & 0xc0)
			return word(encodeS(0x23, 2, 2, rdRs2Full, uint32(imm)), ShapeS)
		case 7: // C.SDSP -> sd rs2, offset(x2)
			imm := ((c >> 7) & 0x38) | ((c >> 1) & 0x1c0)
			return word(encodeS(0x23, 3, 2, rdRs2Full, uint32(imm)), ShapeS)
		}
	}

	view.Word = 0xffffffff
	return OpUndef, view
}

func classify(w uint32) OpId {
	op, _ := decode32(w, DefaultExtensions)
	return op
}

func signExtend6(v uint16) uint32 {
	x := uint32(v)
	if x&0x20 != 0 {
		x |= 0xffffffc0
	}
	return x
}

// signExtend10 sign-extends a 10-bit value (bit 9 is the sign bit),
// used by C.ADDI16SP's nzimm field.
func signExtend10(v uint32) uint32 {
	if v&0x200 != 0 {
		v |= 0xfffffc00
	}
	return v
}

// signExtend18 sign-extends an 18-bit value (bit 17 is the sign bit),
// used by C.LUI's nzimm field.
func signExtend18(v uint32) uint32 {
	if v&0x20000 != 0 {
		v |= 0xfffc0000
	}
	return v
}

// encodeU builds a U-type word (LUI/AUIPC): imm occupies bits 31:12
// verbatim, already shifted into place by the caller.
func encodeU(opcode uint32, rd int, imm uint32) uint32 {
	return opcode | uint32(rd)<<7 | (imm & 0xfffff000)
}

func decodeCJImm(c uint16) uint32 {
	bit5 := (c >> 2) & 1
	bit11 := (c >> 12) & 1
	bit4 := (c >> 11) & 1
	bit98 := (c >> 9) & 0x3
	bit10 := (c >> 8) & 1
	bit6 := (c >> 7) & 1
	bit7 := (c >> 6) & 1
	bit31 := (c >> 3) & 0x7
	var imm uint32
	imm |= uint32(bit5) << 5
	imm |= uint32(bit11) << 11
	imm |= uint32(bit4) << 4
	imm |= uint32(bit98) << 8
	imm |= uint32(bit10) << 10
	imm |= uint32(bit6) << 6
	imm |= uint32(bit7) << 7
	imm |= uint32(bit31) << 1
	if c&0x1000 != 0 {
		imm |= 0xfffff000
	}
	return imm
}

func decodeCBImm(c uint16) uint32 {
	bit8 := (c >> 12) & 1
	bit43 := (c >> 10) & 0x3
	bit76 := (c >> 5) & 0x3
	bit21 := (c >> 3) & 0x3
	bit5 := (c >> 2) & 1
	var imm uint32
	imm |= uint32(bit5) << 5
	imm |= uint32(bit21) << 1
	imm |= uint32(bit76) << 6
	imm |= uint32(bit43) << 3
	if bit8 != 0 {
		imm |= 0xfffffe00 | (1 << 8)
	}
	return imm
}

func encodeR(opcode uint32, rd, funct3, funct7, rs1, rs2 int) uint32 {
	return opcode | uint32(rd)<<7 | uint32(funct3)<<12 | uint32(rs1)<<15 |
		uint32(rs2)<<20 | uint32(funct7)<<25
}

func encodeI(opcode uint32, rd, funct3, rs1 int, imm uint32) uint32 {
	return opcode | uint32(rd)<<7 | uint32(funct3)<<12 | uint32(rs1)<<15 | (imm&0xfff)<<20
}

func encodeS(opcode uint32, funct3, rs1, rs2 int, imm uint32) uint32 {
	lo := imm & 0x1f
	hi := (imm >> 5) & 0x7f
	return opcode | lo<<7 | uint32(funct3)<<12 | uint32(rs1)<<15 | uint32(rs2)<<20 | hi<<25
}

func encodeB(opcode uint32, funct3, rs1, rs2 int, imm uint32) uint32 {
	bit11 := (imm >> 11) & 1
	bit4_1 := (imm >> 1) & 0xf
	bit10_5 := (imm >> 5) & 0x3f
	bit12 := (imm >> 12) & 1
	return opcode | bit11<<7 | bit4_1<<8 | uint32(funct3)<<12 | uint32(rs1)<<15 |
		uint32(rs2)<<20 | bit10_5<<25 | bit12<<31
}

func encodeJ(opcode uint32, rd int, imm uint32) uint32 {
	bit19_12 := (imm >> 12) & 0xff
	bit11 := (imm >> 11) & 1
	bit10_1 := (imm >> 1) & 0x3ff
	bit20 := (imm >> 20) & 1
	return opcode | uint32(rd)<<7 | bit19_12<<12 | bit11<<20 | bit10_1<<21 | bit20<<31
}
