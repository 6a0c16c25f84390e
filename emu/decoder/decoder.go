/*
rviss - Instruction decoder.

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

// Package decoder maps a 16- or 32-bit instruction word to an OpId
// plus a lazy operand view over the (already 32-bit, possibly
// compressed-expanded) word. It never touches memory or register
// state; DBBCache and the interpreter own those.
package decoder

// Ext is a bit in the configured extension set; an instruction whose
// governing extension bit is clear decodes to OpUndef.
type Ext uint32

const (
	ExtI Ext = 1 << iota
	ExtM
	ExtA
	ExtF
	ExtD
	ExtC
	ExtV
	ExtS // supervisor-mode CSRs/instructions
	ExtU
	ExtN
)

// DefaultExtensions is every extension this decoder can produce.
const DefaultExtensions = ExtI | ExtM | ExtA | ExtF | ExtD | ExtC | ExtV | ExtS | ExtU

// OpId is a dense enumeration over every operation this ISS can
// dispatch, plus the sentinel OpUndef for unrecognized or
// extension-gated-off encodings.
type OpId int

const (
	OpUndef OpId = iota

	// RV32I
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK

	// RV64I
	OpLWU
	OpLD
	OpSD
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// M
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// A
	OpLRW
	OpSCW
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW
	OpLRD
	OpSCD
	OpAMOSWAPD
	OpAMOADDD
	OpAMOXORD
	OpAMOANDD
	OpAMOORD
	OpAMOMIND
	OpAMOMAXD
	OpAMOMINUD
	OpAMOMAXUD

	// F/D (representative subset)
	OpFLW
	OpFSW
	OpFLD
	OpFSD
	OpFADDS
	OpFSUBS
	OpFMULS
	OpFDIVS
	OpFSQRTS
	OpFADDD
	OpFSUBD
	OpFMULD
	OpFDIVD
	OpFSQRTD
	OpFCVTSD
	OpFCVTDS
	OpFCVTWS
	OpFCVTWUS
	OpFCVTSW
	OpFCVTSWU
	OpFMVXW
	OpFMVWX
	OpFEQS
	OpFLTS
	OpFLES

	// Privileged / system
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA

	// V (representative subset; see emu/vector)
	OpVSETVLI
	OpVSETIVLI
	OpVSETVL
	OpVLE
	OpVSE
	OpVADDVV
	OpVADDVX
	OpVWADDUVV

	opIdCount
)

// Shape identifies which immediate/operand layout a word uses.
type Shape int

const (
	ShapeR Shape = iota
	ShapeI
	ShapeS
	ShapeB
	ShapeU
	ShapeJ
	ShapeR4 // fused multiply-add: rs1, rs2, rs3, rd
	ShapeNone
)

// View is a lazy accessor over a 32-bit (possibly compressed-expanded)
// instruction word: no field is computed until asked for.
type View struct {
	Word   uint32
	Shape  Shape
	Length int // 2 (compressed) or 4
}

func (v View) Rd() int     { return int((v.Word >> 7) & 0x1f) }
func (v View) Funct3() int { return int((v.Word >> 12) & 0x7) }
func (v View) Rs1() int    { return int((v.Word >> 15) & 0x1f) }
func (v View) Rs2() int    { return int((v.Word >> 20) & 0x1f) }
func (v View) Rs3() int    { return int((v.Word >> 27) & 0x1f) }
func (v View) Funct7() int { return int((v.Word >> 25) & 0x7f) }
func (v View) Csr() int    { return int((v.Word >> 20) & 0xfff) }

// ImmI returns the sign-extended I-type immediate.
func (v View) ImmI() int64 {
	return int64(int32(v.Word)) >> 20
}

// ImmS returns the sign-extended S-type immediate.
func (v View) ImmS() int64 {
	hi := (v.Word >> 25) & 0x7f
	lo := (v.Word >> 7) & 0x1f
	imm := (hi << 5) | lo
	return int64(int32(imm<<20)) >> 20
}

// ImmB returns the sign-extended B-type (branch) immediate.
func (v View) ImmB() int64 {
	w := v.Word
	bit12 := (w >> 31) & 1
	bit11 := (w >> 7) & 1
	bits10_5 := (w >> 25) & 0x3f
	bits4_1 := (w >> 8) & 0xf
	imm := (bit12 << 12) | (bit11 << 11) | (bits10_5 << 5) | (bits4_1 << 1)
	return int64(int32(imm<<19)) >> 19
}

// ImmU returns the U-type immediate (already shifted into bits 31:12).
func (v View) ImmU() int64 {
	return int64(int32(v.Word & 0xfffff000))
}

// ImmJ returns the sign-extended J-type (jump) immediate.
func (v View) ImmJ() int64 {
	w := v.Word
	bit20 := (w >> 31) & 1
	bits10_1 := (w >> 21) & 0x3ff
	bit11 := (w >> 20) & 1
	bits19_12 := (w >> 12) & 0xff
	imm := (bit20 << 20) | (bits19_12 << 12) | (bit11 << 11) | (bits10_1 << 1)
	return int64(int32(imm<<11)) >> 11
}

// Shamt returns the shift-amount field (bits 24:20, or 25:20 for
// RV64's 6-bit shifts; callers mask to the width they need).
func (v View) Shamt() uint {
	return uint((v.Word >> 20) & 0x3f)
}

// Decode maps a fetched word to an operation and operand view.
// The returned View's Length tells the caller whether to advance the
// PC by 2 or 4. A 16-bit form is expanded in place into
// an equivalent 32-bit encoding before classification, per spec.md
// §4.1 ("A 16-bit compressed form expands into an equivalent 32-bit
// operation").
func Decode(raw uint32, avail Ext) (OpId, View) {
	if raw&3 != 3 {
		return decodeCompressed(uint16(raw), avail)
	}
	op, shape := decode32(raw, avail)
	return op, View{Word: raw, Shape: shape, Length: 4}
}

func gated(avail, need Ext) bool { return avail&need == need }

func decode32(w uint32, avail Ext) (OpId, Shape) {
	opcode := w & 0x7f
	funct3 := (w >> 12) & 0x7
	funct7 := (w >> 25) & 0x7f

	switch opcode {
	case 0x37:
		return OpLUI, ShapeU
	case 0x17:
		return OpAUIPC, ShapeU
	case 0x6f:
		return OpJAL, ShapeJ
	case 0x67:
		if funct3 == 0 {
			return OpJALR, ShapeI
		}
	case 0x63:
		switch funct3 {
		case 0:
			return OpBEQ, ShapeB
		case 1:
			return OpBNE, ShapeB
		case 4:
			return OpBLT, ShapeB
		case 5:
			return OpBGE, ShapeB
		case 6:
			return OpBLTU, ShapeB
		case 7:
			return OpBGEU, ShapeB
		}
	case 0x03:
		switch funct3 {
		case 0:
			return OpLB, ShapeI
		case 1:
			return OpLH, ShapeI
		case 2:
			return OpLW, ShapeI
		case 4:
			return OpLBU, ShapeI
		case 5:
			return OpLHU, ShapeI
		case 6:
			return OpLWU, ShapeI
		case 3:
			return OpLD, ShapeI
		}
	case 0x23:
		switch funct3 {
		case 0:
			return OpSB, ShapeS
		case 1:
			return OpSH, ShapeS
		case 2:
			return OpSW, ShapeS
		case 3:
			return OpSD, ShapeS
		}
	case 0x13:
		switch funct3 {
		case 0:
			return OpADDI, ShapeI
		case 2:
			return OpSLTI, ShapeI
		case 3:
			return OpSLTIU, ShapeI
		case 4:
			return OpXORI, ShapeI
		case 6:
			return OpORI, ShapeI
		case 7:
			return OpANDI, ShapeI
		case 1:
			return OpSLLI, ShapeI
		case 5:
			if funct7&0x7e == 0x20 {
				return OpSRAI, ShapeI
			}
			return OpSRLI, ShapeI
		}
	case 0x1b:
		switch funct3 {
		case 0:
			return OpADDIW, ShapeI
		case 1:
			return OpSLLIW, ShapeI
		case 5:
			if funct7 == 0x20 {
				return OpSRAIW, ShapeI
			}
			return OpSRLIW, ShapeI
		}
	case 0x33:
		if funct7 == 1 && gated(avail, ExtM) {
			switch funct3 {
			case 0:
				return OpMUL, ShapeR
			case 1:
				return OpMULH, ShapeR
			case 2:
				return OpMULHSU, ShapeR
			case 3:
				return OpMULHU, ShapeR
			case 4:
				return OpDIV, ShapeR
			case 5:
				return OpDIVU, ShapeR
			case 6:
				return OpREM, ShapeR
			case 7:
				return OpREMU, ShapeR
			}
		}
		switch funct3 {
		case 0:
			if funct7 == 0x20 {
				return OpSUB, ShapeR
			}
			return OpADD, ShapeR
		case 1:
			return OpSLL, ShapeR
		case 2:
			return OpSLT, ShapeR
		case 3:
			return OpSLTU, ShapeR
		case 4:
			return OpXOR, ShapeR
		case 5:
			if funct7 == 0x20 {
				return OpSRA, ShapeR
			}
			return OpSRL, ShapeR
		case 6:
			return OpOR, ShapeR
		case 7:
			return OpAND, ShapeR
		}
	case 0x3b:
		if funct7 == 1 && gated(avail, ExtM) {
			switch funct3 {
			case 0:
				return OpMULW, ShapeR
			case 4:
				return OpDIVW, ShapeR
			case 5:
				return OpDIVUW, ShapeR
			case 6:
				return OpREMW, ShapeR
			case 7:
				return OpREMUW, ShapeR
			}
		}
		switch funct3 {
		case 0:
			if funct7 == 0x20 {
				return OpSUBW, ShapeR
			}
			return OpADDW, ShapeR
		case 1:
			return OpSLLW, ShapeR
		case 5:
			if funct7 == 0x20 {
				return OpSRAW, ShapeR
			}
			return OpSRLW, ShapeR
		}
	case 0x0f:
		if funct3 == 0 {
			return OpFENCE, ShapeNone
		}
		if funct3 == 1 {
			return OpFENCEI, ShapeNone
		}
	case 0x73:
		if funct3 == 0 {
			imm := w >> 20
			switch imm {
			case 0:
				return OpECALL, ShapeNone
			case 1:
				return OpEBREAK, ShapeNone
			case 0x302:
				return OpMRET, ShapeNone
			case 0x102:
				if gated(avail, ExtS) {
					return OpSRET, ShapeNone
				}
			case 0x105:
				return OpWFI, ShapeNone
			}
			if (w>>25)&0x7f == 0x09 && gated(avail, ExtS) {
				return OpSFENCEVMA, ShapeR
			}
			return OpUndef, ShapeNone
		}
		switch funct3 {
		case 1:
			return OpCSRRW, ShapeI
		case 2:
			return OpCSRRS, ShapeI
		case 3:
			return OpCSRRC, ShapeI
		case 5:
			return OpCSRRWI, ShapeI
		case 6:
			return OpCSRRSI, ShapeI
		case 7:
			return OpCSRRCI, ShapeI
		}
	case 0x2f:
		if !gated(avail, ExtA) {
			return OpUndef, ShapeNone
		}
		f5 := funct7 >> 2
		wide := funct3 == 3
		narrow := funct3 == 2
		switch {
		case f5 == 0x02 && narrow:
			return OpLRW, ShapeR
		case f5 == 0x03 && narrow:
			return OpSCW, ShapeR
		case f5 == 0x01 && narrow:
			return OpAMOSWAPW, ShapeR
		case f5 == 0x00 && narrow:
			return OpAMOADDW, ShapeR
		case f5 == 0x04 && narrow:
			return OpAMOXORW, ShapeR
		case f5 == 0x0c && narrow:
			return OpAMOANDW, ShapeR
		case f5 == 0x08 && narrow:
			return OpAMOORW, ShapeR
		case f5 == 0x10 && narrow:
			return OpAMOMINW, ShapeR
		case f5 == 0x14 && narrow:
			return OpAMOMAXW, ShapeR
		case f5 == 0x18 && narrow:
			return OpAMOMINUW, ShapeR
		case f5 == 0x1c && narrow:
			return OpAMOMAXUW, ShapeR
		case f5 == 0x02 && wide:
			return OpLRD, ShapeR
		case f5 == 0x03 && wide:
			return OpSCD, ShapeR
		case f5 == 0x01 && wide:
			return OpAMOSWAPD, ShapeR
		case f5 == 0x00 && wide:
			return OpAMOADDD, ShapeR
		case f5 == 0x04 && wide:
			return OpAMOXORD, ShapeR
		case f5 == 0x0c && wide:
			return OpAMOANDD, ShapeR
		case f5 == 0x08 && wide:
			return OpAMOORD, ShapeR
		case f5 == 0x10 && wide:
			return OpAMOMIND, ShapeR
		case f5 == 0x14 && wide:
			return OpAMOMAXD, ShapeR
		case f5 == 0x18 && wide:
			return OpAMOMINUD, ShapeR
		case f5 == 0x1c && wide:
			return OpAMOMAXUD, ShapeR
		}
	case 0x07:
		// LOAD-FP major opcode: funct3 2/3 are scalar FLW/FLD; RVV
		// reuses the same opcode for unit-stride vector loads with
		// funct3 in {0,5,6,7} (the "width" field), per the RVV spec.
		if funct3 == 2 && gated(avail, ExtF) {
			return OpFLW, ShapeI
		}
		if funct3 == 3 && gated(avail, ExtF) && gated(avail, ExtD) {
			return OpFLD, ShapeI
		}
		if gated(avail, ExtV) {
			return OpVLE, ShapeI
		}
		return OpUndef, ShapeNone
	case 0x27:
		if funct3 == 2 && gated(avail, ExtF) {
			return OpFSW, ShapeS
		}
		if funct3 == 3 && gated(avail, ExtF) && gated(avail, ExtD) {
			return OpFSD, ShapeS
		}
		if gated(avail, ExtV) {
			return OpVSE, ShapeS
		}
		return OpUndef, ShapeNone
	case 0x53:
		if !gated(avail, ExtF) {
			return OpUndef, ShapeNone
		}
		return decodeFPOp(w, avail)
	case 0x57:
		if !gated(avail, ExtV) {
			return OpUndef, ShapeNone
		}
		return decodeVectorOp(w)
	}
	return OpUndef, ShapeNone
}

func decodeFPOp(w uint32, avail Ext) (OpId, Shape) {
	funct7 := (w >> 25) & 0x7f
	rs2 := (w >> 20) & 0x1f
	single := funct7&1 == 0

	switch funct7 >> 2 {
	case 0x00:
		if single {
			return OpFADDS, ShapeR
		}
		return OpFADDD, ShapeR
	case 0x01:
		if single {
			return OpFSUBS, ShapeR
		}
		return OpFSUBD, ShapeR
	case 0x02:
		if single {
			return OpFMULS, ShapeR
		}
		return OpFMULD, ShapeR
	case 0x03:
		if single {
			return OpFDIVS, ShapeR
		}
		return OpFDIVD, ShapeR
	case 0x0b:
		if single {
			return OpFSQRTS, ShapeR
		}
		return OpFSQRTD, ShapeR
	case 0x08:
		if funct7 == 0x20 {
			return OpFCVTSD, ShapeR
		}
		return OpFCVTDS, ShapeR
	case 0x18:
		if !single {
			return OpUndef, ShapeR
		}
		if rs2 == 1 {
			return OpFCVTWUS, ShapeR
		}
		return OpFCVTWS, ShapeR
	case 0x1a:
		if rs2 == 1 {
			return OpFCVTSWU, ShapeR
		}
		return OpFCVTSW, ShapeR
	case 0x1c:
		funct3 := (w >> 12) & 0x7
		if funct3 == 0 {
			return OpFMVXW, ShapeR
		}
	case 0x1e:
		return OpFMVWX, ShapeR
	case 0x14:
		funct3 := (w >> 12) & 0x7
		switch funct3 {
		case 0:
			return OpFLES, ShapeR
		case 1:
			return OpFLTS, ShapeR
		case 2:
			return OpFEQS, ShapeR
		}
	}
	return OpUndef, ShapeNone
}

func decodeVectorOp(w uint32) (OpId, Shape) {
	funct3 := (w >> 12) & 0x7
	switch funct3 {
	case 7: // OP-V config space (vsetvli/vsetivli/vsetvl)
		if (w>>31)&1 == 0 {
			return OpVSETVLI, ShapeI
		}
		if (w>>30)&0x3 == 3 {
			return OpVSETIVLI, ShapeI
		}
		return OpVSETVL, ShapeR
	case 0: // OPIVV
		funct6 := (w >> 26) & 0x3f
		switch funct6 {
		case 0x00:
			return OpVADDVV, ShapeR
		case 0xc4:
			return OpVWADDUVV, ShapeR
		}
	case 4: // OPIVX
		funct6 := (w >> 26) & 0x3f
		if funct6 == 0x00 {
			return OpVADDVX, ShapeR
		}
	}
	opcode := w & 0x7f
	_ = opcode
	// Unit-stride loads/stores live under opcode 0x07/0x27, not 0x57;
	// the caller never routes them here. Anything else in OP-V space
	// that isn't recognized above is undefined.
	return OpUndef, ShapeNone
}
