/*
rviss - Vector (RVV) engine.

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

// Package vector implements the RVV element/mask iteration harness
// (SEW/LMUL/VL/vstart/vxrm) and a representative set of per-opcode
// kernels on top of it, generalizing the original's template-heavy
// elem_sel_t/param_sel_t dispatch into an explicit Go iteration
// helper plus small typed kernel functions.
package vector

import "errors"

// VLEN/ELEN are fixed at build time, matching the original's
// "TODO these should be compile arguments" constants left at their
// default of a 512-bit register, 64-bit element max.
const (
	VLEN  = 512
	VLENB = VLEN / 8
	ELEN  = 64
	NumRegs = 32
)

// ErrIllegal marks a vtype/vl configuration or instruction encoding
// that the spec requires to raise an illegal-instruction trap
// (reserved vsew/vlmul combination, vd/vs0 overlap with a masked
// destination, misaligned register group).
var ErrIllegal = errors.New("vector: illegal configuration")

// Engine holds the 32 vector registers (VLEN bits each, stored as raw
// bytes) and the vector CSR shadow state the interpreter keeps in
// sync with the csr.File's Vstart/Vxrm/Vl/Vtype registers.
type Engine struct {
	Regs [NumRegs][VLENB]byte

	VStart uint64
	VL     uint64
	SEW    int  // 8, 16, 32, 64
	LMUL   float64 // 0.125 .. 8, negative LMUL encoded as fractional
	VTA    bool // tail-agnostic
	VMA    bool // mask-agnostic
	VXRM   uint8
	VIll   bool
}

// SetVType decodes a vtype immediate (vsetvli's zimm) into SEW/LMUL/
// VTA/VMA, per RISC-V vector spec §3.4.2; an unsupported encoding
// sets VIll and VL=0 rather than returning an error, matching
// vsetvli's "illegal" path of zeroing vl and vtype.
func (e *Engine) SetVType(vtype uint64) {
	vsew := (vtype >> 3) & 0x7
	vlmul := vtype & 0x7
	e.VTA = vtype&(1<<6) != 0
	e.VMA = vtype&(1<<7) != 0

	switch vsew {
	case 0:
		e.SEW = 8
	case 1:
		e.SEW = 16
	case 2:
		e.SEW = 32
	case 3:
		e.SEW = 64
	default:
		e.VIll = true
		e.VL = 0
		return
	}
	switch vlmul {
	case 0:
		e.LMUL = 1
	case 1:
		e.LMUL = 2
	case 2:
		e.LMUL = 4
	case 3:
		e.LMUL = 8
	case 5:
		e.LMUL = 0.125
	case 6:
		e.LMUL = 0.25
	case 7:
		e.LMUL = 0.5
	default:
		e.VIll = true
		e.VL = 0
		return
	}
	e.VIll = false
}

// VLMax returns the maximum element count for the current SEW/LMUL,
// i.e. (VLEN/SEW)*LMUL clamped to at least 1.
func (e *Engine) VLMax() uint64 {
	if e.VIll || e.SEW == 0 {
		return 0
	}
	n := float64(VLEN/e.SEW) * e.LMUL
	if n < 1 {
		n = 1
	}
	return uint64(n)
}

// SetVL implements vsetvli's AVL-to-vl rule: avl is returned
// unchanged if it fits, otherwise vl is set per the spec's
// ceil(avl/2) rule when avl is less than twice vlmax, else vlmax.
func (e *Engine) SetVL(avl uint64) uint64 {
	max := e.VLMax()
	switch {
	case avl <= max:
		e.VL = avl
	case avl < 2*max:
		e.VL = (avl + 1) / 2
	default:
		e.VL = max
	}
	return e.VL
}

// MaskBit reports mask register v0's bit i (element i's enable bit
// for a masked instruction).
func (e *Engine) MaskBit(i uint64) bool {
	byteIdx := i / 8
	if byteIdx >= VLENB {
		return false
	}
	return e.Regs[0][byteIdx]&(1<<(i%8)) != 0
}

func (e *Engine) setMaskBit(reg int, i uint64, v bool) {
	byteIdx := i / 8
	if v {
		e.Regs[reg][byteIdx] |= 1 << (i % 8)
	} else {
		e.Regs[reg][byteIdx] &^= 1 << (i % 8)
	}
}

func elemOffset(sew int, i uint64) uint64 { return i * uint64(sew/8) }

// GetElem/SetElem read/write element i of register reg at the
// current SEW, zero/sign-agnostic (callers widen/narrow as needed).
func (e *Engine) GetElem(reg int, i uint64) uint64 {
	off := elemOffset(e.SEW, i)
	switch e.SEW {
	case 8:
		return uint64(e.Regs[reg][off])
	case 16:
		return uint64(e.Regs[reg][off]) | uint64(e.Regs[reg][off+1])<<8
	case 32:
		var v uint32
		for k := 0; k < 4; k++ {
			v |= uint32(e.Regs[reg][off+uint64(k)]) << (8 * k)
		}
		return uint64(v)
	default:
		var v uint64
		for k := 0; k < 8; k++ {
			v |= uint64(e.Regs[reg][off+uint64(k)]) << (8 * k)
		}
		return v
	}
}

func (e *Engine) SetElem(reg int, i uint64, v uint64) {
	off := elemOffset(e.SEW, i)
	n := e.SEW / 8
	for k := 0; k < n; k++ {
		e.Regs[reg][off+uint64(k)] = byte(v >> (8 * k))
	}
}

func signExtend(v uint64, bits int) int64 {
	shift := 64 - bits
	return int64(v<<uint(shift)) >> uint(shift)
}

// GetElemSigned reads element i sign-extended to int64, for signed
// arithmetic kernels.
func (e *Engine) GetElemSigned(reg int, i uint64) int64 {
	return signExtend(e.GetElem(reg, i), e.SEW)
}

// applyTailPolicy zeroes or leaves undisturbed every element from VL
// to VLMax, per the current VTA setting (spec.md §4.8's tail policy).
func (e *Engine) applyTailPolicy(dst int) {
	if !e.VTA {
		return
	}
	max := e.VLMax()
	for i := e.VL; i < max; i++ {
		e.SetElem(dst, i, 0)
	}
}

// activeOrSkip reports whether element i is active; an inactive
// element is zeroed when VMA is clear, otherwise left undisturbed.
func (e *Engine) activeOrSkip(dst int, masked bool, i uint64) bool {
	if !masked || e.MaskBit(i) {
		return true
	}
	if !e.VMA {
		e.SetElem(dst, i, 0)
	}
	return false
}

// VAdd/VSub implement vadd.vv/vsub.vv (and by extension .vx/.vi, with
// op2 pre-splatted by the caller into a scratch register) — a
// representative integer-arithmetic kernel exercising the masked
// element-iteration harness.
func (e *Engine) VAdd(vd, vs2, vs1 int, masked bool) {
	for i := e.VStart; i < e.VL; i++ {
		if !e.activeOrSkip(vd, masked, i) {
			continue
		}
		e.SetElem(vd, i, e.GetElem(vs2, i)+e.GetElem(vs1, i))
	}
	e.applyTailPolicy(vd)
	e.VStart = 0
}

func (e *Engine) VSub(vd, vs2, vs1 int, masked bool) {
	for i := e.VStart; i < e.VL; i++ {
		if !e.activeOrSkip(vd, masked, i) {
			continue
		}
		e.SetElem(vd, i, e.GetElem(vs2, i)-e.GetElem(vs1, i))
	}
	e.applyTailPolicy(vd)
	e.VStart = 0
}

// VMacc implements a widening multiply-accumulate (vmacc.vv):
// vd[i] += vs1[i] * vs2[i], done at the current (narrow) SEW with
// wraparound, the EMUL-widened destination being the caller's
// responsibility to select as vd.
func (e *Engine) VMacc(vd, vs2, vs1 int, masked bool) {
	for i := e.VStart; i < e.VL; i++ {
		if !e.activeOrSkip(vd, masked, i) {
			continue
		}
		prod := e.GetElem(vs2, i) * e.GetElem(vs1, i)
		e.SetElem(vd, i, e.GetElem(vd, i)+prod)
	}
	e.applyTailPolicy(vd)
	e.VStart = 0
}

// Memory is the subset of the data-memory interface unit-stride
// vector loads/stores need; the cpu package supplies its lscache or
// mmu-backed bus here.
type Memory interface {
	LoadByte(vaddr uint64) (uint8, error)
	StoreByte(vaddr uint64, v uint8) error
}

// LoadUnitStride implements vle8/16/32/64.v: a contiguous run of VL
// elements of the current SEW starting at base, honoring vstart as a
// resume point (spec.md §4.8's "can resume after a trap mid-load").
func (e *Engine) LoadUnitStride(mem Memory, vd int, base uint64, masked bool) error {
	esize := uint64(e.SEW / 8)
	for i := e.VStart; i < e.VL; i++ {
		if !e.activeOrSkip(vd, masked, i) {
			continue
		}
		var v uint64
		for k := uint64(0); k < esize; k++ {
			b, err := mem.LoadByte(base + i*esize + k)
			if err != nil {
				e.VStart = i
				return err
			}
			v |= uint64(b) << (8 * k)
		}
		e.SetElem(vd, i, v)
	}
	e.applyTailPolicy(vd)
	e.VStart = 0
	return nil
}

// StoreUnitStride implements vse8/16/32/64.v.
func (e *Engine) StoreUnitStride(mem Memory, vs3 int, base uint64, masked bool) error {
	esize := uint64(e.SEW / 8)
	for i := e.VStart; i < e.VL; i++ {
		if masked && !e.MaskBit(i) {
			continue
		}
		v := e.GetElem(vs3, i)
		for k := uint64(0); k < esize; k++ {
			if err := mem.StoreByte(base+i*esize+k, byte(v>>(8*k))); err != nil {
				e.VStart = i
				return err
			}
		}
	}
	e.VStart = 0
	return nil
}

// LoadFaultOnlyFirst implements vle8ff.v and friends: a fault on any
// element but the first truncates vl to the elements already loaded
// instead of raising a trap, per spec.md §4.8's fault-only-first rule.
func (e *Engine) LoadFaultOnlyFirst(mem Memory, vd int, base uint64, masked bool) error {
	esize := uint64(e.SEW / 8)
	orig := e.VL
	for i := e.VStart; i < orig; i++ {
		if masked && !e.MaskBit(i) {
			continue
		}
		var v uint64
		faulted := false
		for k := uint64(0); k < esize; k++ {
			b, err := mem.LoadByte(base + i*esize + k)
			if err != nil {
				if i == 0 {
					return err
				}
				faulted = true
				break
			}
			v |= uint64(b) << (8 * k)
		}
		if faulted {
			e.VL = i
			break
		}
		e.SetElem(vd, i, v)
	}
	e.applyTailPolicy(vd)
	e.VStart = 0
	return nil
}

// checkOverlap reports whether the [dst, dst+dstGroup) and
// [src, src+srcGroup) register groups overlap; widening/narrowing
// instructions only allow a restricted set of overlaps the spec
// calls out (destination-group-aligned overlap with the low part of
// a 2x source group), which this helper does not yet special-case —
// callers of widening ops must additionally consult the RISC-V vector
// spec table before trusting a false return here in all generality.
func checkOverlap(dst int, dstGroup float64, src int, srcGroup float64) bool {
	dn := regCount(dstGroup)
	sn := regCount(srcGroup)
	return dst < src+sn && src < dst+dn
}

func regCount(group float64) int {
	if group < 1 {
		return 1
	}
	return int(group)
}
