/*
rviss - Memory, CSR, and M/A-extension operation bodies.

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

package cpu

import (
	"errors"
	"math/bits"

	"github.com/rvsim/rviss/emu/csr"
	"github.com/rvsim/rviss/emu/dbbcache"
	"github.com/rvsim/rviss/emu/decoder"
	"github.com/rvsim/rviss/emu/fpu"
	"github.com/rvsim/rviss/emu/mmu"
	"github.com/rvsim/rviss/emu/trap"
)

// loadFault/storeFault map an MMU or bus error to the matching
// load/store exception family and raise the trap.
func (h *Hart) loadFault(err error, vaddr, pc uint64) {
	var me *mmu.Error
	if errors.As(err, &me) {
		cause := trap.ExcLoadAccessFault
		if me.Kind == mmu.PageFault {
			cause = trap.ExcLoadPageFault
		}
		h.takeTrap(cause, false, pc, me.Vaddr)
		return
	}
	h.takeTrap(trap.ExcLoadAccessFault, false, pc, vaddr)
}

func (h *Hart) storeFault(err error, vaddr, pc uint64) {
	var me *mmu.Error
	if errors.As(err, &me) {
		cause := trap.ExcStoreAMOAccessFault
		if me.Kind == mmu.PageFault {
			cause = trap.ExcStoreAMOPageFault
		}
		h.takeTrap(cause, false, pc, me.Vaddr)
		return
	}
	h.takeTrap(trap.ExcStoreAMOAccessFault, false, pc, vaddr)
}

func (h *Hart) load(e dbbcache.Entry, v decoder.View, next uint64) {
	vaddr := uint64(h.X.GetXSigned(v.Rs1()) + v.ImmI())
	paddr, err := h.translateData(vaddr, mmu.Load)
	if err != nil {
		h.loadFault(err, vaddr, e.PC)
		return
	}
	var result uint64
	var lerr error
	switch e.Op {
	case decoder.OpLB:
		var b uint8
		b, lerr = h.LS.LoadByte(paddr)
		result = uint64(int64(int8(b)))
	case decoder.OpLBU:
		var b uint8
		b, lerr = h.LS.LoadByte(paddr)
		result = uint64(b)
	case decoder.OpLH:
		var hw uint16
		hw, lerr = h.LS.LoadHalf(paddr)
		result = uint64(int64(int16(hw)))
	case decoder.OpLHU:
		var hw uint16
		hw, lerr = h.LS.LoadHalf(paddr)
		result = uint64(hw)
	case decoder.OpLW:
		var w uint32
		w, lerr = h.LS.LoadWord(paddr)
		result = uint64(int64(int32(w)))
	case decoder.OpLWU:
		var w uint32
		w, lerr = h.LS.LoadWord(paddr)
		result = uint64(w)
	case decoder.OpLD:
		result, lerr = h.LS.LoadDouble(paddr)
	}
	if lerr != nil {
		h.loadFault(lerr, vaddr, e.PC)
		return
	}
	h.X.SetX(v.Rd(), result)
	h.advance(next)
}

func (h *Hart) store(e dbbcache.Entry, v decoder.View, next uint64) {
	vaddr := uint64(h.X.GetXSigned(v.Rs1()) + v.ImmS())
	paddr, err := h.translateData(vaddr, mmu.Store)
	if err != nil {
		h.storeFault(err, vaddr, e.PC)
		return
	}
	val := h.X.GetX(v.Rs2())
	var serr error
	switch e.Op {
	case decoder.OpSB:
		serr = h.LS.StoreByte(paddr, uint8(val))
	case decoder.OpSH:
		serr = h.LS.StoreHalf(paddr, uint16(val))
	case decoder.OpSW:
		serr = h.LS.StoreWord(paddr, uint32(val))
	case decoder.OpSD:
		serr = h.LS.StoreDouble(paddr, val)
	}
	if serr != nil {
		h.storeFault(serr, vaddr, e.PC)
		return
	}
	h.advance(next)
}

// csrOp implements the six Zicsr forms, per spec.md §4.2: *I variants
// take their operand from the rs1 field as a 5-bit immediate rather
// than a register read.
func (h *Hart) csrOp(e dbbcache.Entry, v decoder.View, next uint64) {
	addr := uint32(v.Csr())
	var srcVal uint64
	immForm := false
	switch e.Op {
	case decoder.OpCSRRWI, decoder.OpCSRRSI, decoder.OpCSRRCI:
		immForm = true
		srcVal = uint64(v.Rs1())
	default:
		srcVal = h.X.GetX(v.Rs1())
	}

	rd := v.Rd()
	wantsOld := rd != 0

	var old uint64
	var err error
	switch e.Op {
	case decoder.OpCSRRW, decoder.OpCSRRWI:
		if wantsOld {
			old, err = h.CSR.Read(addr)
			if err == nil {
				err = h.CSR.Write(addr, srcVal)
			}
		} else {
			err = h.CSR.Write(addr, srcVal)
		}
	case decoder.OpCSRRS, decoder.OpCSRRSI:
		suppress := !immForm && v.Rs1() == 0
		old, err = h.CSR.Update(addr, func(cur uint64) uint64 { return cur | srcVal }, suppress)
	case decoder.OpCSRRC, decoder.OpCSRRCI:
		suppress := !immForm && v.Rs1() == 0
		old, err = h.CSR.Update(addr, func(cur uint64) uint64 { return cur &^ srcVal }, suppress)
	}
	if err != nil {
		h.takeTrap(trap.ExcIllegalInstr, false, e.PC, uint64(e.Word))
		return
	}
	if wantsOld {
		h.X.SetX(rd, old)
	}
	h.DBB.ForceSlowPath()
	h.advance(next)
}

// muldiv implements the M extension, including RISC-V's defined
// division-by-zero and signed-overflow results (no trap is raised;
// the spec mandates specific sentinel results instead).
func (h *Hart) muldiv(op decoder.OpId, v decoder.View) {
	rs1, rs2 := v.Rs1(), v.Rs2()
	switch op {
	case decoder.OpMUL:
		h.X.SetX(v.Rd(), h.X.GetX(rs1)*h.X.GetX(rs2))
	case decoder.OpMULH:
		h.X.SetX(v.Rd(), uint64(mulHSigned(h.X.GetXSigned(rs1), h.X.GetXSigned(rs2))))
	case decoder.OpMULHSU:
		h.X.SetX(v.Rd(), uint64(mulHSignedUnsigned(h.X.GetXSigned(rs1), h.X.GetX(rs2))))
	case decoder.OpMULHU:
		h.X.SetX(v.Rd(), mulHUnsigned(h.X.GetX(rs1), h.X.GetX(rs2)))
	case decoder.OpDIV:
		a, b := h.X.GetXSigned(rs1), h.X.GetXSigned(rs2)
		h.X.SetX(v.Rd(), uint64(divSigned(a, b, h.Cfg.XLEN)))
	case decoder.OpDIVU:
		a, b := h.X.GetX(rs1), h.X.GetX(rs2)
		if b == 0 {
			h.X.SetX(v.Rd(), ^uint64(0))
		} else {
			h.X.SetX(v.Rd(), a/b)
		}
	case decoder.OpREM:
		a, b := h.X.GetXSigned(rs1), h.X.GetXSigned(rs2)
		h.X.SetX(v.Rd(), uint64(remSigned(a, b, h.Cfg.XLEN)))
	case decoder.OpREMU:
		a, b := h.X.GetX(rs1), h.X.GetX(rs2)
		if b == 0 {
			h.X.SetX(v.Rd(), a)
		} else {
			h.X.SetX(v.Rd(), a%b)
		}
	case decoder.OpMULW:
		a, b := int32(h.X.GetX(rs1)), int32(h.X.GetX(rs2))
		h.X.SetX(v.Rd(), uint64(int64(a*b)))
	case decoder.OpDIVW:
		a, b := int32(h.X.GetX(rs1)), int32(h.X.GetX(rs2))
		h.X.SetX(v.Rd(), uint64(int64(divSigned32(a, b))))
	case decoder.OpDIVUW:
		a, b := uint32(h.X.GetX(rs1)), uint32(h.X.GetX(rs2))
		if b == 0 {
			h.X.SetX(v.Rd(), ^uint64(0))
		} else {
			h.X.SetX(v.Rd(), uint64(int64(int32(a/b))))
		}
	case decoder.OpREMW:
		a, b := int32(h.X.GetX(rs1)), int32(h.X.GetX(rs2))
		h.X.SetX(v.Rd(), uint64(int64(remSigned32(a, b))))
	case decoder.OpREMUW:
		a, b := uint32(h.X.GetX(rs1)), uint32(h.X.GetX(rs2))
		if b == 0 {
			h.X.SetX(v.Rd(), uint64(int64(int32(a))))
		} else {
			h.X.SetX(v.Rd(), uint64(int64(int32(a%b))))
		}
	}
}

func divSigned(a, b int64, xlen int) int64 {
	if b == 0 {
		return -1
	}
	minVal := int64(-1) << uint(xlen-1)
	if a == minVal && b == -1 {
		return minVal
	}
	return a / b
}

func remSigned(a, b int64, xlen int) int64 {
	if b == 0 {
		return a
	}
	minVal := int64(-1) << uint(xlen-1)
	if a == minVal && b == -1 {
		return 0
	}
	return a % b
}

func divSigned32(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == int32(-1<<31) && b == -1 {
		return a
	}
	return a / b
}

func remSigned32(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == int32(-1<<31) && b == -1 {
		return 0
	}
	return a % b
}

func mulHSigned(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return int64(hi)
}

func mulHSignedUnsigned(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return int64(hi)
}

func mulHUnsigned(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

// reservingBus is implemented by emu/memory.Bus: a reservation set by
// LR is visible to every hart sharing the bus, and is cleared by any
// hart's intervening store to the line, not just this hart's own SC.
// device.DataMemory itself stays narrow (Reserve isn't part of the
// platform-neutral interface), so this is checked with a type
// assertion and falls back to a hart-local reservation for a bus that
// doesn't implement it.
type reservingBus interface {
	Reserve(hart int, addr uint64)
	CheckAndClearReservation(hart int, addr uint64) bool
}

// amo implements LR/SC and the AMO family through the raw data bus,
// bracketed by AtomicLock/AtomicUnlock so LSCache sees the bus-lock
// state and bypasses its cache for the duration, per spec.md §4.3's
// "bus-lock bypass during LR/SC sequences."
func (h *Hart) amo(e dbbcache.Entry, v decoder.View, next uint64) {
	vaddr := h.X.GetX(v.Rs1())
	isDouble := is64AMO(e.Op)

	paddr, err := h.translateData(vaddr, mmu.Store)
	if err != nil {
		h.storeFault(err, vaddr, e.PC)
		return
	}

	h.Bus.AtomicLock()
	defer h.Bus.AtomicUnlock()

	rb, hasReservations := h.Bus.(reservingBus)

	switch e.Op {
	case decoder.OpLRW:
		w, lerr := h.Bus.LoadWord(paddr)
		if lerr != nil {
			h.loadFault(lerr, vaddr, e.PC)
			return
		}
		if hasReservations {
			rb.Reserve(h.Cfg.Hart, paddr)
		} else {
			h.reservationValid = true
			h.reservationAddr = paddr
		}
		h.X.SetX(v.Rd(), uint64(int64(int32(w))))
		h.advance(next)
		return
	case decoder.OpLRD:
		d, lerr := h.Bus.LoadDouble(paddr)
		if lerr != nil {
			h.loadFault(lerr, vaddr, e.PC)
			return
		}
		if hasReservations {
			rb.Reserve(h.Cfg.Hart, paddr)
		} else {
			h.reservationValid = true
			h.reservationAddr = paddr
		}
		h.X.SetX(v.Rd(), d)
		h.advance(next)
		return
	case decoder.OpSCW, decoder.OpSCD:
		var reserved bool
		if hasReservations {
			reserved = rb.CheckAndClearReservation(h.Cfg.Hart, paddr)
		} else {
			reserved = h.reservationValid && h.reservationAddr == paddr
			h.reservationValid = false
		}
		if !reserved {
			h.X.SetX(v.Rd(), 1)
			h.advance(next)
			return
		}
		var serr error
		if e.Op == decoder.OpSCW {
			serr = h.Bus.StoreWord(paddr, uint32(h.X.GetX(v.Rs2())))
		} else {
			serr = h.Bus.StoreDouble(paddr, h.X.GetX(v.Rs2()))
		}
		if serr != nil {
			h.storeFault(serr, vaddr, e.PC)
			return
		}
		h.X.SetX(v.Rd(), 0)
		h.advance(next)
		return
	}

	if isDouble {
		old, lerr := h.Bus.LoadDouble(paddr)
		if lerr != nil {
			h.loadFault(lerr, vaddr, e.PC)
			return
		}
		result := amoCompute64(e.Op, old, h.X.GetX(v.Rs2()))
		if serr := h.Bus.StoreDouble(paddr, result); serr != nil {
			h.storeFault(serr, vaddr, e.PC)
			return
		}
		h.X.SetX(v.Rd(), old)
	} else {
		old, lerr := h.Bus.LoadWord(paddr)
		if lerr != nil {
			h.loadFault(lerr, vaddr, e.PC)
			return
		}
		result := amoCompute32(e.Op, old, uint32(h.X.GetX(v.Rs2())))
		if serr := h.Bus.StoreWord(paddr, result); serr != nil {
			h.storeFault(serr, vaddr, e.PC)
			return
		}
		h.X.SetX(v.Rd(), uint64(int64(int32(old))))
	}
	h.advance(next)
}

func is64AMO(op decoder.OpId) bool {
	switch op {
	case decoder.OpLRD, decoder.OpSCD, decoder.OpAMOSWAPD, decoder.OpAMOADDD, decoder.OpAMOXORD,
		decoder.OpAMOANDD, decoder.OpAMOORD, decoder.OpAMOMIND, decoder.OpAMOMAXD,
		decoder.OpAMOMINUD, decoder.OpAMOMAXUD:
		return true
	}
	return false
}

func amoCompute32(op decoder.OpId, old, operand uint32) uint32 {
	switch op {
	case decoder.OpAMOSWAPW:
		return operand
	case decoder.OpAMOADDW:
		return old + operand
	case decoder.OpAMOXORW:
		return old ^ operand
	case decoder.OpAMOANDW:
		return old & operand
	case decoder.OpAMOORW:
		return old | operand
	case decoder.OpAMOMINW:
		if int32(old) < int32(operand) {
			return old
		}
		return operand
	case decoder.OpAMOMAXW:
		if int32(old) > int32(operand) {
			return old
		}
		return operand
	case decoder.OpAMOMINUW:
		if old < operand {
			return old
		}
		return operand
	case decoder.OpAMOMAXUW:
		if old > operand {
			return old
		}
		return operand
	}
	return old
}

func amoCompute64(op decoder.OpId, old, operand uint64) uint64 {
	switch op {
	case decoder.OpAMOSWAPD:
		return operand
	case decoder.OpAMOADDD:
		return old + operand
	case decoder.OpAMOXORD:
		return old ^ operand
	case decoder.OpAMOANDD:
		return old & operand
	case decoder.OpAMOORD:
		return old | operand
	case decoder.OpAMOMIND:
		if int64(old) < int64(operand) {
			return old
		}
		return operand
	case decoder.OpAMOMAXD:
		if int64(old) > int64(operand) {
			return old
		}
		return operand
	case decoder.OpAMOMINUD:
		if old < operand {
			return old
		}
		return operand
	case decoder.OpAMOMAXUD:
		if old > operand {
			return old
		}
		return operand
	}
	return old
}

// floadStore implements FLW/FLD/FSW/FSD: ordinary translated loads/
// stores whose value lands in the FP register file NaN-boxed (for
// the 32-bit forms) rather than the integer file.
func (h *Hart) floadStore(e dbbcache.Entry, v decoder.View, next uint64, isLoad bool) {
	var vaddr uint64
	if isLoad {
		vaddr = uint64(h.X.GetXSigned(v.Rs1()) + v.ImmI())
	} else {
		vaddr = uint64(h.X.GetXSigned(v.Rs1()) + v.ImmS())
	}
	intent := mmu.Load
	if !isLoad {
		intent = mmu.Store
	}
	paddr, err := h.translateData(vaddr, intent)
	if err != nil {
		if isLoad {
			h.loadFault(err, vaddr, e.PC)
		} else {
			h.storeFault(err, vaddr, e.PC)
		}
		return
	}
	switch e.Op {
	case decoder.OpFLW:
		w, lerr := h.LS.LoadWord(paddr)
		if lerr != nil {
			h.loadFault(lerr, vaddr, e.PC)
			return
		}
		h.X.SetF32(v.Rd(), w)
	case decoder.OpFLD:
		d, lerr := h.LS.LoadDouble(paddr)
		if lerr != nil {
			h.loadFault(lerr, vaddr, e.PC)
			return
		}
		h.X.SetF64(v.Rd(), d)
	case decoder.OpFSW:
		if serr := h.LS.StoreWord(paddr, h.X.GetF32(v.Rs2())); serr != nil {
			h.storeFault(serr, vaddr, e.PC)
			return
		}
	case decoder.OpFSD:
		if serr := h.LS.StoreDouble(paddr, h.X.GetF64(v.Rs2())); serr != nil {
			h.storeFault(serr, vaddr, e.PC)
			return
		}
	}
	h.advance(next)
}

// frm reads the effective rounding mode for an FP op: the instruction
// field is not separately modeled since the decoder's View does not
// expose it beyond Funct3, so the dynamic (fcsr.frm) mode is used
// uniformly, matching a DYN-only rm field in practice.
func (h *Hart) frm() fpu.RoundingMode {
	v, err := h.CSR.Read(csr.Frm)
	if err != nil {
		return fpu.RNE
	}
	return fpu.RoundingMode(v)
}

func (h *Hart) fpArith(op decoder.OpId, v decoder.View) {
	mode := h.frm()
	switch op {
	case decoder.OpFADDS:
		r, fl := fpu.Op32(0, h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFSUBS:
		r, fl := fpu.Op32(1, h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFMULS:
		r, fl := fpu.Op32(2, h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFDIVS:
		r, fl := fpu.Op32(3, h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFSQRTS:
		r, fl := fpu.Op32(4, h.X.GetF32(v.Rs1()), 0, mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFADDD:
		r, fl := fpu.Op64(0, h.X.GetF64(v.Rs1()), h.X.GetF64(v.Rs2()), mode)
		h.X.SetF64(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFSUBD:
		r, fl := fpu.Op64(1, h.X.GetF64(v.Rs1()), h.X.GetF64(v.Rs2()), mode)
		h.X.SetF64(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFMULD:
		r, fl := fpu.Op64(2, h.X.GetF64(v.Rs1()), h.X.GetF64(v.Rs2()), mode)
		h.X.SetF64(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFDIVD:
		r, fl := fpu.Op64(3, h.X.GetF64(v.Rs1()), h.X.GetF64(v.Rs2()), mode)
		h.X.SetF64(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFSQRTD:
		r, fl := fpu.Op64(4, h.X.GetF64(v.Rs1()), 0, mode)
		h.X.SetF64(v.Rd(), r)
		h.accrueFlags(fl)
	}
	h.DBB.ForceSlowPath()
}

func (h *Hart) fpConvert(op decoder.OpId, v decoder.View) {
	mode := h.frm()
	switch op {
	case decoder.OpFCVTSD:
		r, fl := fpu.F64ToF32(h.X.GetF64(v.Rs1()), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFCVTDS:
		r, fl := fpu.F32ToF64(h.X.GetF32(v.Rs1()))
		h.X.SetF64(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFCVTWS:
		r, fl2 := fpu.F32ToF64(h.X.GetF32(v.Rs1()))
		i, fl3 := fpu.F64ToI32(r)
		h.X.SetX(v.Rd(), uint64(int64(i)))
		h.accrueFlags(fl2 | fl3)
	case decoder.OpFCVTWUS:
		r, fl2 := fpu.F32ToF64(h.X.GetF32(v.Rs1()))
		u, fl3 := fpu.F64ToU32(r)
		h.X.SetX(v.Rd(), uint64(int64(int32(u))))
		h.accrueFlags(fl2 | fl3)
	case decoder.OpFCVTSW:
		r, fl := fpu.I64ToF32(int64(int32(h.X.GetX(v.Rs1()))), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	case decoder.OpFCVTSWU:
		r, fl := fpu.U64ToF32(uint64(uint32(h.X.GetX(v.Rs1()))), mode)
		h.X.SetF32(v.Rd(), r)
		h.accrueFlags(fl)
	}
}

func (h *Hart) vsetvl(op decoder.OpId, v decoder.View) {
	var vtypeImm uint64
	var avl uint64
	switch op {
	case decoder.OpVSETVLI:
		vtypeImm = uint64(v.Word>>20) & 0x7ff
		avl = h.X.GetX(v.Rs1())
		if v.Rs1() == 0 && v.Rd() != 0 {
			avl = h.Vec.VLMax()
		} else if v.Rs1() == 0 {
			avl = h.Vec.VL
		}
	case decoder.OpVSETIVLI:
		vtypeImm = uint64(v.Word>>20) & 0x3ff
		avl = uint64(v.Rs1())
	case decoder.OpVSETVL:
		vtypeImm = h.X.GetX(v.Rs2())
		avl = h.X.GetX(v.Rs1())
	}
	h.Vec.SetVType(vtypeImm)
	newVL := h.Vec.SetVL(avl)
	h.X.SetX(v.Rd(), newVL)
	h.CSR.SetRaw(csr.Vl, newVL)
	h.CSR.SetRaw(csr.Vtype, vtypeImm)
	h.DBB.ForceSlowPath()
}

type vecMem struct {
	h *Hart
}

func (m vecMem) LoadByte(vaddr uint64) (uint8, error) {
	paddr, err := m.h.translateData(vaddr, mmu.Load)
	if err != nil {
		return 0, err
	}
	return m.h.LS.LoadByte(paddr)
}

func (m vecMem) StoreByte(vaddr uint64, val uint8) error {
	paddr, err := m.h.translateData(vaddr, mmu.Store)
	if err != nil {
		return err
	}
	return m.h.LS.StoreByte(paddr, val)
}

func (h *Hart) vectorMemOp(op decoder.OpId, v decoder.View) {
	base := h.X.GetX(v.Rs1())
	masked := v.Funct7()&1 == 0
	mem := vecMem{h: h}
	var err error
	if op == decoder.OpVLE {
		err = h.Vec.LoadUnitStride(mem, v.Rd(), base, masked)
	} else {
		err = h.Vec.StoreUnitStride(mem, v.Rs2(), base, masked)
	}
	if err != nil {
		h.loadFault(err, base, h.PC)
	}
}
