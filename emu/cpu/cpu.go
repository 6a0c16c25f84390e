/*
rviss - Interpreter loop and hart state.

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

// Package cpu implements the hart: register/CSR/FP state, and the
// fetch-dispatch-execute loop that drives the DBBCache, LSCache, MMU,
// trap engine, FPU and vector engine packages. The loop itself keeps
// the teacher's CycleCPU shape — fetch one scheduling unit, execute
// it, account cycles, check for an asynchronous event — generalized
// from the S/370 channel-and-interrupt poll to RISC-V's
// pending-interrupt computation.
package cpu

import (
	"errors"

	"github.com/rvsim/rviss/emu/csr"
	"github.com/rvsim/rviss/emu/dbbcache"
	"github.com/rvsim/rviss/emu/decoder"
	"github.com/rvsim/rviss/emu/device"
	"github.com/rvsim/rviss/emu/fpu"
	"github.com/rvsim/rviss/emu/lscache"
	"github.com/rvsim/rviss/emu/mmu"
	"github.com/rvsim/rviss/emu/regfile"
	"github.com/rvsim/rviss/emu/trap"
	"github.com/rvsim/rviss/emu/vector"
)

// Config bundles a hart's construction-time parameters.
type Config struct {
	XLEN       int
	Extensions decoder.Ext
	HasS       bool
	HasU       bool
	Hart       int
	EntryPC    uint64

	// HeadlessWFI makes wfi a no-op instead of blocking the hart,
	// for benchmarking without a timer/external interrupt source to
	// wake it back up.
	HeadlessWFI bool
}

// Hart is one RISC-V hart: its architectural state plus the
// supporting engines it drives every retired instruction.
type Hart struct {
	Cfg Config

	X   *regfile.File
	CSR *csr.File
	MMU *mmu.Unit
	LS  *lscache.Cache
	DBB *dbbcache.Cache
	Trp *trap.Engine
	Vec *vector.Engine

	Bus      device.DataMemory
	InstrBus device.InstrMemory
	Timer    device.Timer
	IRQ      device.InterruptController
	Syscall  device.SyscallEmulator

	PC        uint64
	Privilege csr.Privilege
	Halted    bool
	WFI       bool
	ExitCode  int

	cycles  uint64
	instret uint64

	reservationValid bool
	reservationAddr  uint64

	// Breakpoints and single-step support for emu/monitor.
	Breakpoints map[uint64]bool
	StepOnly    bool
}

// New builds a hart wired to bus (data path) and instrBus (fetch
// path), ready to run starting at cfg.EntryPC in machine mode.
func New(cfg Config, bus device.DataMemory, instrBus device.InstrMemory) *Hart {
	h := &Hart{
		Cfg:         cfg,
		X:           regfile.New(cfg.XLEN),
		CSR:         csr.New(cfg.XLEN, cfg.HasS, cfg.HasU),
		Bus:         bus,
		InstrBus:    instrBus,
		PC:          cfg.EntryPC,
		Privilege:   csr.Machine,
		Breakpoints: make(map[uint64]bool),
	}
	h.LS = lscache.New(bus)
	h.MMU = mmu.New(h.CSR, bus, cfg.XLEN)
	h.Trp = trap.New(h.CSR, cfg.XLEN, cfg.HasS, cfg.HasU)
	h.Vec = &vector.Engine{}
	h.CSR.GetCycles = func() uint64 { return h.cycles }
	h.CSR.GetInstret = func() uint64 { return h.instret }
	h.DBB = dbbcache.New(h.fetchWord, cfg.Extensions, cfg.Extensions&decoder.ExtC != 0, nil)
	return h
}

// fetchWord performs one instruction fetch for the DBBCache: MMU
// translation (when paging is active) followed by the physical fetch.
func (h *Hart) fetchWord(vpc uint64) (uint32, error) {
	paddr, err := h.MMU.Translate(vpc, mmu.Fetch, h.Privilege)
	if err != nil {
		return 0, err
	}
	return h.InstrBus.LoadInstr(paddr)
}

// translateData maps a data virtual address through the MMU; the
// load/store helpers then route the physical access through the
// LSCache, matching the teacher's readFull/writeFull split between
// address translation and the actual bus access.
func (h *Hart) translateData(vaddr uint64, intent mmu.Intent) (uint64, error) {
	return h.MMU.Translate(vaddr, intent, h.Privilege)
}

// Run executes instructions until Halted, WFI blocks with nothing
// pending, or quantum instructions have retired (quantum<=0 means
// run until Halted/WFI). It returns ErrBreakpoint when it stops on a
// breakpoint address, any error Step reports, and nil otherwise.
func (h *Hart) Run(quantum int) error {
	for i := 0; quantum <= 0 || i < quantum; i++ {
		if h.Halted {
			return nil
		}
		if h.WFI {
			if _, ok := h.Trp.PendingInterrupt(h.Privilege); !ok {
				return nil
			}
			h.WFI = false
			h.DBB.ForceSlowPath()
		}
		if err := h.Step(); err != nil {
			return err
		}
		if h.StepOnly {
			return nil
		}
		if h.Breakpoints[h.PC] {
			return ErrBreakpoint
		}
	}
	return nil
}

// ErrBreakpoint is returned by Run when execution lands on a
// hart-local breakpoint address, for emu/monitor to report.
var ErrBreakpoint = errors.New("cpu: breakpoint hit")

// Step retires exactly one instruction (or takes exactly one trap),
// mirroring spec.md §4.5's single-instruction commit granularity.
func (h *Hart) Step() error {
	if cause, ok := h.Trp.PendingInterrupt(h.Privilege); ok {
		h.takeTrap(cause, true, h.PC, 0)
		return nil
	}

	d, err := h.DBB.Next(h.PC)
	if err != nil {
		h.faultAt(err)
		return nil
	}
	if !d.InBlock || d.Entry.Abort {
		h.takeTrap(trap.ExcInstrAccessFault, false, h.PC, h.PC)
		return nil
	}

	h.cycles += d.Entry.CycleRaw
	h.instret++
	h.execute(d.Entry)
	return nil
}

// faultAt maps a translation/fetch error from the fetch path to the
// matching page-fault or access-fault exception.
func (h *Hart) faultAt(err error) {
	var me *mmu.Error
	if errors.As(err, &me) {
		cause := trap.ExcInstrAccessFault
		if me.Kind == mmu.PageFault {
			cause = trap.ExcInstrPageFault
		}
		h.takeTrap(cause, false, h.PC, me.Vaddr)
		return
	}
	h.takeTrap(trap.ExcInstrAccessFault, false, h.PC, h.PC)
}

func (h *Hart) takeTrap(cause trap.Cause, isInterrupt bool, pc, tval uint64) {
	res := h.Trp.Enter(cause, isInterrupt, h.Privilege, pc, tval)
	h.Privilege = res.Privilege
	h.PC = res.PC
	newPC, err := h.DBB.EnterTrap(res.PC)
	if err == nil {
		h.PC = newPC
	}
}

// execute dispatches one already-decoded entry; pc advance, control
// transfer, and further faults are each operation's own
// responsibility, matching the teacher's per-opcode handler style.
func (h *Hart) execute(e dbbcache.Entry) {
	next := e.PC + uint64(e.PCIncr)
	v := e.View

	switch e.Op {
	case decoder.OpLUI:
		h.X.SetX(v.Rd(), uint64(v.ImmU()))
		h.advance(next)
	case decoder.OpAUIPC:
		h.X.SetX(v.Rd(), e.PC+uint64(v.ImmU()))
		h.advance(next)

	case decoder.OpJAL:
		target, err := h.DBB.BranchTaken(e.PC, v.ImmJ())
		if err != nil {
			h.trapMisaligned(err, e.PC)
			return
		}
		h.X.SetX(v.Rd(), next)
		h.PC = target
	case decoder.OpJALR:
		target := uint64(int64(h.X.GetXSigned(v.Rs1())) + v.ImmI())
		target &^= 1
		landed, err := h.DBB.JumpDyn(target)
		if err != nil {
			h.trapMisaligned(err, e.PC)
			return
		}
		h.X.SetX(v.Rd(), next)
		h.PC = landed

	case decoder.OpBEQ, decoder.OpBNE, decoder.OpBLT, decoder.OpBGE, decoder.OpBLTU, decoder.OpBGEU:
		h.branch(e, v, next)

	case decoder.OpLB, decoder.OpLH, decoder.OpLW, decoder.OpLBU, decoder.OpLHU, decoder.OpLWU, decoder.OpLD:
		h.load(e, v, next)
	case decoder.OpSB, decoder.OpSH, decoder.OpSW, decoder.OpSD:
		h.store(e, v, next)

	case decoder.OpADDI:
		h.X.SetX(v.Rd(), uint64(h.X.GetXSigned(v.Rs1())+v.ImmI()))
		h.advance(next)
	case decoder.OpSLTI:
		h.setBool(v.Rd(), h.X.GetXSigned(v.Rs1()) < v.ImmI())
		h.advance(next)
	case decoder.OpSLTIU:
		h.setBool(v.Rd(), h.X.GetX(v.Rs1()) < uint64(v.ImmI()))
		h.advance(next)
	case decoder.OpXORI:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())^uint64(v.ImmI()))
		h.advance(next)
	case decoder.OpORI:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())|uint64(v.ImmI()))
		h.advance(next)
	case decoder.OpANDI:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())&uint64(v.ImmI()))
		h.advance(next)
	case decoder.OpSLLI:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())<<(v.Shamt()&shiftMask(h.Cfg.XLEN)))
		h.advance(next)
	case decoder.OpSRLI:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())>>(v.Shamt()&shiftMask(h.Cfg.XLEN)))
		h.advance(next)
	case decoder.OpSRAI:
		h.X.SetX(v.Rd(), uint64(h.X.GetXSigned(v.Rs1())>>(v.Shamt()&shiftMask(h.Cfg.XLEN))))
		h.advance(next)

	case decoder.OpADD:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())+h.X.GetX(v.Rs2()))
		h.advance(next)
	case decoder.OpSUB:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())-h.X.GetX(v.Rs2()))
		h.advance(next)
	case decoder.OpSLL:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())<<(h.X.GetX(v.Rs2())&uint64(shiftMask(h.Cfg.XLEN))))
		h.advance(next)
	case decoder.OpSLT:
		h.setBool(v.Rd(), h.X.GetXSigned(v.Rs1()) < h.X.GetXSigned(v.Rs2()))
		h.advance(next)
	case decoder.OpSLTU:
		h.setBool(v.Rd(), h.X.GetX(v.Rs1()) < h.X.GetX(v.Rs2()))
		h.advance(next)
	case decoder.OpXOR:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())^h.X.GetX(v.Rs2()))
		h.advance(next)
	case decoder.OpSRL:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())>>(h.X.GetX(v.Rs2())&uint64(shiftMask(h.Cfg.XLEN))))
		h.advance(next)
	case decoder.OpSRA:
		h.X.SetX(v.Rd(), uint64(h.X.GetXSigned(v.Rs1())>>(h.X.GetX(v.Rs2())&uint64(shiftMask(h.Cfg.XLEN)))))
		h.advance(next)
	case decoder.OpOR:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())|h.X.GetX(v.Rs2()))
		h.advance(next)
	case decoder.OpAND:
		h.X.SetX(v.Rd(), h.X.GetX(v.Rs1())&h.X.GetX(v.Rs2()))
		h.advance(next)

	case decoder.OpADDIW:
		h.X.SetX(v.Rd(), uint64(int32(int64(h.X.GetXSigned(v.Rs1()))+v.ImmI())))
		h.advance(next)
	case decoder.OpSLLIW:
		h.X.SetX(v.Rd(), uint64(int32(uint32(h.X.GetX(v.Rs1()))<<(v.Shamt()&31))))
		h.advance(next)
	case decoder.OpSRLIW:
		h.X.SetX(v.Rd(), uint64(int32(uint32(h.X.GetX(v.Rs1()))>>(v.Shamt()&31))))
		h.advance(next)
	case decoder.OpSRAIW:
		h.X.SetX(v.Rd(), uint64(int32(h.X.GetX(v.Rs1()))>>(v.Shamt()&31)))
		h.advance(next)
	case decoder.OpADDW:
		h.X.SetX(v.Rd(), uint64(int32(uint32(h.X.GetX(v.Rs1()))+uint32(h.X.GetX(v.Rs2())))))
		h.advance(next)
	case decoder.OpSUBW:
		h.X.SetX(v.Rd(), uint64(int32(uint32(h.X.GetX(v.Rs1()))-uint32(h.X.GetX(v.Rs2())))))
		h.advance(next)
	case decoder.OpSLLW:
		h.X.SetX(v.Rd(), uint64(int32(uint32(h.X.GetX(v.Rs1()))<<(h.X.GetX(v.Rs2())&31))))
		h.advance(next)
	case decoder.OpSRLW:
		h.X.SetX(v.Rd(), uint64(int32(uint32(h.X.GetX(v.Rs1()))>>(h.X.GetX(v.Rs2())&31))))
		h.advance(next)
	case decoder.OpSRAW:
		h.X.SetX(v.Rd(), uint64(int32(h.X.GetX(v.Rs1()))>>(h.X.GetX(v.Rs2())&31)))
		h.advance(next)

	case decoder.OpFENCE:
		h.LS.Fence()
		h.advance(next)
	case decoder.OpFENCEI:
		h.LS.FenceVMA()
		h.DBB.FenceI()
		h.PC = next
	case decoder.OpSFENCEVMA:
		h.MMU.FenceVMA()
		h.LS.FenceVMA()
		h.DBB.FenceVMA()
		h.PC = next

	case decoder.OpECALL:
		h.ecall(next)
	case decoder.OpEBREAK:
		h.takeTrap(trap.ExcBreakpoint, false, e.PC, 0)
	case decoder.OpMRET:
		res := h.Trp.Xret(true)
		h.Privilege = res.Privilege
		h.PC = res.PC
		h.DBB.RetTrap(res.PC)
	case decoder.OpSRET:
		res := h.Trp.Xret(false)
		h.Privilege = res.Privilege
		h.PC = res.PC
		h.DBB.RetTrap(res.PC)
	case decoder.OpWFI:
		if !h.Cfg.HeadlessWFI {
			h.WFI = true
		}
		h.PC = next

	case decoder.OpCSRRW, decoder.OpCSRRS, decoder.OpCSRRC, decoder.OpCSRRWI, decoder.OpCSRRSI, decoder.OpCSRRCI:
		h.csrOp(e, v, next)

	case decoder.OpMUL, decoder.OpMULH, decoder.OpMULHSU, decoder.OpMULHU,
		decoder.OpDIV, decoder.OpDIVU, decoder.OpREM, decoder.OpREMU,
		decoder.OpMULW, decoder.OpDIVW, decoder.OpDIVUW, decoder.OpREMW, decoder.OpREMUW:
		h.muldiv(e.Op, v)
		h.advance(next)

	case decoder.OpLRW, decoder.OpLRD, decoder.OpSCW, decoder.OpSCD,
		decoder.OpAMOSWAPW, decoder.OpAMOADDW, decoder.OpAMOXORW, decoder.OpAMOANDW, decoder.OpAMOORW,
		decoder.OpAMOMINW, decoder.OpAMOMAXW, decoder.OpAMOMINUW, decoder.OpAMOMAXUW,
		decoder.OpAMOSWAPD, decoder.OpAMOADDD, decoder.OpAMOXORD, decoder.OpAMOANDD, decoder.OpAMOORD,
		decoder.OpAMOMIND, decoder.OpAMOMAXD, decoder.OpAMOMINUD, decoder.OpAMOMAXUD:
		h.amo(e, v, next)

	case decoder.OpFLW, decoder.OpFLD:
		h.floadStore(e, v, next, true)
	case decoder.OpFSW, decoder.OpFSD:
		h.floadStore(e, v, next, false)

	case decoder.OpFADDS, decoder.OpFSUBS, decoder.OpFMULS, decoder.OpFDIVS, decoder.OpFSQRTS,
		decoder.OpFADDD, decoder.OpFSUBD, decoder.OpFMULD, decoder.OpFDIVD, decoder.OpFSQRTD:
		h.fpArith(e.Op, v)
		h.advance(next)
	case decoder.OpFCVTSD, decoder.OpFCVTDS, decoder.OpFCVTWS, decoder.OpFCVTWUS, decoder.OpFCVTSW, decoder.OpFCVTSWU:
		h.fpConvert(e.Op, v)
		h.advance(next)
	case decoder.OpFMVXW:
		h.X.SetX(v.Rd(), uint64(int64(int32(h.X.GetF32(v.Rs1())))))
		h.advance(next)
	case decoder.OpFMVWX:
		h.X.SetF32(v.Rd(), uint32(h.X.GetX(v.Rs1())))
		h.advance(next)
	case decoder.OpFEQS:
		r, fl := fpu.CompareF32(h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), 0)
		h.accrueFlags(fl)
		h.setBool(v.Rd(), r)
		h.advance(next)
	case decoder.OpFLTS:
		r, fl := fpu.CompareF32(h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), 1)
		h.accrueFlags(fl)
		h.setBool(v.Rd(), r)
		h.advance(next)
	case decoder.OpFLES:
		r, fl := fpu.CompareF32(h.X.GetF32(v.Rs1()), h.X.GetF32(v.Rs2()), 2)
		h.accrueFlags(fl)
		h.setBool(v.Rd(), r)
		h.advance(next)

	case decoder.OpVSETVLI, decoder.OpVSETIVLI, decoder.OpVSETVL:
		h.vsetvl(e.Op, v)
		h.advance(next)
	case decoder.OpVLE, decoder.OpVSE:
		h.vectorMemOp(e.Op, v)
		h.advance(next)
	case decoder.OpVADDVV:
		h.Vec.VAdd(v.Rd(), v.Rs2(), v.Rs1(), v.Funct7()&1 == 0)
		h.advance(next)
	case decoder.OpVADDVX:
		h.splatScalar(31, h.X.GetX(v.Rs1()))
		h.Vec.VAdd(v.Rd(), v.Rs2(), 31, v.Funct7()&1 == 0)
		h.advance(next)
	case decoder.OpVWADDUVV:
		h.Vec.VMacc(v.Rd(), v.Rs2(), v.Rs1(), v.Funct7()&1 == 0)
		h.advance(next)

	default:
		h.takeTrap(trap.ExcIllegalInstr, false, e.PC, uint64(e.Word))
	}
}

func shiftMask(xlen int) uint {
	if xlen == 32 {
		return 31
	}
	return 63
}

func (h *Hart) advance(next uint64) {
	h.DBB.BranchNotTaken(h.PC)
	h.PC = next
}

func (h *Hart) setBool(rd int, v bool) {
	if v {
		h.X.SetX(rd, 1)
	} else {
		h.X.SetX(rd, 0)
	}
}

func (h *Hart) trapMisaligned(err error, pc uint64) {
	if errors.Is(err, dbbcache.ErrMisaligned) {
		h.takeTrap(trap.ExcInstrAddrMisaligned, false, pc, pc)
		return
	}
	h.faultAt(err)
}

func (h *Hart) branch(e dbbcache.Entry, v decoder.View, next uint64) {
	a, b := h.X.GetXSigned(v.Rs1()), h.X.GetXSigned(v.Rs2())
	var taken bool
	switch e.Op {
	case decoder.OpBEQ:
		taken = a == b
	case decoder.OpBNE:
		taken = a != b
	case decoder.OpBLT:
		taken = a < b
	case decoder.OpBGE:
		taken = a >= b
	case decoder.OpBLTU:
		taken = uint64(a) < uint64(b)
	case decoder.OpBGEU:
		taken = uint64(a) >= uint64(b)
	}
	if !taken {
		h.DBB.BranchNotTaken(e.PC)
		h.PC = next
		return
	}
	target, err := h.DBB.BranchTaken(e.PC, v.ImmB())
	if err != nil {
		h.trapMisaligned(err, e.PC)
		return
	}
	h.PC = target
}

func (h *Hart) ecall(next uint64) {
	if h.Syscall != nil {
		var args [6]uint64
		for i := 0; i < 6; i++ {
			args[i] = h.X.GetX(10 + i)
		}
		result, exit, code := h.Syscall.Syscall(h.X.GetX(17), args)
		if exit {
			h.Halted = true
			h.ExitCode = code
			return
		}
		h.X.SetX(10, result)
		h.advance(next)
		return
	}
	cause := trap.ExcECallM
	switch h.Privilege {
	case csr.User:
		cause = trap.ExcECallU
	case csr.Supervisor:
		cause = trap.ExcECallS
	}
	h.takeTrap(cause, false, h.PC, 0)
}

func (h *Hart) splatScalar(reg int, v uint64) {
	for i := uint64(0); i < h.Vec.VLMax(); i++ {
		h.Vec.SetElem(reg, i, v)
	}
}

func (h *Hart) accrueFlags(fl fpu.Flags) {
	if fl == 0 {
		return
	}
	old := h.CSR.RawValue(csr.Fcsr)
	h.CSR.SetRaw(csr.Fcsr, old|uint64(fl))
}
