/*
rviss - Trap and interrupt engine.

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

// Package trap computes pending-interrupt delivery and performs trap
// entry/exit against a csr.File: mode delegation (medeleg/mideleg),
// xepc/xcause/xtval bookkeeping, xPIE/xPP save-restore, and the
// direct/vectored xtvec jump target. Exception codes follow the
// RISC-V privileged spec v1.11 standard encoding.
package trap

import "github.com/rvsim/rviss/emu/csr"

// Cause is the standard mcause.exception_code encoding (interrupt bit
// is carried separately, since it can apply to the same code number).
type Cause uint64

const (
	ExcInstrAddrMisaligned Cause = 0
	ExcInstrAccessFault    Cause = 1
	ExcIllegalInstr        Cause = 2
	ExcBreakpoint          Cause = 3
	ExcLoadAddrMisaligned  Cause = 4
	ExcLoadAccessFault     Cause = 5
	ExcStoreAMOAddrMisaligned Cause = 6
	ExcStoreAMOAccessFault Cause = 7
	ExcECallU              Cause = 8
	ExcECallS              Cause = 9
	ExcECallM              Cause = 11
	ExcInstrPageFault      Cause = 12
	ExcLoadPageFault       Cause = 13
	ExcStoreAMOPageFault   Cause = 15
)

// Interrupt codes, same numbering used with the interrupt bit set in
// xcause (bit 63 on RV64, bit 31 on RV32).
const (
	IntUSoftware Cause = 0
	IntSSoftware Cause = 1
	IntMSoftware Cause = 3
	IntUTimer    Cause = 4
	IntSTimer    Cause = 5
	IntMTimer    Cause = 7
	IntUExternal Cause = 8
	IntSExternal Cause = 9
	IntMExternal Cause = 11
)

// priority is the fixed, spec.md §4.7-mandated selection order when
// more than one interrupt is simultaneously active:
// meip > msip > mtip > seip > ssip > stip > ueip > usip > utip.
var priority = []Cause{
	IntMExternal, IntMSoftware, IntMTimer,
	IntSExternal, IntSSoftware, IntSTimer,
	IntUExternal, IntUSoftware, IntUTimer,
}

// Engine drives one hart's trap delivery against its CSR bank.
type Engine struct {
	CSR     *csr.File
	XLEN    int
	hasS    bool
	hasU    bool
}

// New creates a trap engine bound to f.
func New(f *csr.File, xlen int, hasS, hasU bool) *Engine {
	return &Engine{CSR: f, XLEN: xlen, hasS: hasS, hasU: hasU}
}

func (e *Engine) intBit() uint64 {
	if e.XLEN == 32 {
		return 1 << 31
	}
	return 1 << 63
}

// PendingInterrupt implements spec.md §4.7's five-step computation. It
// returns the interrupt to take and true, or ok=false if nothing is
// currently deliverable given the hart's privilege and the relevant
// xIE bit.
func (e *Engine) PendingInterrupt(privilege csr.Privilege) (Cause, bool) {
	mie := e.CSR.RawValue(csr.Mie)
	mip := e.CSR.RawValue(csr.Mip)
	pending := mie & mip
	if pending == 0 {
		return 0, false
	}
	mideleg := e.CSR.RawValue(csr.Mideleg)
	mstatus := e.CSR.RawValue(csr.Mstatus)

	mCandidates := pending &^ mideleg
	sCandidates := pending & mideleg
	// No further sideleg delegation is modeled (no hypervisor/U-mode
	// interrupt delegation chain beyond S, per spec.md §4.7 step 3's
	// "unless delegated further to U via sedeleg" being Non-goal-scale
	// for a single-delegation-level implementation).

	mEnabled := privilege < csr.Machine || (privilege == csr.Machine && mstatus&csr.MstatusMIE != 0)
	sEnabled := e.hasS && (privilege < csr.Supervisor || (privilege == csr.Supervisor && mstatus&csr.MstatusSIE != 0))

	for _, c := range priority {
		bit := uint64(1) << uint(c)
		if mCandidates&bit != 0 && mEnabled {
			return c, true
		}
		if sCandidates&bit != 0 && sEnabled {
			return c, true
		}
	}
	return 0, false
}

// EnterResult tells the caller the new PC and privilege after trap
// entry, so it can drive dbbcache.EnterTrap and update its own
// privilege field.
type EnterResult struct {
	PC        uint64
	Privilege csr.Privilege
}

// Enter performs trap entry for either an interrupt (isInterrupt) or
// an architectural exception, per spec.md §4.7's five steps. pc is
// the faulting/current instruction's address; tval is the value to
// place in xtval (0 for most exceptions, the bad address for
// misaligned/fault exceptions, the raw word for illegal instruction).
func (e *Engine) Enter(cause Cause, isInterrupt bool, privilege csr.Privilege, pc, tval uint64) EnterResult {
	target := e.targetPrivilege(cause, isInterrupt, privilege)

	causeVal := uint64(cause)
	if isInterrupt {
		causeVal |= e.intBit()
	}

	mstatus := e.CSR.RawValue(csr.Mstatus)
	switch target {
	case csr.Machine:
		e.CSR.SetRaw(csr.Mepc, pc)
		e.CSR.SetRaw(csr.Mcause, causeVal)
		e.CSR.SetRaw(csr.Mtval, tval)
		pie := mstatus & csr.MstatusMIE
		mstatus = mstatus &^ csr.MstatusMIE
		if pie != 0 {
			mstatus |= csr.MstatusMPIE
		} else {
			mstatus &^= csr.MstatusMPIE
		}
		mstatus = (mstatus &^ csr.MstatusMPP) | (uint64(privilege) << 11)
		e.CSR.SetRaw(csr.Mstatus, mstatus)
		e.CSR.Privilege = csr.Machine
		return EnterResult{PC: e.vector(csr.Mtvec, cause, isInterrupt), Privilege: csr.Machine}
	case csr.Supervisor:
		e.CSR.SetRaw(csr.Sepc, pc)
		e.CSR.SetRaw(csr.Scause, causeVal)
		e.CSR.SetRaw(csr.Stval, tval)
		pie := mstatus & csr.MstatusSIE
		mstatus = mstatus &^ csr.MstatusSIE
		if pie != 0 {
			mstatus |= csr.MstatusSPIE
		} else {
			mstatus &^= csr.MstatusSPIE
		}
		if privilege == csr.Supervisor {
			mstatus |= csr.MstatusSPP
		} else {
			mstatus &^= csr.MstatusSPP
		}
		e.CSR.SetRaw(csr.Mstatus, mstatus)
		e.CSR.Privilege = csr.Supervisor
		return EnterResult{PC: e.vector(csr.Stvec, cause, isInterrupt), Privilege: csr.Supervisor}
	default:
		// U-mode trap delivery (N extension) is not modeled beyond this
		// fallback to machine mode: no hart in this implementation
		// configures user-mode traps (uedeleg has no CSR registered).
		return e.Enter(cause, isInterrupt, privilege, pc, tval)
	}
}

// targetPrivilege implements spec.md §4.7 step 1: M unless delegated
// to S (and the current privilege is at or below S).
func (e *Engine) targetPrivilege(cause Cause, isInterrupt bool, cur csr.Privilege) csr.Privilege {
	if !e.hasS || cur == csr.Machine {
		return csr.Machine
	}
	var delegated uint64
	if isInterrupt {
		delegated = e.CSR.RawValue(csr.Mideleg)
	} else {
		delegated = e.CSR.RawValue(csr.Medeleg)
	}
	if delegated&(1<<uint(cause)) != 0 {
		return csr.Supervisor
	}
	return csr.Machine
}

// vector computes the new PC from an xtvec CSR: Direct mode (mode
// bits 0) always jumps to base; Vectored mode (bits 1) only applies
// the 4*cause offset for interrupts, per spec.md §4.7 step 4.
func (e *Engine) vector(addr uint32, cause Cause, isInterrupt bool) uint64 {
	tvec := e.CSR.RawValue(addr)
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && isInterrupt {
		return base + 4*uint64(cause)
	}
	return base
}

// Xret computes the post-xRET privilege and PC, restoring xIE from
// xPIE and privilege from xPP, per spec.md §4.7's xRET summary.
func (e *Engine) Xret(fromMachine bool) EnterResult {
	mstatus := e.CSR.RawValue(csr.Mstatus)
	if fromMachine {
		pie := mstatus & csr.MstatusMPIE
		if pie != 0 {
			mstatus |= csr.MstatusMIE
		} else {
			mstatus &^= csr.MstatusMIE
		}
		mstatus |= csr.MstatusMPIE
		mpp := csr.Privilege((mstatus & csr.MstatusMPP) >> 11)
		mstatus = (mstatus &^ csr.MstatusMPP) | (uint64(e.leastPrivilege()) << 11)
		e.CSR.SetRaw(csr.Mstatus, mstatus)
		e.CSR.Privilege = mpp
		return EnterResult{PC: e.CSR.RawValue(csr.Mepc), Privilege: mpp}
	}
	pie := mstatus & csr.MstatusSPIE
	if pie != 0 {
		mstatus |= csr.MstatusSIE
	} else {
		mstatus &^= csr.MstatusSIE
	}
	mstatus |= csr.MstatusSPIE
	var spp csr.Privilege = csr.User
	if mstatus&csr.MstatusSPP != 0 {
		spp = csr.Supervisor
	}
	if e.hasU {
		mstatus &^= csr.MstatusSPP
	} else {
		// SPP is a single U/S bit; with no U-mode implemented, Supervisor
		// is the least-privileged mode, so SPP can never read back User.
		mstatus |= csr.MstatusSPP
	}
	e.CSR.SetRaw(csr.Mstatus, mstatus)
	e.CSR.Privilege = spp
	return EnterResult{PC: e.CSR.RawValue(csr.Sepc), Privilege: spp}
}

// leastPrivilege is the mode MPP is reset to after mret, per the
// privileged spec: the least-privileged mode actually implemented on
// this hart, so MPP can never park the CPU in a nonexistent mode.
func (e *Engine) leastPrivilege() csr.Privilege {
	if e.hasU {
		return csr.User
	}
	if e.hasS {
		return csr.Supervisor
	}
	return csr.Machine
}
