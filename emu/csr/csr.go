/*
rviss - Control and status register bank.

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

// Package csr implements the sparse, per-address control/status
// register bank: read/write masks, privilege gating, and the
// pre-read/post-write hooks that let mstatus.FS/VS, mcounteren and
// friends react to an access rather than just store a value. CSR
// numbering and field layout follow RISC-V privileged spec v1.11.
package csr

import "errors"

// ErrIllegal marks an access that must raise EXC_ILLEGAL_INSTR: wrong
// privilege, a read-only register targeted by a write, or a register
// gated off by mstatus.FS/VS or a counter-enable bit.
var ErrIllegal = errors.New("illegal csr access")

// Well-known CSR addresses used directly by the interpreter and trap
// engine (the full address space is sparse; unlisted addresses are
// simply unregistered).
const (
	Fflags  = 0x001
	Frm     = 0x002
	Fcsr    = 0x003
	Vstart  = 0x008
	Vxsat   = 0x009
	Vxrm    = 0x00a
	Vcsr    = 0x00f
	Sstatus = 0x100
	Sie     = 0x104
	Stvec   = 0x105
	Scounteren = 0x106
	Sscratch = 0x140
	Sepc    = 0x141
	Scause  = 0x142
	Stval   = 0x143
	Sip     = 0x144
	Satp    = 0x180
	Mstatus = 0x300
	Misa    = 0x301
	Medeleg = 0x302
	Mideleg = 0x303
	Mie     = 0x304
	Mtvec   = 0x305
	Mcounteren = 0x306
	Mscratch = 0x340
	Mepc    = 0x341
	Mcause  = 0x342
	Mtval   = 0x343
	Mip     = 0x344
	Mcycle  = 0xb00
	Minstret = 0xb02
	Mcycleh = 0xb80
	Minstreth = 0xb82
	Cycle   = 0xc00
	Time    = 0xc01
	Instret = 0xc02
	Cycleh  = 0xc80
	Timeh   = 0xc81
	Instreth = 0xc82
	Vlenb   = 0xc22
	Vl      = 0xc20
	Vtype   = 0xc21
	Mvendorid = 0xf11
	Marchid  = 0xf12
	Mimpid   = 0xf13
	Mhartid  = 0xf14
)

// mstatus field bit positions (RV64 layout; callers mask for RV32).
const (
	MstatusSIE = 1 << 1
	MstatusMIE = 1 << 3
	MstatusSPIE = 1 << 5
	MstatusMPIE = 1 << 7
	MstatusSPP = 1 << 8
	MstatusMPP = 0x3 << 11
	MstatusFS  = 0x3 << 13
	MstatusVS  = 0x3 << 9
	MstatusMPRV = 1 << 17
	MstatusSUM = 1 << 18
	MstatusMXR = 1 << 19
)

// Privilege levels, ordered M > S > U to match the "running privilege
// is lower than the CSR's implied privilege" comparisons spec.md
// §4.2 requires.
type Privilege int

const (
	User Privilege = iota
	Supervisor
	_ // hypervisor, unimplemented
	Machine
)

// reg is one CSR's stored value plus its access contract.
type reg struct {
	value     uint64
	readMask  uint64
	writeMask uint64
	privilege Privilege
	readOnly  bool
	preRead   func(f *File) (uint64, error)
	postWrite func(f *File, old, new uint64) error
}

// File is one hart's CSR bank.
type File struct {
	regs map[uint32]*reg
	xlen int

	// Counters are tracked outside the generic reg map because
	// mcycle/minstret are computed on demand from the hart's running
	// cycle/retire counts rather than stored directly, per spec.md
	// §4.2 ("either read from the hart state or computed on demand").
	GetCycles   func() uint64
	GetInstret  func() uint64
	Privilege   Privilege
}

// New builds a CSR bank with the standard machine/supervisor/user
// registers pre-registered for the given privilege modes.
func New(xlen int, hasS, hasU bool) *File {
	f := &File{regs: make(map[uint32]*reg), xlen: xlen, Privilege: Machine}
	f.installDefaults(hasS, hasU)
	return f
}

func (f *File) addrPrivilege(addr uint32) Privilege {
	switch (addr >> 8) & 0x3 {
	case 0:
		return User
	case 1:
		return Supervisor
	case 3:
		return Machine
	}
	return Machine
}

func (f *File) isReadOnly(addr uint32) bool {
	return (addr>>10)&0x3 == 0x3
}

// Register installs or replaces a CSR's contract; used by
// installDefaults and by variant cores (spec.md §9's "dynamic
// dispatch to core variants") that need a different mask or hook for
// one address.
func (f *File) Register(addr uint32, resetValue, readMask, writeMask uint64, preRead func(*File) (uint64, error), postWrite func(*File, uint64, uint64) error) {
	f.regs[addr] = &reg{
		value:     resetValue,
		readMask:  readMask,
		writeMask: writeMask,
		privilege: f.addrPrivilege(addr),
		readOnly:  f.isReadOnly(addr),
		preRead:   preRead,
		postWrite: postWrite,
	}
}

func (f *File) lookup(addr uint32) (*reg, error) {
	r, ok := f.regs[addr]
	if !ok {
		return nil, ErrIllegal
	}
	if f.Privilege < r.privilege {
		return nil, ErrIllegal
	}
	return r, nil
}

// Read implements the CSR read, applying the register's pre-read hook
// (used for mstatus.FS/VS gating and counter computation) if present.
func (f *File) Read(addr uint32) (uint64, error) {
	r, err := f.lookup(addr)
	if err != nil {
		return 0, err
	}
	if r.preRead != nil {
		v, err := r.preRead(f)
		if err != nil {
			return 0, err
		}
		return v & r.readMask, nil
	}
	return r.value & r.readMask, nil
}

// Write implements a plain CSRRW-style full write; read-only
// registers always trap regardless of privilege.
func (f *File) Write(addr uint32, value uint64) error {
	r, err := f.lookup(addr)
	if err != nil {
		return err
	}
	if r.readOnly {
		return ErrIllegal
	}
	old := r.value
	r.value = (r.value &^ r.writeMask) | (value & r.writeMask)
	if r.postWrite != nil {
		return r.postWrite(f, old, r.value)
	}
	return nil
}

// Update implements CSRRS/CSRRC: f(old) computes the candidate new
// value; suppress is true when the source operand was x0, in which
// case no write occurs (spec.md §4.2) but the read side effect (and
// the returned old value) still happen.
func (f *File) Update(addr uint32, transform func(old uint64) uint64, suppress bool) (uint64, error) {
	old, err := f.Read(addr)
	if err != nil {
		return 0, err
	}
	if suppress {
		return old, nil
	}
	if err := f.Write(addr, transform(old)); err != nil {
		return 0, err
	}
	return old, nil
}

// RawValue returns the stored value without mask/hook application;
// used by the trap engine and monitor for fields it manages directly
// (mstatus, mcause, mepc, mtval).
func (f *File) RawValue(addr uint32) uint64 {
	r, ok := f.regs[addr]
	if !ok {
		return 0
	}
	return r.value
}

// SetRaw stores a value directly, bypassing write-mask and privilege
// checks; used by the trap engine when entering/leaving a trap.
func (f *File) SetRaw(addr uint32, value uint64) {
	r, ok := f.regs[addr]
	if !ok {
		return
	}
	r.value = value
}
