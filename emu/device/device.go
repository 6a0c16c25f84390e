/*
rviss - External collaborator interfaces the hart consumes.

	Copyright (c) 2024, Richard Cornwell

	Permission is hereby granted, free of charge, to any person obtaining a
	copy of this software and associated documentation files (the "Software"),
	to deal in the Software without restriction, including without limitation
	the rights to use, copy, modify, merge, publish, distribute, sublicense,
	and/or sell copies of the Software, and to permit persons to whom the
	Software is furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in
	all copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
	RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
	IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
	CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package device declares the narrow interfaces a hart uses to reach
// outside itself: instruction and data memory, the external interrupt
// controller, the core-local timer, and an optional syscall emulator.
// None of these are implemented here; emu/memory, emu/clint, emu/plic
// and emu/syscall provide the concrete instances a platform wires in.
package device

import "errors"

// ErrAccessFault is returned by InstrMemory/DataMemory when a physical
// address has no backing region.
var ErrAccessFault = errors.New("access fault")

// InstrMemory is the fetch path the hart walks through after MMU
// translation: a single physical-address load, and an opportunistic
// DMI hook a caller may use to avoid repeat bus trips.
type InstrMemory interface {
	LoadInstr(paddr uint64) (uint32, error)
	// LastDMIPageHostAddr returns a host pointer covering the page
	// containing paddr, and the page's physical base, if the backend
	// can expose one; ok is false for MMIO or any region that must be
	// visited on every access.
	LastDMIPageHostAddr(paddr uint64) (base uint64, host []byte, ok bool)
}

// DataMemory is the post-translation data path: typed loads/stores,
// atomics, DMI exposure, and the bus-lock primitive that backs LR/SC.
type DataMemory interface {
	LoadByte(paddr uint64) (uint8, error)
	LoadHalf(paddr uint64) (uint16, error)
	LoadWord(paddr uint64) (uint32, error)
	LoadDouble(paddr uint64) (uint64, error)
	StoreByte(paddr uint64, v uint8) error
	StoreHalf(paddr uint64, v uint16) error
	StoreWord(paddr uint64, v uint32) error
	StoreDouble(paddr uint64, v uint64) error

	IsBusLocked() bool
	AtomicLock()
	AtomicUnlock()

	// FlushTLB is invoked through LSCache.FenceVMA on sfence.vma; a bus that caches
	// its own physical-to-DMI mapping may drop it here too.
	FlushTLB()

	LastDMIPageHostAddr(paddr uint64) (base uint64, host []byte, ok bool)
}

// InterruptController is the external-interrupt source a hart is
// wired to: it raises/clears the per-hart external-interrupt pending
// bits (meip/seip) from outside the interpreter loop.
type InterruptController interface {
	TriggerExternalInterrupt(hart int, privilege int)
	ClearExternalInterrupt(hart int, privilege int)
}

// Timer is the core-local interrupt/timer (CLINT) interface: timer
// and software interrupt latch/clear plus the shared mtime counter.
type Timer interface {
	TriggerTimerInterrupt(hart int)
	ClearTimerInterrupt(hart int)
	TriggerSoftwareInterrupt(hart int)
	ClearSoftwareInterrupt(hart int)
	UpdateAndGetMtime() uint64
}

// SyscallEmulator intercepts ECALL when attached; the hart does not
// raise an ECALL-from-<prv> trap while one is present.
type SyscallEmulator interface {
	// Syscall executes the call named by a7 with arguments a0..a5;
	// it returns the value to place in a0 and whether the guest asked
	// to terminate (sys_exit).
	Syscall(a7 uint64, args [6]uint64) (result uint64, exit bool, exitCode int)
}

// MMIODevice is a bus-attached peripheral with a fixed base address
// and width-sized register read/write; unlike DataMemory's RAM path it never
// offers DMI, so LSCache never caches accesses to it.
type MMIODevice interface {
	Base() uint64
	Size() uint64
	ReadReg(offset uint64, width int) (uint64, error)
	WriteReg(offset uint64, width int, value uint64) error
	Shutdown()
}
