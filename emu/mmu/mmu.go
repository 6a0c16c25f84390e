/*
rviss - Memory management unit.

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

// Package mmu implements the Sv32/Sv39/Sv48 page-table walk and a
// small TLB keyed by (virtual page, privilege); permissions are checked
// per access intent on each hit. The
// walk itself mirrors the teacher's segment/page-table DAT walk
// (translate-then-cache-the-frame), generalized here to RISC-V's
// multi-level radix page tables instead of the teacher's two-level
// segment/page scheme.
package mmu

import (
	"errors"

	"github.com/rvsim/rviss/emu/csr"
	"github.com/rvsim/rviss/emu/device"
)

// Mode selects the active paging scheme, driven from satp.MODE.
type Mode int

const (
	Bare Mode = iota
	Sv32
	Sv39
	Sv48
)

// Intent distinguishes the three independent access-fault/page-fault
// families: an instruction fetch, a data load, or a data store/AMO.
type Intent int

const (
	Fetch Intent = iota
	Load
	Store
)

// FaultKind reports which exception family a translation failure
// belongs to, so the caller can pick the matching xcause.
type FaultKind int

const (
	NoFault FaultKind = iota
	PageFault
	AccessFault
)

// Error wraps a translation failure with enough detail for the
// interpreter to raise the right trap with the right tval.
type Error struct {
	Kind  FaultKind
	Vaddr uint64
}

func (e *Error) Error() string { return "mmu: translation fault" }

var errWalkDone = errors.New("mmu: walk terminated")

const pageShift = 12
const pageSize = 1 << pageShift
const pageMask = pageSize - 1

type tlbEntry struct {
	valid     bool
	vpn       uint64
	privilege csr.Privilege
	asid      uint64
	ppn       uint64
	r, w, x   bool
	u         bool
	levelSize uint64 // superpage span in bytes, for huge-page matching
}

const tlbSize = 64

// Unit is one hart's MMU: satp-driven mode selection plus a small
// 64-entry TLB, searched linearly (slot 0 is replaced once it is full)
// and flushed wholesale by sfence.vma (spec.md §4.6
// does not require ASID-selective flushing for a single-hart ISS).
type Unit struct {
	CSR  *csr.File
	Mem  device.DataMemory
	XLEN int
	tlb  [tlbSize]tlbEntry
}

// New creates an MMU bound to CSR bank f and physical memory mem.
func New(f *csr.File, mem device.DataMemory, xlen int) *Unit {
	return &Unit{CSR: f, Mem: mem, XLEN: xlen}
}

func (u *Unit) mode() Mode {
	satp := u.CSR.RawValue(csr.Satp)
	if u.XLEN == 32 {
		if satp&(1<<31) == 0 {
			return Bare
		}
		return Sv32
	}
	switch satp >> 60 {
	case 8:
		return Sv39
	case 9:
		return Sv48
	default:
		return Bare
	}
}

func (u *Unit) rootPPN() uint64 {
	satp := u.CSR.RawValue(csr.Satp)
	if u.XLEN == 32 {
		return satp & 0x3fffff
	}
	return satp & 0xfffffffffff
}

func levelsFor(mode Mode) (levels int, vpnBits int, ptesize int) {
	switch mode {
	case Sv32:
		return 2, 10, 4
	case Sv39:
		return 3, 9, 8
	case Sv48:
		return 4, 9, 8
	}
	return 0, 0, 0
}

func vpnAt(vaddr uint64, level, vpnBits int) uint64 {
	shift := pageShift + level*vpnBits
	return (vaddr >> shift) & ((1 << vpnBits) - 1)
}

// Translate converts a virtual address to a physical address for the
// given access intent and current privilege, walking the page table
// on a TLB miss and applying SUM/MXR per spec.md §4.6.
func (u *Unit) Translate(vaddr uint64, intent Intent, privilege csr.Privilege) (uint64, error) {
	mode := u.mode()
	if mode == Bare || privilege == csr.Machine {
		return vaddr, nil
	}

	if e := u.tlbLookup(vaddr, privilege); e != nil {
		if !u.permitted(e.r, e.w, e.x, e.u, intent, privilege) {
			return 0, &Error{Kind: PageFault, Vaddr: vaddr}
		}
		off := vaddr & (e.levelSize - 1)
		return (e.ppn << pageShift) + off, nil
	}

	ppn, r, w, x, uBit, levelSize, err := u.walk(vaddr, mode, intent)
	if err != nil {
		return 0, err
	}
	if !u.permitted(r, w, x, uBit, intent, privilege) {
		return 0, &Error{Kind: PageFault, Vaddr: vaddr}
	}
	u.tlbInsert(vaddr, privilege, ppn, r, w, x, uBit, levelSize)
	off := vaddr & (levelSize - 1)
	return (ppn << pageShift) + off, nil
}

// walk performs the radix page-table walk, returning the final PPN
// and leaf permission bits. levelSize is the superpage span (pageSize
// for a standard 4K leaf, larger for a superpage stop at a higher
// level), mirroring RISC-V privileged spec §4.3.2 algorithm.
func (u *Unit) walk(vaddr uint64, mode Mode, intent Intent) (ppn uint64, r, w, x, uBit bool, levelSize uint64, err error) {
	levels, vpnBits, ptesize := levelsFor(mode)
	a := u.rootPPN() << pageShift
	i := levels - 1
	for {
		vpn := vpnAt(vaddr, i, vpnBits)
		pteAddr := a + vpn*uint64(ptesize)
		pte, rerr := u.readPTE(pteAddr, ptesize)
		if rerr != nil {
			return 0, false, false, false, false, 0, &Error{Kind: AccessFault, Vaddr: vaddr}
		}
		if pte&1 == 0 || (pte&0x2 == 0 && pte&0x4 != 0) {
			return 0, false, false, false, false, 0, &Error{Kind: PageFault, Vaddr: vaddr}
		}
		r = pte&0x2 != 0
		w = pte&0x4 != 0
		x = pte&0x8 != 0
		uBit = pte&0x10 != 0
		if !r && !w && !x {
			// Pointer to next level.
			if i == 0 {
				return 0, false, false, false, false, 0, &Error{Kind: PageFault, Vaddr: vaddr}
			}
			a = ptePPN(pte, ptesize) << pageShift
			i--
			continue
		}
		// Leaf PTE.
		ppnBits := ptePPN(pte, ptesize)
		if i > 0 {
			// Superpage: low-order PPN bits for skipped levels must be 0.
			lowMask := uint64(1)<<uint(i*vpnBits) - 1
			if ppnBits&lowMask != 0 {
				return 0, false, false, false, false, 0, &Error{Kind: PageFault, Vaddr: vaddr}
			}
		}
		levelSize = uint64(1) << uint(pageShift+i*vpnBits)
		// A superpage's low-order PPN bits are zero (checked above); the
		// caller's offset vaddr & (levelSize-1) supplies them.
		fullPPN := ppnBits
		_ = intent
		return fullPPN, r, w, x, uBit, levelSize, nil
	}
}

func ptePPN(pte uint64, ptesize int) uint64 {
	if ptesize == 4 {
		return (pte >> 10) & 0x3fffff
	}
	return (pte >> 10) & 0xfffffffffff
}

func (u *Unit) readPTE(addr uint64, ptesize int) (uint64, error) {
	if ptesize == 4 {
		v, err := u.Mem.LoadWord(addr)
		return uint64(v), err
	}
	return u.Mem.LoadDouble(addr)
}

// permitted applies the U-bit/SUM/MXR access rules from spec.md §4.6.
func (u *Unit) permitted(r, w, x, uBit bool, intent Intent, privilege csr.Privilege) bool {
	if uBit && privilege == csr.Supervisor {
		sum := u.CSR.RawValue(csr.Mstatus)&csr.MstatusSUM != 0
		if !sum && intent != Fetch {
			return false
		}
		if intent == Fetch {
			return false
		}
	}
	if !uBit && privilege == csr.User {
		return false
	}
	switch intent {
	case Fetch:
		return x
	case Load:
		if r {
			return true
		}
		mxr := u.CSR.RawValue(csr.Mstatus)&csr.MstatusMXR != 0
		return mxr && x
	case Store:
		return w
	}
	return false
}

func (u *Unit) tlbLookup(vaddr uint64, privilege csr.Privilege) *tlbEntry {
	for i := range u.tlb {
		e := &u.tlb[i]
		if !e.valid || e.privilege != privilege {
			continue
		}
		if vaddr&^(e.levelSize-1) == e.vpn {
			return e
		}
	}
	return nil
}

func (u *Unit) tlbInsert(vaddr uint64, privilege csr.Privilege, ppn uint64, r, w, x, uBit bool, levelSize uint64) {
	idx := 0
	for i := range u.tlb {
		if !u.tlb[i].valid {
			idx = i
			break
		}
		idx = (idx + 1) % tlbSize
	}
	u.tlb[idx] = tlbEntry{
		valid: true, vpn: vaddr &^ (levelSize - 1), privilege: privilege,
		ppn: ppn, r: r, w: w, x: x, u: uBit, levelSize: levelSize,
	}
}

// FenceVMA flushes the whole TLB, per spec.md §4.6 (no ASID-selective
// flush is modeled for a single-hart target).
func (u *Unit) FenceVMA() {
	u.tlb = [tlbSize]tlbEntry{}
}
