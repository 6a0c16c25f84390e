/*
rviss - Core-local interrupt controller (CLINT).

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

// Package clint implements a minimal SiFive-style core-local
// interrupt controller: per-hart msip/mtimecmp registers plus the
// shared mtime counter, exposed both as device.Timer (for the hart's
// direct latch/clear calls) and device.MMIODevice (for guest-visible
// register reads/writes), grounded on the original's fe310 CLINT
// wiring referenced from platform/common.
package clint

import (
	"sync"

	"github.com/rvsim/rviss/emu/csr"
)

const (
	msipOffset      = 0x0000
	mtimecmpOffset  = 0x4000
	mtimeOffset     = 0xbff8
	DefaultBase     = 0x02000000
	DefaultSize     = 0x00010000
	maxHarts        = 8
)

// CLINT is a single shared instance wired to every hart's device.Timer
// slot; TicksPerInstr controls how fast mtime advances relative to
// retired instructions, since the ISS has no wall-clock driving it.
type CLINT struct {
	mu            sync.Mutex
	base          uint64
	mtime         uint64
	mtimecmp      [maxHarts]uint64
	msip          [maxHarts]uint32
	csrs          [maxHarts]*csr.File
	TicksPerInstr uint64
}

// New creates a CLINT at base covering up to maxHarts harts; each hart's
// CSR bank is registered via AttachHart so mip.MTIP/MSIP can be set
// directly without routing back through the interpreter.
func New(base uint64) *CLINT {
	if base == 0 {
		base = DefaultBase
	}
	return &CLINT{base: base, TicksPerInstr: 1}
}

// AttachHart lets the CLINT poke mip directly for hart idx.
func (c *CLINT) AttachHart(idx int, f *csr.File) {
	c.csrs[idx] = f
}

func (c *CLINT) Base() uint64 { return c.base }
func (c *CLINT) Size() uint64 { return DefaultSize }
func (c *CLINT) Shutdown()    {}

func (c *CLINT) ReadReg(offset uint64, width int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case offset == mtimeOffset:
		return c.mtime, nil
	case offset >= mtimecmpOffset && offset < mtimecmpOffset+8*maxHarts:
		hart := (offset - mtimecmpOffset) / 8
		return c.mtimecmp[hart], nil
	case offset < msipOffset+4*maxHarts:
		hart := (offset - msipOffset) / 4
		return uint64(c.msip[hart]), nil
	}
	return 0, nil
}

func (c *CLINT) WriteReg(offset uint64, width int, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case offset == mtimeOffset:
		c.mtime = value
	case offset >= mtimecmpOffset && offset < mtimecmpOffset+8*maxHarts:
		hart := (offset - mtimecmpOffset) / 8
		c.mtimecmp[hart] = value
		c.updateTimerLocked(int(hart))
	case offset < msipOffset+4*maxHarts:
		hart := (offset - msipOffset) / 4
		c.msip[hart] = uint32(value)
		c.updateSoftwareLocked(int(hart))
	}
	return nil
}

func (c *CLINT) updateTimerLocked(hart int) {
	if c.csrs[hart] == nil {
		return
	}
	mip := c.csrs[hart].RawValue(csr.Mip)
	if c.mtime >= c.mtimecmp[hart] {
		mip |= 1 << 7
	} else {
		mip &^= 1 << 7
	}
	c.csrs[hart].SetRaw(csr.Mip, mip)
}

func (c *CLINT) updateSoftwareLocked(hart int) {
	if c.csrs[hart] == nil {
		return
	}
	mip := c.csrs[hart].RawValue(csr.Mip)
	if c.msip[hart]&1 != 0 {
		mip |= 1 << 3
	} else {
		mip &^= 1 << 3
	}
	c.csrs[hart].SetRaw(csr.Mip, mip)
}

// TriggerTimerInterrupt/ClearTimerInterrupt/TriggerSoftwareInterrupt/
// ClearSoftwareInterrupt implement device.Timer directly, for a hart
// that wants to force the condition outside the mtimecmp comparison
// (e.g. a monitor command).
func (c *CLINT) TriggerTimerInterrupt(hart int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtimecmp[hart] = 0
	c.updateTimerLocked(hart)
}

func (c *CLINT) ClearTimerInterrupt(hart int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtimecmp[hart] = ^uint64(0)
	c.updateTimerLocked(hart)
}

func (c *CLINT) TriggerSoftwareInterrupt(hart int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msip[hart] = 1
	c.updateSoftwareLocked(hart)
}

func (c *CLINT) ClearSoftwareInterrupt(hart int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msip[hart] = 0
	c.updateSoftwareLocked(hart)
}

// UpdateAndGetMtime advances mtime by TicksPerInstr and re-evaluates
// every attached hart's timer-pending bit before returning the new
// value, since nothing else drives mtime forward in a cycle-approximate
// ISS with no wall clock.
func (c *CLINT) UpdateAndGetMtime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtime += c.TicksPerInstr
	for h := range c.csrs {
		c.updateTimerLocked(h)
	}
	return c.mtime
}
