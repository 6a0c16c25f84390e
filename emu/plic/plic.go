/*
rviss - Platform-level interrupt controller (PLIC).

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

// Package plic implements a small external-interrupt aggregator in
// the style of the original's platform/common/fe310_plic.h: a fixed
// number of interrupt sources, one priority register each, a single
// enable bitmap, and claim/complete registers. Only one target context
// (hart 0, machine-mode external) is modeled.
package plic

import (
	"sync"

	"github.com/rvsim/rviss/emu/device"
)

const (
	DefaultBase = 0x0c000000
	DefaultSize = 0x04000000
	maxSources  = 64

	priorityBase = 0x000000
	pendingBase  = 0x001000
	enableBase   = 0x002000
	enableStride = 0x80
	contextBase  = 0x200000
	contextStride = 0x1000
	claimOffset  = 0x4
)

// PLIC aggregates up to maxSources-1 external interrupt lines (source
// 0 is reserved, per the RISC-V PLIC spec) into each attached hart's
// meip/seip pending bit.
type PLIC struct {
	mu        sync.Mutex
	base      uint64
	priority  [maxSources]uint32
	pending   [maxSources]bool
	enable    [maxSources]bool // single context: hart 0 machine mode
	threshold uint32
	claimed   map[uint32]bool

	irq device.InterruptController
}

// New creates a PLIC at base, driving irq (typically the hart itself,
// or a thin adapter around its CSR bank) when a source's pending
// state changes.
func New(base uint64, irq device.InterruptController) *PLIC {
	if base == 0 {
		base = DefaultBase
	}
	return &PLIC{base: base, irq: irq, claimed: make(map[uint32]bool)}
}

func (p *PLIC) Base() uint64 { return p.base }
func (p *PLIC) Size() uint64 { return DefaultSize }
func (p *PLIC) Shutdown()    {}

// Raise/Lower set a source's pending bit from outside the guest (a
// platform device asserting its IRQ line), re-evaluating whether the
// aggregate external-interrupt condition should latch.
func (p *PLIC) Raise(source uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if source == 0 || int(source) >= maxSources {
		return
	}
	p.pending[source] = true
	p.reevaluateLocked()
}

func (p *PLIC) Lower(source uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if source == 0 || int(source) >= maxSources {
		return
	}
	p.pending[source] = false
	p.reevaluateLocked()
}

func (p *PLIC) reevaluateLocked() {
	any := false
	for s := 1; s < maxSources; s++ {
		if p.pending[s] && p.enable[s] && p.priority[s] > p.threshold {
			any = true
			break
		}
	}
	if p.irq == nil {
		return
	}
	if any {
		p.irq.TriggerExternalInterrupt(0, 3)
	} else {
		p.irq.ClearExternalInterrupt(0, 3)
	}
}

func (p *PLIC) ReadReg(offset uint64, width int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case offset >= priorityBase && offset < priorityBase+4*maxSources:
		return uint64(p.priority[(offset-priorityBase)/4]), nil
	case offset >= pendingBase && offset < pendingBase+4:
		var v uint32
		for s := 0; s < maxSources; s++ {
			if p.pending[s] {
				v |= 1 << uint(s)
			}
		}
		return uint64(v), nil
	case offset >= enableBase && offset < enableBase+enableStride:
		var v uint32
		for s := 0; s < maxSources; s++ {
			if p.enable[s] {
				v |= 1 << uint(s)
			}
		}
		return uint64(v), nil
	case offset == contextBase:
		return uint64(p.threshold), nil
	case offset == contextBase+claimOffset:
		return uint64(p.claimHighestLocked()), nil
	}
	return 0, device.ErrAccessFault
}

func (p *PLIC) WriteReg(offset uint64, width int, value uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case offset >= priorityBase && offset < priorityBase+4*maxSources:
		p.priority[(offset-priorityBase)/4] = uint32(value)
		p.reevaluateLocked()
	case offset >= enableBase && offset < enableBase+enableStride:
		for s := 0; s < maxSources; s++ {
			p.enable[s] = value&(1<<uint(s)) != 0
		}
		p.reevaluateLocked()
	case offset == contextBase:
		p.threshold = uint32(value)
		p.reevaluateLocked()
	case offset == contextBase+claimOffset:
		p.completeLocked(uint32(value))
	default:
		return device.ErrAccessFault
	}
	return nil
}

func (p *PLIC) claimHighestLocked() uint32 {
	var best uint32
	var bestPriority uint32
	for s := 1; s < maxSources; s++ {
		if p.pending[s] && p.enable[s] && p.priority[s] > bestPriority {
			best = uint32(s)
			bestPriority = p.priority[s]
		}
	}
	if best != 0 {
		p.pending[best] = false
		p.claimed[best] = true
		p.reevaluateLocked()
	}
	return best
}

func (p *PLIC) completeLocked(source uint32) {
	delete(p.claimed, source)
}
