/*
rviss - Hart adapter satisfying the monitor.Target interface.

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

package monitor

import (
	"github.com/rvsim/rviss/emu/cpu"
	"github.com/rvsim/rviss/emu/csr"
	"github.com/rvsim/rviss/emu/mmu"
)

// HartTarget adapts a *cpu.Hart's field-based state to the
// method-based Target interface the command table dispatches
// against, and resolves examine addresses through the hart's own MMU
// so breakpoints/memory dumps see what the guest sees.
type HartTarget struct {
	Hart *cpu.Hart
}

func (t *HartTarget) PC() uint64         { return t.Hart.PC }
func (t *HartTarget) GetX(i int) uint64  { return t.Hart.X.GetX(i) }
func (t *HartTarget) Halted() bool       { return t.Hart.Halted }
func (t *HartTarget) WFI() bool          { return t.Hart.WFI }
func (t *HartTarget) ExitCode() int      { return t.Hart.ExitCode }
func (t *HartTarget) Step() error        { return t.Hart.Step() }
func (t *HartTarget) Run(q int) error    { return t.Hart.Run(q) }

func (t *HartTarget) PrivilegeName() string {
	switch t.Hart.Privilege {
	case csr.Machine:
		return "M"
	case csr.Supervisor:
		return "S"
	default:
		return "U"
	}
}

func (t *HartTarget) SetBreakpoint(addr uint64) {
	t.Hart.Breakpoints[addr] = true
}

func (t *HartTarget) ClearBreakpoint(addr uint64) {
	delete(t.Hart.Breakpoints, addr)
}

func (t *HartTarget) Breakpoints() []uint64 {
	out := make([]uint64, 0, len(t.Hart.Breakpoints))
	for addr := range t.Hart.Breakpoints {
		out = append(out, addr)
	}
	return out
}

func (t *HartTarget) ReadByte(addr uint64) (byte, error) {
	paddr, err := t.Hart.MMU.Translate(addr, mmu.Load, t.Hart.Privilege)
	if err != nil {
		return 0, err
	}
	return t.Hart.Bus.LoadByte(paddr)
}
