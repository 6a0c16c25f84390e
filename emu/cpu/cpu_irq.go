/*
rviss - Hart-side external interrupt controller adapter.

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

import "github.com/rvsim/rviss/emu/csr"

const (
	meipBit = 1 << 11
	seipBit = 1 << 9
)

// TriggerExternalInterrupt and ClearExternalInterrupt let a Hart stand
// in for device.InterruptController: emu/plic is wired directly to the
// owning hart and pokes mip.MEIP/SEIP the same way emu/clint pokes
// mip.MTIP/MSIP, rather than routing through a separate notification
// channel.
func (h *Hart) TriggerExternalInterrupt(_ int, privilege int) {
	bit := uint64(seipBit)
	if csr.Privilege(privilege) == csr.Machine {
		bit = meipBit
	}
	h.CSR.SetRaw(csr.Mip, h.CSR.RawValue(csr.Mip)|bit)
}

func (h *Hart) ClearExternalInterrupt(_ int, privilege int) {
	bit := uint64(seipBit)
	if csr.Privilege(privilege) == csr.Machine {
		bit = meipBit
	}
	h.CSR.SetRaw(csr.Mip, h.CSR.RawValue(csr.Mip)&^bit)
}
