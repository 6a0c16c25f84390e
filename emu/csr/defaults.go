/*
rviss - Default CSR bank population.

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

package csr

func (f *File) installDefaults(hasS, hasU bool) {
	misa := uint64(1<<8 | 1<<12 | 1<<0 | 1<<5 | 1<<3 | 1<<2 | 1<<21) // IMAFDC + V(bit21)
	if f.xlen == 64 {
		misa |= 2 << 62
	} else {
		misa |= 1 << 30
	}
	if hasS {
		misa |= 1 << 18
	}
	if hasU {
		misa |= 1 << 20
	}
	f.Register(Misa, misa, ^uint64(0), 0, nil, nil)
	f.Register(Mvendorid, 0, ^uint64(0), 0, nil, nil)
	f.Register(Marchid, 0, ^uint64(0), 0, nil, nil)
	f.Register(Mimpid, 0, ^uint64(0), 0, nil, nil)
	f.Register(Mhartid, 0, ^uint64(0), 0, nil, nil)

	f.Register(Mstatus, 0, ^uint64(0), mstatusWriteMask(hasS, hasU), nil, nil)
	f.Register(Medeleg, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mideleg, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mie, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mip, 0, ^uint64(0), mipWritableMask, nil, nil)
	f.Register(Mtvec, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mcounteren, 0, ^uint64(0), 0x7, nil, nil)
	f.Register(Mscratch, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mepc, 0, ^uint64(0), ^uint64(0)&^1, nil, nil)
	f.Register(Mcause, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mtval, 0, ^uint64(0), ^uint64(0), nil, nil)

	f.Register(Mcycle, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Minstret, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Mcycleh, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Minstreth, 0, ^uint64(0), ^uint64(0), nil, nil)

	f.Register(Cycle, 0, ^uint64(0), 0, f.counterPreRead(counterCycle, Mcounteren, 0), nil)
	f.Register(Time, 0, ^uint64(0), 0, f.counterPreRead(counterTime, Mcounteren, 1), nil)
	f.Register(Instret, 0, ^uint64(0), 0, f.counterPreRead(counterInstret, Mcounteren, 2), nil)

	f.Register(Fflags, 0, 0x1f, 0x1f, fcsrPreRead(0), fcsrPostWrite(0))
	f.Register(Frm, 0, 0x7, 0x7, fcsrPreRead(1), fcsrPostWrite(1))
	f.Register(Fcsr, 0, 0xff, 0xff, fcsrPreRead(2), fcsrPostWrite(2))

	f.Register(Vstart, 0, ^uint64(0), ^uint64(0), nil, nil)
	f.Register(Vxsat, 0, 1, 1, nil, nil)
	f.Register(Vxrm, 0, 0x3, 0x3, nil, nil)
	f.Register(Vcsr, 0, 0x7, 0x7, nil, nil)
	f.Register(Vl, 0, ^uint64(0), 0, nil, nil)
	f.Register(Vtype, 0, ^uint64(0), 0, nil, nil)
	f.Register(Vlenb, 16, ^uint64(0), 0, nil, nil)

	if hasS {
		f.Register(Sstatus, 0, sstatusMask, sstatusMask, nil, nil)
		f.Register(Sie, 0, ^uint64(0), sInterruptMask, nil, nil)
		f.Register(Sip, 0, ^uint64(0), sipWritableMask, nil, nil)
		f.Register(Stvec, 0, ^uint64(0), ^uint64(0), nil, nil)
		f.Register(Scounteren, 0, ^uint64(0), 0x7, nil, nil)
		f.Register(Sscratch, 0, ^uint64(0), ^uint64(0), nil, nil)
		f.Register(Sepc, 0, ^uint64(0), ^uint64(0)&^1, nil, nil)
		f.Register(Scause, 0, ^uint64(0), ^uint64(0), nil, nil)
		f.Register(Stval, 0, ^uint64(0), ^uint64(0), nil, nil)
		f.Register(Satp, 0, ^uint64(0), ^uint64(0), nil, nil)
	}
}

// mipWritableMask/sipWritableMask restrict software writes to the
// bits the privileged spec allows direct CSR writes to (software
// interrupt pending bits); the rest are set only by CLINT/PLIC calls
// through the trap engine's SetRaw path.
const (
	mipWritableMask = 1<<1 | 1<<5 | 1<<9
	sipWritableMask = 1 << 1
	sInterruptMask  = 1<<1 | 1<<5 | 1<<9
)

func mstatusWriteMask(hasS, hasU bool) uint64 {
	mask := uint64(MstatusMIE | MstatusMPIE | MstatusMPP | MstatusFS | MstatusVS | MstatusMPRV | MstatusSUM | MstatusMXR)
	if hasS {
		mask |= MstatusSIE | MstatusSPIE | MstatusSPP
	}
	_ = hasU
	return mask
}

const sstatusMask = uint64(MstatusSIE | MstatusSPIE | MstatusSPP | MstatusFS | MstatusVS | MstatusSUM | MstatusMXR)

type counterKind int

const (
	counterCycle counterKind = iota
	counterTime
	counterInstret
)

// counterPreRead implements the mcounteren/scounteren gating and
// on-demand computation from hart-supplied counter functions, per
// spec.md §4.2's "access from S or U mode is gated by
// mcounteren/scounteren and traps when the corresponding bit is
// clear."
func (f *File) counterPreRead(kind counterKind, enableAddr uint32, bit uint) func(*File) (uint64, error) {
	return func(f *File) (uint64, error) {
		if f.Privilege < Machine {
			en := f.RawValue(enableAddr)
			if en&(1<<bit) == 0 {
				return 0, ErrIllegal
			}
		}
		switch kind {
		case counterCycle, counterTime:
			if f.GetCycles != nil {
				return f.GetCycles(), nil
			}
		case counterInstret:
			if f.GetInstret != nil {
				return f.GetInstret(), nil
			}
		}
		return 0, nil
	}
}

// fsField reports mstatus.FS (bits 14:13): 0=Off, >0=enabled.
func (f *File) fsField() uint64 {
	return (f.RawValue(Mstatus) & MstatusFS) >> 13
}

func (f *File) vsField() uint64 {
	return (f.RawValue(Mstatus) & MstatusVS) >> 9
}

// fcsrPreRead/fcsrPostWrite gate fflags/frm/fcsr behind mstatus.FS,
// per spec.md §4.2 ("reading them with the field equal to Off
// traps"), and keep the three aliased views of the same flag/rounding
// bits consistent.
func fcsrPreRead(which int) func(*File) (uint64, error) {
	return func(f *File) (uint64, error) {
		if f.fsField() == 0 {
			return 0, ErrIllegal
		}
		fcsr := f.RawValue(Fcsr)
		switch which {
		case 0:
			return fcsr & 0x1f, nil
		case 1:
			return (fcsr >> 5) & 0x7, nil
		default:
			return fcsr, nil
		}
	}
}

func fcsrPostWrite(which int) func(*File, uint64, uint64) error {
	return func(f *File, _, new uint64) error {
		if f.fsField() == 0 {
			return ErrIllegal
		}
		fcsr := f.RawValue(Fcsr)
		switch which {
		case 0:
			fcsr = (fcsr &^ 0x1f) | (new & 0x1f)
		case 1:
			fcsr = (fcsr &^ (0x7 << 5)) | ((new & 0x7) << 5)
		default:
			fcsr = new & 0xff
		}
		f.SetRaw(Fcsr, fcsr)
		return nil
	}
}
