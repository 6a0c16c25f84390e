/*
rviss - Integer and floating-point register files.

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

// Package regfile holds one hart's integer and floating-point
// register files. x0 is hardwired to zero; floating registers are
// always stored as 64 bits with 32-bit values NaN-boxed, per the
// "single-precision values occupy low 32 bits... upper 32 bits all
// ones" rule.
package regfile

import "math"

// boxTag is the NaN-boxing pattern occupying the upper 32 bits of a
// register holding a valid 32-bit float.
const boxTag = 0xffffffff00000000

// CanonicalNaNF32 is returned when an f32 read finds an entry that is
// not correctly NaN-boxed.
const CanonicalNaNF32 uint32 = 0x7fc00000

// File is one hart's register state.
type File struct {
	x  [32]uint64 // integer registers, truncated to XLEN by the caller
	f  [32]uint64 // floating registers, always 64 bits wide
	xl int        // 32 or 64: configured XLEN
}

// New creates a register file for the given XLEN (32 or 64).
func New(xlen int) *File {
	return &File{xl: xlen}
}

// XLEN returns the configured integer register width in bits.
func (f *File) XLEN() int { return f.xl }

func (f *File) mask() uint64 {
	if f.xl == 32 {
		return 0xffffffff
	}
	return math.MaxUint64
}

// GetX reads integer register i; x0 always reads as 0.
func (f *File) GetX(i int) uint64 {
	if i == 0 {
		return 0
	}
	return f.x[i] & f.mask()
}

// GetXSigned reads integer register i sign-extended to 64 bits, as
// XLEN-wide arithmetic requires.
func (f *File) GetXSigned(i int) int64 {
	v := f.GetX(i)
	if f.xl == 32 {
		return int64(int32(v))
	}
	return int64(v)
}

// SetX writes integer register i; writes to x0 are discarded, which
// is the invariant "after every retired instruction, entry 0 equals
// 0" made structural rather than checked per instruction.
func (f *File) SetX(i int, v uint64) {
	if i == 0 {
		return
	}
	f.x[i] = v & f.mask()
}

// GetF64 reads floating register i as a raw 64-bit pattern (double).
func (f *File) GetF64(i int) uint64 {
	return f.f[i]
}

// SetF64 writes a 64-bit (double-precision) value to floating
// register i.
func (f *File) SetF64(i int, v uint64) {
	f.f[i] = v
}

// GetF32 reads floating register i as a 32-bit (single-precision)
// pattern; a non-NaN-boxed entry reads back as the canonical NaN per
// spec.md §3.
func (f *File) GetF32(i int) uint32 {
	if f.f[i]&boxTag != boxTag {
		return CanonicalNaNF32
	}
	return uint32(f.f[i])
}

// SetF32 writes a 32-bit value to floating register i, NaN-boxing the
// upper 32 bits.
func (f *File) SetF32(i int, v uint32) {
	f.f[i] = boxTag | uint64(v)
}
