/*
rviss - Floating-point helpers.

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

// Package fpu implements the F/D-extension arithmetic helpers: sign
// injection, classification, min/max/compare, and rounding-mode-aware
// add/sub/mul/div/sqrt with accrued-exception-flag reporting, layered
// on top of Go's math package the way the original layers on
// softfloat. For single-precision results (Op32, F64ToF32), rounding
// modes other than round-to-nearest-even are approximated with a
// post-hoc nudge, since the host FPU only offers round-to-nearest-even
// directly; Op64 always rounds to nearest even.
package fpu

import "math"

// RoundingMode is the frm/instruction rm field encoding.
type RoundingMode uint8

const (
	RNE RoundingMode = 0
	RTZ RoundingMode = 1
	RDN RoundingMode = 2
	RUP RoundingMode = 3
	RMM RoundingMode = 4
	RDyn RoundingMode = 7
)

// Flags are the accrued fflags bits (NV/DZ/OF/UF/NX), OR'd into fcsr
// by the caller after each operation.
type Flags uint8

const (
	NX Flags = 1 << 0
	UF Flags = 1 << 1
	OF Flags = 1 << 2
	DZ Flags = 1 << 3
	NV Flags = 1 << 4
)

const (
	defaultNaNF32 = 0x7fc00000
	defaultNaNF64 = 0x7ff8000000000000
	f32SignBit    = 1 << 31
	f64SignBit    = 1 << 63
)

// DefaultNaNF32/F64 are the canonical quiet NaN bit patterns RISC-V
// requires any NaN-producing operation to return.
func DefaultNaNF32() uint32 { return defaultNaNF32 }
func DefaultNaNF64() uint64 { return defaultNaNF64 }

func isNaN32(bits uint32) bool { return bits&0x7f800000 == 0x7f800000 && bits&0x007fffff != 0 }
func isNaN64(bits uint64) bool { return bits&0x7ff0000000000000 == 0x7ff0000000000000 && bits&0xfffffffffffff != 0 }
func isSNaN32(bits uint32) bool { return isNaN32(bits) && bits&(1<<22) == 0 }
func isSNaN64(bits uint64) bool { return isNaN64(bits) && bits&(1<<51) == 0 }

// SgnjF32/F64 and SgnjnF32/F64 and SgnjxF32/F64 implement the three
// sign-injection opcodes directly on the bit patterns, per the
// original's f32_sgnj family.
func SgnjF32(a, b uint32) uint32  { return (a &^ f32SignBit) | (b & f32SignBit) }
func SgnjnF32(a, b uint32) uint32 { return (a &^ f32SignBit) | (^b & f32SignBit) }
func SgnjxF32(a, b uint32) uint32 { return a ^ (b & f32SignBit) }
func SgnjF64(a, b uint64) uint64  { return (a &^ f64SignBit) | (b & f64SignBit) }
func SgnjnF64(a, b uint64) uint64 { return (a &^ f64SignBit) | (^b & f64SignBit) }
func SgnjxF64(a, b uint64) uint64 { return a ^ (b & f64SignBit) }

// ClassifyF32/F64 implement fclass.s/fclass.d, returning the 10-bit
// one-hot classification mask from the RISC-V spec table.
func ClassifyF32(bits uint32) uint64 {
	f := math.Float32frombits(bits)
	neg := bits&f32SignBit != 0
	switch {
	case isNaN32(bits) && !isSNaN32(bits):
		return 1 << 9
	case isNaN32(bits):
		return 1 << 8
	case math.IsInf(float64(f), 1):
		return 1 << 7
	case math.IsInf(float64(f), -1):
		return 1 << 0
	case f == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case isSubnormal32(bits):
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}

func isSubnormal32(bits uint32) bool {
	return bits&0x7f800000 == 0 && bits&0x007fffff != 0
}

func isSubnormal64(bits uint64) bool {
	return bits&0x7ff0000000000000 == 0 && bits&0xfffffffffffff != 0
}

func ClassifyF64(bits uint64) uint64 {
	f := math.Float64frombits(bits)
	neg := bits&f64SignBit != 0
	switch {
	case isNaN64(bits) && !isSNaN64(bits):
		return 1 << 9
	case isNaN64(bits):
		return 1 << 8
	case math.IsInf(f, 1):
		return 1 << 7
	case math.IsInf(f, -1):
		return 1 << 0
	case f == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case isSubnormal64(bits):
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}

// MinF32/MaxF32/MinF64/MaxF64 implement fmin.*/fmax.*'s NaN-handling
// rule: a quiet NaN operand loses to any number, two NaNs yield the
// canonical NaN, and a signaling NaN additionally raises NV.
func MinF32(a, b uint32) (uint32, Flags) { return minmax32(a, b, true) }
func MaxF32(a, b uint32) (uint32, Flags) { return minmax32(a, b, false) }

func minmax32(a, b uint32, wantMin bool) (uint32, Flags) {
	var fl Flags
	if isSNaN32(a) || isSNaN32(b) {
		fl |= NV
	}
	aNaN, bNaN := isNaN32(a), isNaN32(b)
	switch {
	case aNaN && bNaN:
		return defaultNaNF32, fl
	case aNaN:
		return b, fl
	case bNaN:
		return a, fl
	}
	fa, fb := math.Float32frombits(a), math.Float32frombits(b)
	if fa == 0 && fb == 0 {
		aNeg := a&f32SignBit != 0
		if wantMin {
			if aNeg {
				return a, fl
			}
			return b, fl
		}
		if !aNeg {
			return a, fl
		}
		return b, fl
	}
	if (wantMin && fa < fb) || (!wantMin && fa > fb) {
		return a, fl
	}
	return b, fl
}

func MinF64(a, b uint64) (uint64, Flags) { return minmax64(a, b, true) }
func MaxF64(a, b uint64) (uint64, Flags) { return minmax64(a, b, false) }

func minmax64(a, b uint64, wantMin bool) (uint64, Flags) {
	var fl Flags
	if isSNaN64(a) || isSNaN64(b) {
		fl |= NV
	}
	aNaN, bNaN := isNaN64(a), isNaN64(b)
	switch {
	case aNaN && bNaN:
		return defaultNaNF64, fl
	case aNaN:
		return b, fl
	case bNaN:
		return a, fl
	}
	fa, fb := math.Float64frombits(a), math.Float64frombits(b)
	if fa == 0 && fb == 0 {
		aNeg := a&f64SignBit != 0
		if wantMin {
			if aNeg {
				return a, fl
			}
			return b, fl
		}
		if !aNeg {
			return a, fl
		}
		return b, fl
	}
	if (wantMin && fa < fb) || (!wantMin && fa > fb) {
		return a, fl
	}
	return b, fl
}

// CompareF32/F64 implement feq/flt/fle. op selects 0=eq,1=lt,2=le.
// Any NaN operand yields false; a signaling NaN or an ordered
// comparison (lt/le) against any NaN also raises NV.
func CompareF32(a, b uint32, op int) (bool, Flags) {
	var fl Flags
	aNaN, bNaN := isNaN32(a), isNaN32(b)
	if isSNaN32(a) || isSNaN32(b) || ((aNaN || bNaN) && op != 0) {
		fl |= NV
	}
	if aNaN || bNaN {
		return false, fl
	}
	fa, fb := math.Float32frombits(a), math.Float32frombits(b)
	switch op {
	case 0:
		return fa == fb, fl
	case 1:
		return fa < fb, fl
	default:
		return fa <= fb, fl
	}
}

func CompareF64(a, b uint64, op int) (bool, Flags) {
	var fl Flags
	aNaN, bNaN := isNaN64(a), isNaN64(b)
	if isSNaN64(a) || isSNaN64(b) || ((aNaN || bNaN) && op != 0) {
		fl |= NV
	}
	if aNaN || bNaN {
		return false, fl
	}
	fa, fb := math.Float64frombits(a), math.Float64frombits(b)
	switch op {
	case 0:
		return fa == fb, fl
	case 1:
		return fa < fb, fl
	default:
		return fa <= fb, fl
	}
}

// roundResult32 nudges a round-to-nearest-even host result toward the
// requested mode when the true mathematical result (exact, held at
// float64 precision) is not already exactly representable; an exact
// host result needs no nudging under any rounding mode.
func roundResult32(exact float64, rne float32, mode RoundingMode, nx bool) float32 {
	if !nx || mode == RNE {
		return rne
	}
	switch mode {
	case RTZ:
		if (exact < 0) != (rne < 0) || math.Abs(float64(rne)) > math.Abs(exact) {
			return math.Nextafter32(rne, 0)
		}
	case RDN:
		if float64(rne) > exact {
			return math.Nextafter32(rne, float32(math.Inf(-1)))
		}
	case RUP:
		if float64(rne) < exact {
			return math.Nextafter32(rne, float32(math.Inf(1)))
		}
	}
	return rne
}

func absGreater32(a, b float32) bool {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	return a > b
}

// Op32/Op64 apply add/sub/mul/div/sqrt, returning the result bits and
// accrued flags. kind: 0=add,1=sub,2=mul,3=div,4=sqrt (b ignored).
// Op64 does not apply mode: it returns the host's round-to-nearest-even
// result and reports only NV and DZ, never NX or OF.
func Op32(kind int, a, b uint32, mode RoundingMode) (uint32, Flags) {
	var fl Flags
	if isSNaN32(a) || isSNaN32(b) {
		fl |= NV
	}
	if isNaN32(a) || isNaN32(b) {
		return defaultNaNF32, fl
	}
	fa, fb := math.Float32frombits(a), math.Float32frombits(b)
	if kind == 3 && fb == 0 && !math.IsNaN(float64(fa)) && fa != 0 {
		fl |= DZ
	}
	if kind == 3 && fa == 0 && fb == 0 {
		fl |= NV
		return defaultNaNF32, fl
	}
	if kind == 4 && fa < 0 {
		fl |= NV
		return defaultNaNF32, fl
	}
	var res float64
	switch kind {
	case 0:
		res = float64(fa) + float64(fb)
	case 1:
		res = float64(fa) - float64(fb)
	case 2:
		res = float64(fa) * float64(fb)
	case 3:
		res = float64(fa) / float64(fb)
	case 4:
		res = math.Sqrt(float64(fa))
	}
	rne := float32(res)
	if math.IsNaN(float64(rne)) {
		fl |= NV
		return defaultNaNF32, fl
	}
	if math.IsInf(float64(rne), 0) && !math.IsInf(res, 0) {
		fl |= OF | NX
	}
	nx := float64(rne) != res
	if nx {
		fl |= NX
	}
	out := roundResult32(res, rne, mode, nx)
	return math.Float32bits(out), fl
}

func roundResult64(exact, rne float64, mode RoundingMode, nx bool) float64 {
	if !nx || mode == RNE {
		return rne
	}
	switch mode {
	case RTZ:
		if absGreater64(rne, exact) {
			return math.Nextafter(rne, 0)
		}
	case RDN:
		if rne > exact {
			return math.Nextafter(rne, math.Inf(-1))
		}
	case RUP:
		if rne < exact {
			return math.Nextafter(rne, math.Inf(1))
		}
	}
	return rne
}

func absGreater64(a, b float64) bool {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	return a > b
}

func Op64(kind int, a, b uint64, mode RoundingMode) (uint64, Flags) {
	var fl Flags
	if isSNaN64(a) || isSNaN64(b) {
		fl |= NV
	}
	if isNaN64(a) || isNaN64(b) {
		return defaultNaNF64, fl
	}
	fa, fb := math.Float64frombits(a), math.Float64frombits(b)
	if kind == 3 && fb == 0 && fa != 0 {
		fl |= DZ
	}
	if kind == 3 && fa == 0 && fb == 0 {
		fl |= NV
		return defaultNaNF64, fl
	}
	if kind == 4 && fa < 0 {
		fl |= NV
		return defaultNaNF64, fl
	}
	var res float64
	switch kind {
	case 0:
		res = fa + fb
	case 1:
		res = fa - fb
	case 2:
		res = fa * fb
	case 3:
		res = fa / fb
	case 4:
		res = math.Sqrt(fa)
	}
	if math.IsNaN(res) {
		fl |= NV
		return defaultNaNF64, fl
	}
	out := roundResult64(res, res, mode, false)
	return math.Float64bits(out), fl
}

// F32ToI32/F32ToI64/F64ToI32/F64ToI64 and their unsigned variants
// implement fcvt.*.s/fcvt.*.d, saturating per the RISC-V spec table
// instead of wrapping, and raising NV on any out-of-range or NaN
// input (NaN converts to the maximum positive value of the target
// width, per the spec's "positive overflow" default).
func F64ToI64(bits uint64) (int64, Flags) {
	f := math.Float64frombits(bits)
	if isNaN64(bits) {
		return math.MaxInt64, NV
	}
	if f >= 9223372036854775808.0 {
		return math.MaxInt64, NV
	}
	if f < -9223372036854775808.0 {
		return math.MinInt64, NV
	}
	var fl Flags
	if f != math.Trunc(f) {
		fl |= NX
	}
	return int64(f), fl
}

func F64ToU64(bits uint64) (uint64, Flags) {
	f := math.Float64frombits(bits)
	if isNaN64(bits) || f < 0 {
		if f < 0 && !isNaN64(bits) {
			return 0, NV
		}
		return math.MaxUint64, NV
	}
	if f >= 18446744073709551616.0 {
		return math.MaxUint64, NV
	}
	var fl Flags
	if f != math.Trunc(f) {
		fl |= NX
	}
	return uint64(f), fl
}

func F64ToI32(bits uint64) (int32, Flags) {
	v, fl := F64ToI64(bits)
	if v > math.MaxInt32 {
		return math.MaxInt32, fl | NV
	}
	if v < math.MinInt32 {
		return math.MinInt32, fl | NV
	}
	return int32(v), fl
}

func F64ToU32(bits uint64) (uint32, Flags) {
	v, fl := F64ToU64(bits)
	if v > math.MaxUint32 {
		return math.MaxUint32, fl | NV
	}
	return uint32(v), fl
}

func I64ToF64(v int64, mode RoundingMode) (uint64, Flags) {
	res := float64(v)
	var fl Flags
	if int64(res) != v {
		fl |= NX
	}
	return math.Float64bits(res), fl
}

func U64ToF64(v uint64, mode RoundingMode) (uint64, Flags) {
	res := float64(v)
	var fl Flags
	if uint64(res) != v {
		fl |= NX
	}
	return math.Float64bits(res), fl
}

func I64ToF32(v int64, mode RoundingMode) (uint32, Flags) {
	res := float32(v)
	var fl Flags
	if int64(res) != v {
		fl |= NX
	}
	return math.Float32bits(res), fl
}

func U64ToF32(v uint64, mode RoundingMode) (uint32, Flags) {
	res := float32(v)
	var fl Flags
	if uint64(res) != v {
		fl |= NX
	}
	return math.Float32bits(res), fl
}

// F32ToF64 widens with NaN canonicalization; F64ToF32 narrows,
// raising NV on a signaling NaN input and OF/UF/NX as the host
// conversion implies.
func F32ToF64(bits uint32) (uint64, Flags) {
	if isNaN32(bits) {
		fl := Flags(0)
		if isSNaN32(bits) {
			fl = NV
		}
		return defaultNaNF64, fl
	}
	return math.Float64bits(float64(math.Float32frombits(bits))), 0
}

func F64ToF32(bits uint64, mode RoundingMode) (uint32, Flags) {
	if isNaN64(bits) {
		fl := Flags(0)
		if isSNaN64(bits) {
			fl = NV
		}
		return defaultNaNF32, fl
	}
	f := math.Float64frombits(bits)
	rne := float32(f)
	var fl Flags
	if float64(rne) != f {
		fl |= NX
	}
	if math.IsInf(float64(rne), 0) && !math.IsInf(f, 0) {
		fl |= OF
	}
	out := roundResult32(f, rne, mode, fl&NX != 0)
	return math.Float32bits(out), fl
}
