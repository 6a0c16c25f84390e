package fpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOp32Add(t *testing.T) {
	a := math.Float32bits(1.5)
	b := math.Float32bits(2.25)
	r, fl := Op32(0, a, b, RNE)
	require.Equal(t, float32(3.75), math.Float32frombits(r))
	require.Zero(t, fl)
}

func TestOp32DivByZeroRaisesDZ(t *testing.T) {
	a := math.Float32bits(1.0)
	b := math.Float32bits(0.0)
	r, fl := Op32(3, a, b, RNE)
	require.True(t, math.IsInf(float64(math.Float32frombits(r)), 1))
	require.NotZero(t, fl&DZ)
}

func TestOp32ZeroOverZeroIsInvalid(t *testing.T) {
	r, fl := Op32(3, 0, 0, RNE)
	require.Equal(t, DefaultNaNF32(), r)
	require.NotZero(t, fl&NV)
}

func TestOp64SqrtNegativeIsInvalid(t *testing.T) {
	neg := math.Float64bits(-4.0)
	r, fl := Op64(4, neg, 0, RNE)
	require.Equal(t, DefaultNaNF64(), r)
	require.NotZero(t, fl&NV)
}

func TestSgnjF32CopiesSignOnly(t *testing.T) {
	a := math.Float32bits(3.0)
	b := math.Float32bits(-1.0)
	r := SgnjF32(a, b)
	require.Equal(t, float32(-3.0), math.Float32frombits(r))
}

func TestClassifyF32ZeroAndInf(t *testing.T) {
	require.Equal(t, uint64(1<<4), ClassifyF32(math.Float32bits(0)))
	require.Equal(t, uint64(1<<3), ClassifyF32(math.Float32bits(float32(math.Copysign(0, -1)))))
	require.Equal(t, uint64(1<<7), ClassifyF32(math.Float32bits(float32(math.Inf(1)))))
}

func TestMinF32PropagatesNaNOnlyWhenBoth(t *testing.T) {
	nan := DefaultNaNF32()
	one := math.Float32bits(1.0)
	r, _ := MinF32(nan, one)
	require.Equal(t, one, r)
	r2, _ := MinF32(nan, nan)
	require.Equal(t, DefaultNaNF32(), r2)
}

func TestCompareF32NaNIsUnordered(t *testing.T) {
	nan := DefaultNaNF32()
	one := math.Float32bits(1.0)
	eq, _ := CompareF32(nan, one, 0)
	require.False(t, eq)
	_, fl := CompareF32(nan, one, 1)
	require.NotZero(t, fl&NV)
}

func TestF64ToI32SaturatesOnOverflow(t *testing.T) {
	big := math.Float64bits(1e18)
	v, fl := F64ToI32(big)
	require.Equal(t, int32(math.MaxInt32), v)
	require.NotZero(t, fl&NV)
}

func TestF32ToF64RoundTrip(t *testing.T) {
	orig := math.Float32bits(3.25)
	wide, fl := F32ToF64(orig)
	require.Zero(t, fl)
	narrow, fl2 := F64ToF32(wide, RNE)
	require.Zero(t, fl2)
	require.Equal(t, orig, narrow)
}
