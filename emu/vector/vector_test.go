package vector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newEngine(sew int, lmul float64, vl uint64) *Engine {
	e := &Engine{SEW: sew, LMUL: lmul}
	e.VL = vl
	return e
}

func TestSetVTypeDecodesSEWAndLMUL(t *testing.T) {
	e := &Engine{}
	e.SetVType(0x08) // vsew field (bits 5:3) = 1 -> SEW=16, vlmul field = 0 -> LMUL=1
	require.False(t, e.VIll)
	require.Equal(t, 16, e.SEW)
	require.Equal(t, float64(1), e.LMUL)
}

func TestSetVTypeIllegalSEWZeroesVL(t *testing.T) {
	e := &Engine{VL: 4}
	e.SetVType(4 << 3) // vsew=4 is reserved
	require.True(t, e.VIll)
	require.Zero(t, e.VL)
}

func TestVLMaxScalesWithLMUL(t *testing.T) {
	e := newEngine(32, 2, 0)
	require.Equal(t, uint64(32), e.VLMax()) // (512/32)*2
}

func TestSetVLClampsToVLMax(t *testing.T) {
	e := newEngine(32, 1, 0)
	got := e.SetVL(1000)
	require.Equal(t, e.VLMax(), got)
}

func TestSetVLPassesThroughWhenFits(t *testing.T) {
	e := newEngine(32, 1, 0)
	got := e.SetVL(4)
	require.Equal(t, uint64(4), got)
}

func TestGetSetElemRoundTrips32(t *testing.T) {
	e := newEngine(32, 1, 8)
	e.SetElem(1, 2, 0xdeadbeef)
	require.Equal(t, uint64(0xdeadbeef), e.GetElem(1, 2))
}

func TestGetElemSignedSignExtends(t *testing.T) {
	e := newEngine(8, 1, 8)
	e.SetElem(1, 0, 0xff)
	require.Equal(t, int64(-1), e.GetElemSigned(1, 0))
}

func TestVAddAddsElementwise(t *testing.T) {
	e := newEngine(32, 1, 4)
	for i := uint64(0); i < 4; i++ {
		e.SetElem(1, i, i+1)
		e.SetElem(2, i, 10)
	}
	e.VAdd(3, 2, 1, false)
	for i := uint64(0); i < 4; i++ {
		require.Equal(t, i+11, e.GetElem(3, i))
	}
}

func TestVAddHonorsMask(t *testing.T) {
	e := newEngine(32, 1, 2)
	e.setMaskBit(0, 0, true)
	e.setMaskBit(0, 1, false)
	e.SetElem(1, 0, 5)
	e.SetElem(1, 1, 5)
	e.SetElem(2, 0, 1)
	e.SetElem(2, 1, 1)
	e.SetElem(3, 1, 99) // pre-existing value; zeroed because VMA is false
	e.VAdd(3, 2, 1, true)
	require.Equal(t, uint64(6), e.GetElem(3, 0))
	require.Equal(t, uint64(0), e.GetElem(3, 1))
}

func TestApplyTailPolicyZeroesWhenTA(t *testing.T) {
	e := newEngine(32, 1, 2)
	e.VTA = true
	for i := uint64(0); i < e.VLMax(); i++ {
		e.SetElem(1, i, 0xffffffff)
	}
	e.applyTailPolicy(1)
	require.Equal(t, uint64(0xffffffff), e.GetElem(1, 0))
	require.Equal(t, uint64(0), e.GetElem(1, 2))
}

type fakeVecMem struct {
	data map[uint64]uint8
	fail map[uint64]bool
}

func newFakeVecMem() *fakeVecMem { return &fakeVecMem{data: map[uint64]uint8{}, fail: map[uint64]bool{}} }

func (m *fakeVecMem) LoadByte(vaddr uint64) (uint8, error) {
	if m.fail[vaddr] {
		return 0, errors.New("fault")
	}
	return m.data[vaddr], nil
}

func (m *fakeVecMem) StoreByte(vaddr uint64, v uint8) error {
	m.data[vaddr] = v
	return nil
}

func TestLoadUnitStrideReadsContiguousBytes(t *testing.T) {
	e := newEngine(32, 1, 2)
	mem := newFakeVecMem()
	mem.data[0x100] = 1
	mem.data[0x104] = 2
	require.NoError(t, e.LoadUnitStride(mem, 1, 0x100, false))
	require.Equal(t, uint64(1), e.GetElem(1, 0))
	require.Equal(t, uint64(2), e.GetElem(1, 1))
}

func TestLoadUnitStrideFaultSavesVStart(t *testing.T) {
	e := newEngine(32, 1, 2)
	mem := newFakeVecMem()
	mem.fail[0x104] = true
	err := e.LoadUnitStride(mem, 1, 0x100, false)
	require.Error(t, err)
	require.Equal(t, uint64(1), e.VStart)
}

func TestLoadFaultOnlyFirstTruncatesVLOnLaterFault(t *testing.T) {
	e := newEngine(8, 1, 4)
	mem := newFakeVecMem()
	mem.data[0] = 1
	mem.fail[1] = true
	require.NoError(t, e.LoadFaultOnlyFirst(mem, 1, 0, false))
	require.Equal(t, uint64(1), e.VL)
}

func TestLoadFaultOnlyFirstPropagatesFaultOnFirstElement(t *testing.T) {
	e := newEngine(8, 1, 4)
	mem := newFakeVecMem()
	mem.fail[0] = true
	err := e.LoadFaultOnlyFirst(mem, 1, 0, false)
	require.Error(t, err)
}
