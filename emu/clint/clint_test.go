package clint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/csr"
)

func TestMtimecmpWriteSetsTimerPending(t *testing.T) {
	c := New(0)
	f := csr.New(64, true, true)
	c.AttachHart(0, f)

	require.NoError(t, c.WriteReg(mtimeOffset, 8, 100))
	require.NoError(t, c.WriteReg(mtimecmpOffset, 8, 50))
	require.NotZero(t, f.RawValue(csr.Mip)&(1<<7))
}

func TestMtimecmpAboveMtimeClearsPending(t *testing.T) {
	c := New(0)
	f := csr.New(64, true, true)
	c.AttachHart(0, f)

	require.NoError(t, c.WriteReg(mtimeOffset, 8, 100))
	require.NoError(t, c.WriteReg(mtimecmpOffset, 8, 200))
	require.Zero(t, f.RawValue(csr.Mip)&(1<<7))
}

func TestMsipWriteSetsSoftwarePending(t *testing.T) {
	c := New(0)
	f := csr.New(64, true, true)
	c.AttachHart(0, f)

	require.NoError(t, c.WriteReg(msipOffset, 4, 1))
	require.NotZero(t, f.RawValue(csr.Mip)&(1<<3))

	require.NoError(t, c.WriteReg(msipOffset, 4, 0))
	require.Zero(t, f.RawValue(csr.Mip)&(1<<3))
}

func TestUpdateAndGetMtimeAdvancesAndReevaluates(t *testing.T) {
	c := New(0)
	c.TicksPerInstr = 10
	f := csr.New(64, true, true)
	c.AttachHart(0, f)
	require.NoError(t, c.WriteReg(mtimecmpOffset, 8, 5))

	mt := c.UpdateAndGetMtime()
	require.Equal(t, uint64(10), mt)
	require.NotZero(t, f.RawValue(csr.Mip)&(1<<7))
}

func TestTriggerAndClearSoftwareInterrupt(t *testing.T) {
	c := New(0)
	f := csr.New(64, true, true)
	c.AttachHart(0, f)

	c.TriggerSoftwareInterrupt(0)
	require.NotZero(t, f.RawValue(csr.Mip)&(1<<3))
	c.ClearSoftwareInterrupt(0)
	require.Zero(t, f.RawValue(csr.Mip)&(1<<3))
}

func TestBaseDefaultsWhenZero(t *testing.T) {
	c := New(0)
	require.Equal(t, uint64(DefaultBase), c.Base())
	require.Equal(t, uint64(DefaultSize), c.Size())
}
