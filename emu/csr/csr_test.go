package csr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMachineModeReadWrite(t *testing.T) {
	f := New(64, true, true)
	require.NoError(t, f.Write(Mscratch, 0x1234))
	v, err := f.Read(Mscratch)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), v)
}

func TestSupervisorCSRBlockedFromUserMode(t *testing.T) {
	f := New(64, true, true)
	f.Privilege = User
	_, err := f.Read(Sepc)
	require.ErrorIs(t, err, ErrIllegal)
}

func TestReadOnlyCSRTrapsOnWrite(t *testing.T) {
	f := New(64, true, true)
	err := f.Write(Mhartid, 5)
	require.ErrorIs(t, err, ErrIllegal)
}

func TestUpdateSuppressedWhenSourceIsX0(t *testing.T) {
	f := New(64, true, true)
	require.NoError(t, f.Write(Mscratch, 0x42))
	old, err := f.Update(Mscratch, func(v uint64) uint64 { return v | 0xff }, true)
	require.NoError(t, err)
	require.Equal(t, uint64(0x42), old)
	cur, _ := f.Read(Mscratch)
	require.Equal(t, uint64(0x42), cur)
}

func TestUpdateAppliesWhenNotSuppressed(t *testing.T) {
	f := New(64, true, true)
	require.NoError(t, f.Write(Mscratch, 0x42))
	_, err := f.Update(Mscratch, func(v uint64) uint64 { return v | 0xff }, false)
	require.NoError(t, err)
	cur, _ := f.Read(Mscratch)
	require.Equal(t, uint64(0xff), cur)
}

func TestCounterGatedByMcounteren(t *testing.T) {
	f := New(64, true, true)
	f.GetCycles = func() uint64 { return 99 }
	f.Privilege = Supervisor

	_, err := f.Read(Cycle)
	require.ErrorIs(t, err, ErrIllegal)

	require.NoError(t, f.Write(Mcounteren, 0x1))
	v, err := f.Read(Cycle)
	require.NoError(t, err)
	require.Equal(t, uint64(99), v)
}

func TestFCSRGatedByFSOff(t *testing.T) {
	f := New(64, true, true)
	_, err := f.Read(Frm)
	require.ErrorIs(t, err, ErrIllegal)

	require.NoError(t, f.Write(Mstatus, MstatusFS))
	require.NoError(t, f.Write(Frm, 0x3))
	v, err := f.Read(Frm)
	require.NoError(t, err)
	require.Equal(t, uint64(0x3), v)
}
