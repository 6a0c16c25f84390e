package trap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/csr"
)

func TestMachineExternalInterruptHighestPriority(t *testing.T) {
	f := csr.New(64, true, true)
	require.NoError(t, f.Write(csr.Mie, 1<<11|1<<7))
	f.SetRaw(csr.Mip, 1<<11|1<<7)
	require.NoError(t, f.Write(csr.Mstatus, csr.MstatusMIE))

	e := New(f, 64, true, true)
	cause, ok := e.PendingInterrupt(csr.Machine)
	require.True(t, ok)
	require.Equal(t, IntMExternal, cause)
}

func TestInterruptBlockedWhenMIEClear(t *testing.T) {
	f := csr.New(64, true, true)
	require.NoError(t, f.Write(csr.Mie, 1<<7))
	f.SetRaw(csr.Mip, 1<<7)

	e := New(f, 64, true, true)
	_, ok := e.PendingInterrupt(csr.Machine)
	require.False(t, ok)
}

func TestEnterTrapSavesEpcAndSwitchesPrivilege(t *testing.T) {
	f := csr.New(64, true, true)
	e := New(f, 64, true, true)
	res := e.Enter(ExcIllegalInstr, false, csr.User, 0x1000, 0xdead)
	require.Equal(t, csr.Machine, res.Privilege)
	require.Equal(t, uint64(0x1000), f.RawValue(csr.Mepc))
	require.Equal(t, uint64(0xdead), f.RawValue(csr.Mtval))
	require.Equal(t, uint64(ExcIllegalInstr), f.RawValue(csr.Mcause))
}

func TestDelegatedExceptionEntersSupervisor(t *testing.T) {
	f := csr.New(64, true, true)
	require.NoError(t, f.Write(csr.Medeleg, 1<<uint(ExcBreakpoint)))
	e := New(f, 64, true, true)
	res := e.Enter(ExcBreakpoint, false, csr.User, 0x2000, 0)
	require.Equal(t, csr.Supervisor, res.Privilege)
	require.Equal(t, uint64(0x2000), f.RawValue(csr.Sepc))
}

func TestVectoredInterruptOffsetsByCause(t *testing.T) {
	f := csr.New(64, true, true)
	require.NoError(t, f.Write(csr.Mtvec, 0x8000|1))
	e := New(f, 64, true, true)
	res := e.Enter(IntMTimer, true, csr.Machine, 0x3000, 0)
	require.Equal(t, uint64(0x8000+4*uint64(IntMTimer)), res.PC)
}

func TestMretRestoresPrivilegeAndPIE(t *testing.T) {
	f := csr.New(64, true, true)
	e := New(f, 64, true, true)
	f.SetRaw(csr.Mstatus, csr.MstatusMIE)
	e.Enter(ExcECallU, false, csr.User, 0x4000, 0)
	res := e.Xret(true)
	require.Equal(t, csr.User, res.Privilege)
	require.Equal(t, uint64(0x4000), res.PC)
	require.NotZero(t, f.RawValue(csr.Mstatus)&csr.MstatusMIE)
}

func TestMretResetsMPPToUserWhenUSupported(t *testing.T) {
	f := csr.New(64, true, true)
	e := New(f, 64, true, true)
	e.Enter(ExcECallU, false, csr.User, 0x4000, 0)
	e.Xret(true)
	mpp := csr.Privilege((f.RawValue(csr.Mstatus) & csr.MstatusMPP) >> 11)
	require.Equal(t, csr.User, mpp)
}

func TestMretResetsMPPToLeastPrivilegedSupportedMode(t *testing.T) {
	// M+S only hart: mret must never leave MPP parked on a
	// nonexistent U mode.
	f := csr.New(64, true, false)
	e := New(f, 64, true, false)
	e.Enter(ExcIllegalInstr, false, csr.Supervisor, 0x5000, 0)
	e.Xret(true)
	mpp := csr.Privilege((f.RawValue(csr.Mstatus) & csr.MstatusMPP) >> 11)
	require.Equal(t, csr.Supervisor, mpp)
}

func TestMretResetsMPPToMachineWhenNeitherSNorUSupported(t *testing.T) {
	f := csr.New(64, false, false)
	e := New(f, 64, false, false)
	e.Enter(ExcIllegalInstr, false, csr.Machine, 0x6000, 0)
	e.Xret(true)
	mpp := csr.Privilege((f.RawValue(csr.Mstatus) & csr.MstatusMPP) >> 11)
	require.Equal(t, csr.Machine, mpp)
}

func TestSretResetsSPPToSupervisorWhenUNotSupported(t *testing.T) {
	f := csr.New(64, true, false)
	e := New(f, 64, true, false)
	require.NoError(t, f.Write(csr.Medeleg, 1<<uint(ExcBreakpoint)))
	e.Enter(ExcBreakpoint, false, csr.Supervisor, 0x7000, 0)
	e.Xret(false)
	require.NotZero(t, f.RawValue(csr.Mstatus)&csr.MstatusSPP)
}
