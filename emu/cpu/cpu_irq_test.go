package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/csr"
)

func TestTriggerExternalInterruptSetsMEIPForMachine(t *testing.T) {
	h, _ := newTestHart(t)
	h.TriggerExternalInterrupt(0, int(csr.Machine))
	require.NotZero(t, h.CSR.RawValue(csr.Mip)&meipBit)
}

func TestClearExternalInterruptClearsSEIPForSupervisor(t *testing.T) {
	h, _ := newTestHart(t)
	h.CSR.SetRaw(csr.Mip, seipBit)
	h.ClearExternalInterrupt(0, int(csr.Supervisor))
	require.Zero(t, h.CSR.RawValue(csr.Mip)&seipBit)
}
