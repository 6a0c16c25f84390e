package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/cpu"
	"github.com/rvsim/rviss/emu/decoder"
	"github.com/rvsim/rviss/emu/memory"
	"github.com/rvsim/rviss/emu/syscall"
)

func newHaltingHart(t *testing.T) *cpu.Hart {
	t.Helper()
	bus := memory.NewBus()
	bus.AddRAM(0, 4096)
	require.NoError(t, bus.StoreWord(0, 0x00000073)) // ecall

	cfg := cpu.Config{XLEN: 64, Extensions: decoder.DefaultExtensions, HasS: true, HasU: true, EntryPC: 0}
	h := cpu.New(cfg, bus, bus)
	h.Syscall = syscall.New(0, nil, nil, nil, nil)
	h.X.SetX(17, 93) // sys_exit
	h.X.SetX(10, 7)  // exit code
	return h
}

// TestCoreRunsUntilHaltThenStops exercises Start/Send/Stop end to
// end: Stop()'s wg.Wait gives a happens-before edge, so reading Hart
// state after Stop returns is race-free even though the loop runs on
// its own goroutine.
func TestCoreRunsUntilHaltThenStops(t *testing.T) {
	h := newHaltingHart(t)
	c := New(h)
	c.Quantum = 4

	go c.Start()
	c.Send(Packet{Msg: MsgStart})
	c.Stop()

	require.True(t, h.Halted)
	require.Equal(t, 7, h.ExitCode)
}

func TestCoreNeverStartedStaysIdle(t *testing.T) {
	h := newHaltingHart(t)
	c := New(h)

	go c.Start()
	c.Stop()

	require.False(t, h.Halted)
}

func TestCoreStopWithoutStartMessageReturns(t *testing.T) {
	h := newHaltingHart(t)
	c := New(h)
	go c.Start()
	c.Stop()
}
