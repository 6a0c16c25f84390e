package monitor

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	pc          uint64
	x           [32]uint64
	halted      bool
	wfi         bool
	exitCode    int
	breakpoints map[uint64]bool
	mem         map[uint64]byte
	stepErr     error
	steps       int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{breakpoints: map[uint64]bool{}, mem: map[uint64]byte{}}
}

func (f *fakeTarget) PC() uint64              { return f.pc }
func (f *fakeTarget) GetX(i int) uint64       { return f.x[i] }
func (f *fakeTarget) PrivilegeName() string   { return "M" }
func (f *fakeTarget) Halted() bool            { return f.halted }
func (f *fakeTarget) WFI() bool               { return f.wfi }
func (f *fakeTarget) ExitCode() int           { return f.exitCode }
func (f *fakeTarget) SetBreakpoint(a uint64)  { f.breakpoints[a] = true }
func (f *fakeTarget) ClearBreakpoint(a uint64) { delete(f.breakpoints, a) }

func (f *fakeTarget) Breakpoints() []uint64 {
	out := make([]uint64, 0, len(f.breakpoints))
	for a := range f.breakpoints {
		out = append(out, a)
	}
	return out
}

func (f *fakeTarget) Step() error {
	f.steps++
	f.pc += 4
	return f.stepErr
}

func (f *fakeTarget) Run(quantum int) error {
	if quantum <= 0 {
		f.halted = true
	}
	return nil
}

func (f *fakeTarget) ReadByte(addr uint64) (byte, error) {
	b, ok := f.mem[addr]
	if !ok {
		return 0, errors.New("no such address")
	}
	return b, nil
}

func TestDispatchBreakAndClear(t *testing.T) {
	ft := newFakeTarget()
	var out bytes.Buffer
	m := New(ft, &out)

	quit, err := m.Dispatch("break 1000")
	require.NoError(t, err)
	require.False(t, quit)
	require.True(t, ft.breakpoints[0x1000])

	_, err = m.Dispatch("clear 1000")
	require.NoError(t, err)
	require.False(t, ft.breakpoints[0x1000])
}

func TestDispatchStepAdvancesPC(t *testing.T) {
	ft := newFakeTarget()
	var out bytes.Buffer
	m := New(ft, &out)

	_, err := m.Dispatch("step 3")
	require.NoError(t, err)
	require.Equal(t, 3, ft.steps)
	require.Equal(t, uint64(12), ft.pc)
}

func TestDispatchExamineFormatsDump(t *testing.T) {
	ft := newFakeTarget()
	ft.mem[0x100] = 0xab
	var out bytes.Buffer
	m := New(ft, &out)

	_, err := m.Dispatch("examine 100 1")
	require.NoError(t, err)
	require.Contains(t, out.String(), "ab")
}

func TestDispatchUnknownCommandErrors(t *testing.T) {
	ft := newFakeTarget()
	m := New(ft, nil)
	_, err := m.Dispatch("bogus")
	require.Error(t, err)
}

func TestDispatchAmbiguousPrefixErrors(t *testing.T) {
	ft := newFakeTarget()
	m := New(ft, nil)
	_, err := m.Dispatch("c")
	require.Error(t, err)
}

func TestDispatchQuitReturnsTrue(t *testing.T) {
	ft := newFakeTarget()
	m := New(ft, nil)
	quit, err := m.Dispatch("quit")
	require.NoError(t, err)
	require.True(t, quit)
}

func TestCompleteListsMatchingCommands(t *testing.T) {
	ft := newFakeTarget()
	m := New(ft, nil)
	matches := m.Complete("s")
	require.Contains(t, matches, "step ")
}
