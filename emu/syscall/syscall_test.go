package syscall

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMem struct {
	data map[uint64][]byte
}

func newFakeMem() *fakeMem { return &fakeMem{data: make(map[uint64][]byte)} }

func (m *fakeMem) ReadBytes(vaddr uint64, n int) ([]byte, error) {
	return m.data[vaddr], nil
}

func (m *fakeMem) WriteBytes(vaddr uint64, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[vaddr] = cp
	return nil
}

func TestSyscallExitReturnsCode(t *testing.T) {
	e := New(0x1000, nil, nil, nil, nil)
	_, exit, code := e.Syscall(sysExit, [6]uint64{7})
	require.True(t, exit)
	require.Equal(t, 7, code)
}

func TestSyscallWriteForwardsToStdout(t *testing.T) {
	mem := newFakeMem()
	mem.data[0x2000] = []byte("hello")
	var out bytes.Buffer
	e := New(0x1000, mem, &out, nil, nil)
	n, exit, _ := e.Syscall(sysWrite, [6]uint64{1, 0x2000, 5})
	require.False(t, exit)
	require.Equal(t, uint64(5), n)
	require.Equal(t, "hello", out.String())
}

func TestSyscallWriteUnknownFdFails(t *testing.T) {
	mem := newFakeMem()
	e := New(0x1000, mem, nil, nil, nil)
	n, _, _ := e.Syscall(sysWrite, [6]uint64{5, 0, 0})
	require.Equal(t, ^uint64(0), n)
}

func TestSyscallReadFillsMemoryFromStdin(t *testing.T) {
	mem := newFakeMem()
	e := New(0x1000, mem, nil, nil, strings.NewReader("abc"))
	n, exit, _ := e.Syscall(sysRead, [6]uint64{0, 0x3000, 3})
	require.False(t, exit)
	require.Equal(t, uint64(3), n)
	require.Equal(t, []byte("abc"), mem.data[0x3000])
}

func TestSyscallBrkReportsThenSetsBreak(t *testing.T) {
	e := New(0x1000, nil, nil, nil, nil)
	cur, _, _ := e.Syscall(sysBrk, [6]uint64{0})
	require.Equal(t, uint64(0x1000), cur)
	next, _, _ := e.Syscall(sysBrk, [6]uint64{0x2000})
	require.Equal(t, uint64(0x2000), next)
}

func TestSyscallUnknownNumberReturnsNegativeOne(t *testing.T) {
	e := New(0x1000, nil, nil, nil, nil)
	r, exit, _ := e.Syscall(999, [6]uint64{})
	require.False(t, exit)
	require.Equal(t, ^uint64(0), r)
}
