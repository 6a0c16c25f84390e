/*
rviss - Newlib/Linux-subset syscall emulation.

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

// Package syscall implements the optional ECALL-intercepting syscall
// emulator a hart can attach in place of trapping to a real
// supervisor: a small subset of the Newlib semihosting/Linux numbering
// (exit, write, brk) sufficient to run bare-metal compiler-test
// binaries, grounded on the original's core/common/syscall_if.h
// attach point and syscall.h numbering table.
package syscall

import (
	"io"
)

const (
	sysExit  = 93
	sysWrite = 64
	sysBrk   = 214
	sysRead  = 63
)

// Emulator implements device.SyscallEmulator. Brk tracks a single
// bump-pointer heap above the program break the hart reports at
// attach time.
type Emulator struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	brk      uint64
	heapBase uint64
	Mem      Memory
}

// Memory is the minimal byte-range accessor the write/read syscalls
// need; the cpu package supplies an adapter over its lscache/bus.
type Memory interface {
	ReadBytes(vaddr uint64, n int) ([]byte, error)
	WriteBytes(vaddr uint64, data []byte) error
}

// New creates a syscall emulator with its heap break initialized to
// heapBase (typically the ELF loader's reported end-of-BSS).
func New(heapBase uint64, mem Memory, stdout, stderr io.Writer, stdin io.Reader) *Emulator {
	return &Emulator{Stdout: stdout, Stderr: stderr, Stdin: stdin, brk: heapBase, heapBase: heapBase, Mem: mem}
}

// Syscall implements device.SyscallEmulator's contract: a7 selects
// the call, args holds a0..a5, and the returned result becomes the
// guest's a0. exit/exitCode propagate sys_exit(code) to the caller,
// which is expected to stop the hart.
func (e *Emulator) Syscall(a7 uint64, args [6]uint64) (result uint64, exit bool, exitCode int) {
	switch a7 {
	case sysExit:
		return 0, true, int(int32(args[0]))
	case sysWrite:
		return e.write(args[0], args[1], args[2]), false, 0
	case sysRead:
		return e.read(args[0], args[1], args[2]), false, 0
	case sysBrk:
		return e.brkCall(args[0]), false, 0
	}
	return ^uint64(0), false, 0 // ENOSYS-shaped negative return
}

func (e *Emulator) write(fd, addr, n uint64) uint64 {
	if e.Mem == nil {
		return ^uint64(0)
	}
	data, err := e.Mem.ReadBytes(addr, int(n))
	if err != nil {
		return ^uint64(0)
	}
	var w io.Writer
	switch fd {
	case 1:
		w = e.Stdout
	case 2:
		w = e.Stderr
	default:
		return ^uint64(0)
	}
	if w == nil {
		return n
	}
	written, err := w.Write(data)
	if err != nil {
		return ^uint64(0)
	}
	return uint64(written)
}

func (e *Emulator) read(fd, addr, n uint64) uint64 {
	if fd != 0 || e.Stdin == nil || e.Mem == nil {
		return ^uint64(0)
	}
	buf := make([]byte, n)
	got, err := e.Stdin.Read(buf)
	if got == 0 && err != nil {
		return 0
	}
	if err := e.Mem.WriteBytes(addr, buf[:got]); err != nil {
		return ^uint64(0)
	}
	return uint64(got)
}

// brkCall implements the Newlib-style brk(2): requesting 0 reports
// the current break, any other value sets a new one unconditionally
// (the emulator has no notion of an out-of-memory heap ceiling).
func (e *Emulator) brkCall(newBrk uint64) uint64 {
	if newBrk == 0 {
		return e.brk
	}
	e.brk = newBrk
	return e.brk
}
