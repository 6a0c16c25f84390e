/*
 * rviss - Log trace data to a file
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package debug implements the bitmask-gated trace printf helpers used
// throughout the simulator: a category (INST, DATA, IRQ, CACHE, MMU,
// VEC, CMD) is only printed when its bit is set in the process-wide
// trace mask, which config/traceconfig populates from the
// "trace" line of the machine-description file.
package debug

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Trace category bits, set with the "trace" config keyword.
const (
	Cmd = 1 << iota
	Inst
	Data
	Detail
	IRQ
	Cache
	MMU
	Vector
)

// Categories maps config-file option names to their bit.
var Categories = map[string]int{
	"CMD":    Cmd,
	"INST":   Inst,
	"DATA":   Data,
	"DETAIL": Detail,
	"IRQ":    IRQ,
	"CACHE":  Cache,
	"MMU":    MMU,
	"VEC":    Vector,
}

var (
	traceFile io.Writer = os.Stderr
	mask      int
)

// SetMask replaces the process-wide trace mask.
func SetMask(m int) {
	mask = m
}

// Enable ORs category bits into the process-wide trace mask.
func Enable(m int) {
	mask |= m
}

// Enabled reports whether any bit of m is currently active.
func Enabled(m int) bool {
	return mask&m != 0
}

// SetOutput redirects trace output, e.g. to a "trace" config file.
func SetOutput(w io.Writer) {
	if w != nil {
		traceFile = w
	}
}

// Debugf emits a generic trace message tagged with module.
func Debugf(module string, level int, format string, a ...interface{}) {
	if mask&level != 0 {
		fmt.Fprintf(traceFile, module+": "+format+"\n", a...)
	}
}

// HartDebugf emits a trace message tagged with a hart id.
func HartDebugf(hartID int, level int, format string, a ...interface{}) {
	if mask&level != 0 {
		fmt.Fprintf(traceFile, "hart"+strconv.Itoa(hartID)+": "+format+"\n", a...)
	}
}

// DevDebugf emits a trace message tagged with a peripheral's MMIO base
// address, mirroring the teacher's per-device debug channel.
func DevDebugf(base uint64, level int, format string, a ...interface{}) {
	if mask&level != 0 {
		addr := strconv.FormatUint(base, 16)
		fmt.Fprintf(traceFile, "dev@"+addr+": "+format+"\n", a...)
	}
}
