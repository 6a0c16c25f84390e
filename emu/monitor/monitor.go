/*
rviss - Interactive debug-target console.

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

// Package monitor implements the debug target spec.md §6 calls for:
// register dump, breakpoint set/clear, single-step and free-run, and
// memory examine, driven from a line-oriented command table the same
// shape as the teacher's command/parser, but answering to a single
// Target instead of a *core.Core. command/reader supplies the
// liner-backed line editor that calls into Dispatch/Complete.
package monitor

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/rvsim/rviss/util/hex"
)

// Target is the subset of a running hart a debug console needs; a
// *cpu.Hart is driven through HartTarget in target.go, which adapts
// the hart's fields and memory to these methods.
type Target interface {
	PC() uint64
	GetX(i int) uint64
	PrivilegeName() string
	Halted() bool
	WFI() bool
	ExitCode() int
	Step() error
	Run(quantum int) error
	SetBreakpoint(addr uint64)
	ClearBreakpoint(addr uint64)
	Breakpoints() []uint64
	ReadByte(addr uint64) (byte, error)
}

// Monitor dispatches command lines against a Target, writing replies
// to Out the same way the teacher's console commands write straight
// to stdout rather than through the slog trace path.
type Monitor struct {
	t   Target
	Out io.Writer
}

// New builds a Monitor driving t, with replies written to out.
func New(t Target, out io.Writer) *Monitor {
	return &Monitor{t: t, Out: out}
}

type cmd struct {
	name     string
	min      int
	process  func(*Monitor, *cmdLine) (bool, error)
	complete func(*cmdLine) []string
}

var cmdList = []cmd{
	{name: "registers", min: 1, process: (*Monitor).cmdRegisters},
	{name: "break", min: 1, process: (*Monitor).cmdBreak},
	{name: "clear", min: 1, process: (*Monitor).cmdClear},
	{name: "step", min: 1, process: (*Monitor).cmdStep},
	{name: "continue", min: 1, process: (*Monitor).cmdContinue},
	{name: "examine", min: 1, process: (*Monitor).cmdExamine},
	{name: "quit", min: 1, process: (*Monitor).cmdQuit},
	{name: "help", min: 1, process: (*Monitor).cmdHelp},
}

type cmdLine struct {
	line string
	pos  int
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool { return l.pos >= len(l.line) }

func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for !l.isEOL() && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}

func matchCommand(c cmd, name string) bool {
	if name == "" || len(name) > len(c.name) {
		return false
	}
	return strings.HasPrefix(c.name, name) && len(name) >= c.min
}

func matchList(name string) []cmd {
	var match []cmd
	for _, c := range cmdList {
		if matchCommand(c, name) {
			match = append(match, c)
		}
	}
	return match
}

// Dispatch executes one command line; quit reports whether the
// console loop should exit.
func (m *Monitor) Dispatch(commandLine string) (quit bool, err error) {
	line := &cmdLine{line: commandLine}
	name := strings.ToLower(line.getWord())
	if name == "" {
		return false, nil
	}

	match := matchList(name)
	switch len(match) {
	case 0:
		return false, fmt.Errorf("command not found: %s", name)
	case 1:
		return match[0].process(m, line)
	default:
		return false, fmt.Errorf("ambiguous command: %s", name)
	}
}

// Complete returns the completions liner should offer for a
// partially-typed command.
func (m *Monitor) Complete(commandLine string) []string {
	line := &cmdLine{line: commandLine}
	name := line.getWord()
	matches := matchList(name)
	out := make([]string, 0, len(matches))
	for _, c := range matches {
		out = append(out, c.name+" ")
	}
	return out
}

func (m *Monitor) cmdRegisters(_ *cmdLine) (bool, error) {
	var b strings.Builder
	for i := 0; i < 32; i += 4 {
		hex.FormatQuad(&b, []uint64{
			m.t.GetX(i), m.t.GetX(i + 1), m.t.GetX(i + 2), m.t.GetX(i + 3),
		})
		b.WriteString(fmt.Sprintf(" x%d-x%d\n", i, i+3))
	}
	fmt.Fprintf(m.Out, "%spc  %016x  priv %s  halted=%v wfi=%v\n",
		b.String(), m.t.PC(), m.t.PrivilegeName(), m.t.Halted(), m.t.WFI())
	return false, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

func (m *Monitor) cmdBreak(line *cmdLine) (bool, error) {
	word := line.getWord()
	addr, err := parseHex(word)
	if err != nil {
		return false, fmt.Errorf("break: invalid address %q", word)
	}
	m.t.SetBreakpoint(addr)
	fmt.Fprintf(m.Out, "breakpoint set at %016x\n", addr)
	return false, nil
}

func (m *Monitor) cmdClear(line *cmdLine) (bool, error) {
	word := line.getWord()
	addr, err := parseHex(word)
	if err != nil {
		return false, fmt.Errorf("clear: invalid address %q", word)
	}
	m.t.ClearBreakpoint(addr)
	fmt.Fprintf(m.Out, "breakpoint cleared at %016x\n", addr)
	return false, nil
}

func (m *Monitor) cmdStep(line *cmdLine) (bool, error) {
	n := 1
	if word := line.getWord(); word != "" {
		parsed, err := strconv.Atoi(word)
		if err != nil {
			return false, fmt.Errorf("step: invalid count %q", word)
		}
		n = parsed
	}
	for i := 0; i < n; i++ {
		if err := m.t.Step(); err != nil {
			return false, err
		}
		if m.t.Halted() {
			break
		}
	}
	fmt.Fprintf(m.Out, "pc=%016x\n", m.t.PC())
	return false, nil
}

func (m *Monitor) cmdContinue(_ *cmdLine) (bool, error) {
	err := m.t.Run(0)
	fmt.Fprintf(m.Out, "stopped at pc=%016x halted=%v\n", m.t.PC(), m.t.Halted())
	return false, err
}

func (m *Monitor) cmdExamine(line *cmdLine) (bool, error) {
	addrWord := line.getWord()
	addr, err := parseHex(addrWord)
	if err != nil {
		return false, fmt.Errorf("examine: invalid address %q", addrWord)
	}
	n := 16
	if word := line.getWord(); word != "" {
		parsed, err := strconv.Atoi(word)
		if err != nil {
			return false, fmt.Errorf("examine: invalid length %q", word)
		}
		n = parsed
	}
	data := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := m.t.ReadByte(addr + uint64(i))
		if err != nil {
			return false, err
		}
		data = append(data, b)
	}
	fmt.Fprintln(m.Out, hex.DumpLine(addr, data))
	return false, nil
}

func (m *Monitor) cmdQuit(_ *cmdLine) (bool, error) {
	return true, nil
}

func (m *Monitor) cmdHelp(_ *cmdLine) (bool, error) {
	fmt.Fprintln(m.Out, "registers | break <hex> | clear <hex> | step [n] | continue | examine <hex> [n] | quit")
	return false, nil
}
