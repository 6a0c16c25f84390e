/*
rviss - Machine-description file component construction.

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

// Package machine registers the component keywords ("hart0", "mem",
// "clint", "plic", "uart0") a machine-description file uses against
// config/configparser, the same way config/debugconfig registered
// "debug" in the teacher: importing this package for its init()
// side effect is what makes those keywords legal in a config file,
// and the registered callbacks accumulate into the package-level
// Current machine description for cmd/rviss to build a Hart from.
package machine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	config "github.com/rvsim/rviss/config/configparser"
	"github.com/rvsim/rviss/emu/decoder"
)

// Machine is the accumulated result of parsing a machine-description
// file: enough to construct a bus, its attached peripherals, and a
// Hart, but none of those are built here — cmd/rviss owns wiring.
type Machine struct {
	XLEN       int
	Extensions decoder.Ext
	HasS       bool
	HasU       bool

	RAMBase uint64
	RAMSize uint64
	HasRAM  bool

	ClintBase uint64
	HasClint  bool

	PlicBase uint64
	HasPlic  bool

	UARTBase uint64
	UARTIRQ  uint32
	UARTIn   string
	HasUART  bool
}

// Current accumulates every line processed by config.LoadConfigFile;
// cmd/rviss reads it once parsing finishes.
var Current = &Machine{}

func init() {
	config.RegisterOption("HART0", setHart)
	config.RegisterModel("MEM", config.TypeModel, setMem)
	config.RegisterModel("CLINT", config.TypeModel, setClint)
	config.RegisterModel("PLIC", config.TypeModel, setPlic)
	config.RegisterModel("UART0", config.TypeModel, setUART)
}

// setHart handles "hart0 rv64imafdc_su".
func setHart(_ uint64, isa string, _ []config.Option) error {
	xlen, ext, hasS, hasU, err := ParseISA(isa)
	if err != nil {
		return err
	}
	Current.XLEN = xlen
	Current.Extensions = ext
	Current.HasS = hasS
	Current.HasU = hasU
	return nil
}

// setMem handles "mem 0x80000000 size=128M".
func setMem(addr uint64, _ string, options []config.Option) error {
	Current.RAMBase = addr
	Current.HasRAM = true
	for _, opt := range options {
		if strings.EqualFold(opt.Name, "size") {
			size, ok := config.ParseSizedNumber(opt.EqualOpt)
			if !ok {
				return fmt.Errorf("mem: invalid size %q", opt.EqualOpt)
			}
			Current.RAMSize = size
		}
	}
	if Current.RAMSize == 0 {
		return errors.New("mem: size= option required")
	}
	return nil
}

// setClint handles "clint 0x02000000".
func setClint(addr uint64, _ string, _ []config.Option) error {
	Current.ClintBase = addr
	Current.HasClint = true
	return nil
}

// setPlic handles "plic 0x0c000000".
func setPlic(addr uint64, _ string, _ []config.Option) error {
	Current.PlicBase = addr
	Current.HasPlic = true
	return nil
}

// setUART handles "uart0 0x10000000 irq=1 in=console.txt".
func setUART(addr uint64, _ string, options []config.Option) error {
	Current.UARTBase = addr
	Current.HasUART = true
	for _, opt := range options {
		switch {
		case strings.EqualFold(opt.Name, "irq"):
			n, err := strconv.ParseUint(opt.EqualOpt, 0, 32)
			if err != nil {
				return fmt.Errorf("uart0: invalid irq %q", opt.EqualOpt)
			}
			Current.UARTIRQ = uint32(n)
		case strings.EqualFold(opt.Name, "in"):
			Current.UARTIn = opt.EqualOpt
		}
	}
	return nil
}

// ParseISA decodes a Linux-style march string ("rv64imafdc_su",
// "rv32ima"): the "rv" prefix, XLEN digits, a run of single-letter
// (or "g" shorthand for "imafd") extension letters, and an optional
// "_" followed by which privilege modes beyond machine are present.
func ParseISA(isa string) (xlen int, ext decoder.Ext, hasS, hasU bool, err error) {
	lower := strings.ToLower(isa)
	if !strings.HasPrefix(lower, "rv") {
		return 0, 0, false, false, fmt.Errorf("isa string must start with rv: %q", isa)
	}
	rest := lower[2:]

	switch {
	case strings.HasPrefix(rest, "32"):
		xlen = 32
		rest = rest[2:]
	case strings.HasPrefix(rest, "64"):
		xlen = 64
		rest = rest[2:]
	default:
		return 0, 0, false, false, fmt.Errorf("isa string must name xlen 32 or 64: %q", isa)
	}

	letters, suffix, _ := strings.Cut(rest, "_")

	ext = decoder.ExtI
	for _, c := range letters {
		switch c {
		case 'i':
		case 'g':
			ext |= decoder.ExtI | decoder.ExtM | decoder.ExtA | decoder.ExtF | decoder.ExtD
		case 'm':
			ext |= decoder.ExtM
		case 'a':
			ext |= decoder.ExtA
		case 'f':
			ext |= decoder.ExtF
		case 'd':
			ext |= decoder.ExtD
		case 'c':
			ext |= decoder.ExtC
		case 'v':
			ext |= decoder.ExtV
		default:
			return 0, 0, false, false, fmt.Errorf("isa string has unknown extension %q: %q", string(c), isa)
		}
	}

	for _, c := range suffix {
		switch c {
		case 's':
			hasS = true
		case 'u':
			hasU = true
		default:
			return 0, 0, false, false, fmt.Errorf("isa string has unknown privilege suffix %q: %q", string(c), isa)
		}
	}
	if hasS {
		ext |= decoder.ExtS
	}
	if hasU {
		ext |= decoder.ExtU
	}

	return xlen, ext, hasS, hasU, nil
}
