/*
rviss - Main process.

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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	config "github.com/rvsim/rviss/config/configparser"
	"github.com/rvsim/rviss/config/machine"
	_ "github.com/rvsim/rviss/config/traceconfig"
	"github.com/rvsim/rviss/emu/clint"
	"github.com/rvsim/rviss/emu/core"
	"github.com/rvsim/rviss/emu/cpu"
	"github.com/rvsim/rviss/emu/memory"
	"github.com/rvsim/rviss/emu/monitor"
	"github.com/rvsim/rviss/emu/plic"
	rvsyscall "github.com/rvsim/rviss/emu/syscall"
	"github.com/rvsim/rviss/emu/uart"
	"github.com/rvsim/rviss/util/logger"

	reader "github.com/rvsim/rviss/command/reader"
)

// Logger is the process-wide slog default, wrapping util/logger the
// same way the teacher's main.go does.
var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "rviss.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optEntry := getopt.Uint64Long("entry", 'e', 0, "Entry PC")
	optHosted := getopt.BoolLong("hosted", 's', "Intercept ECALL as a Linux-style syscall emulator")
	optHeadless := getopt.BoolLong("headless-wfi", 'w', "Make wfi a no-op, for benchmarking without an interrupt source")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "unable to create log file: "+err.Error())
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(Logger)

	Logger.Info("rviss started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		Logger.Error("configuration file not found", "path", *optConfig)
		os.Exit(1)
	}

	if err := config.LoadConfigFile(*optConfig); err != nil {
		Logger.Error("configuration error", "error", err.Error())
		os.Exit(1)
	}

	hart, c, err := buildMachine(*optEntry, *optHosted, *optHeadless)
	if err != nil {
		Logger.Error("machine build error", "error", err.Error())
		os.Exit(1)
	}

	go c.Start()
	c.Send(core.Packet{Msg: core.MsgStart})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mon := monitor.New(&monitor.HartTarget{Hart: hart}, os.Stdout)

	consoleDone := make(chan struct{})
	go func() {
		reader.ConsoleReader(mon)
		close(consoleDone)
	}()

	select {
	case <-sigChan:
		Logger.Info("received interrupt signal")
	case <-consoleDone:
		Logger.Info("console exited")
	}

	Logger.Info("shutting down hart")
	c.Stop()
	Logger.Info("rviss stopped", "exit_code", hart.ExitCode)
	os.Exit(hart.ExitCode)
}

// buildMachine turns the accumulated config/machine.Current machine
// description into a wired Bus, CLINT, PLIC, UART, Hart and Core,
// the construction step the teacher's main.go leaves to
// syschannel.InitializeChannels/ResetChannels for the S/370 platform.
func buildMachine(entry uint64, hosted, headlessWFI bool) (*cpu.Hart, *core.Core, error) {
	m := machine.Current
	if !m.HasRAM {
		return nil, nil, fmt.Errorf("no mem line in configuration file")
	}
	if m.XLEN == 0 {
		return nil, nil, fmt.Errorf("no hart0 line in configuration file")
	}

	bus := memory.NewBus()
	bus.AddRAM(m.RAMBase, m.RAMSize)

	cfg := cpu.Config{
		XLEN:        m.XLEN,
		Extensions:  m.Extensions,
		HasS:        m.HasS,
		HasU:        m.HasU,
		Hart:        0,
		EntryPC:     entry,
		HeadlessWFI: headlessWFI,
	}
	hart := cpu.New(cfg, bus, bus)

	if m.HasClint {
		cl := clint.New(m.ClintBase)
		cl.AttachHart(0, hart.CSR)
		bus.AddDevice(cl)
		hart.Timer = cl
	}

	if m.HasPlic {
		pl := plic.New(m.PlicBase, hart)
		bus.AddDevice(pl)
		if m.HasUART && m.UARTIRQ != 0 {
			u := uart.New(m.UARTBase, 0x1000, os.Stdout, uartInput(m.UARTIn), m.UARTIRQ, pl)
			bus.AddDevice(u)
		}
	} else if m.HasUART {
		u := uart.New(m.UARTBase, 0x1000, os.Stdout, uartInput(m.UARTIn), 0, nil)
		bus.AddDevice(u)
	}

	if hosted {
		hart.Syscall = rvsyscall.New(m.RAMBase+m.RAMSize, bus, os.Stdout, os.Stderr, os.Stdin)
	}

	return hart, core.New(hart), nil
}

// uartInput opens path for the UART's receive side, falling back to
// an always-empty reader ("in=" was not given in the config file).
func uartInput(path string) *os.File {
	if path == "" {
		if f, err := os.Open(os.DevNull); err == nil {
			return f
		}
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		Logger.Warn("unable to open uart input file, console input disabled", "path", path, "error", err.Error())
		if f, err := os.Open(os.DevNull); err == nil {
			return f
		}
		return nil
	}
	return f
}
