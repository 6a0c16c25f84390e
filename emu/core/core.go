/*
rviss - Cooperative per-hart scheduler loop.

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

// Package core runs one hart's interpreter loop on its own goroutine,
// the same run/stop/packet shape as the teacher's emu/core: a running
// flag toggled by Start/Stop messages, a bounded quantum per
// scheduling slice so the loop can notice a shutdown request or an
// external interrupt without running forever inside cpu.Hart.Run, and
// a panic recovery boundary converting a host-side invariant
// violation into a fatal log plus shutdown rather than letting it
// crash the whole process silently.
package core

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rvsim/rviss/emu/cpu"
)

// Msg is the kind of control packet sent to a running Core.
type Msg int

const (
	MsgStart Msg = iota
	MsgStop
)

// Packet is one control-channel message.
type Packet struct {
	Msg Msg
}

// DefaultQuantum bounds how many instructions Run executes before the
// scheduler loop checks for a pending control packet, matching the
// teacher's per-slice CycleCPU/event.Advance split.
const DefaultQuantum = 10000

// Core owns one Hart's goroutine.
type Core struct {
	wg      sync.WaitGroup
	done    chan struct{}
	control chan Packet
	running bool

	Hart    *cpu.Hart
	Quantum int
}

// New builds a Core around hart, not yet running.
func New(hart *cpu.Hart) *Core {
	return &Core{
		Hart:    hart,
		Quantum: DefaultQuantum,
		done:    make(chan struct{}),
		control: make(chan Packet, 4),
	}
}

// Start runs the scheduler loop until Stop is called; call it with
// `go`, mirroring the teacher's `go cpu.Start()`.
func (c *Core) Start() {
	c.wg.Add(1)
	defer c.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("core: hart panicked, shutting down", "hart", c.Hart.Cfg.Hart, "panic", r)
		}
	}()

	for {
		if c.running && !c.Hart.Halted {
			if c.Hart.Timer != nil {
				c.Hart.Timer.UpdateAndGetMtime()
			}
			err := c.Hart.Run(c.Quantum)
			if errors.Is(err, cpu.ErrBreakpoint) {
				slog.Info("core: breakpoint hit", "hart", c.Hart.Cfg.Hart, "pc", c.Hart.PC)
				c.running = false
			} else if err != nil {
				slog.Error("core: hart run error", "hart", c.Hart.Cfg.Hart, "error", err)
				c.running = false
			}
		}

		select {
		case <-c.done:
			slog.Info("core: shutdown", "hart", c.Hart.Cfg.Hart)
			return
		case packet := <-c.control:
			c.process(packet)
		default:
			if !c.running || c.Hart.Halted {
				// Nothing to do until the next control packet; avoid a
				// tight spin when idle or halted.
				select {
				case <-c.done:
					return
				case packet := <-c.control:
					c.process(packet)
				}
			}
		}
	}
}

func (c *Core) process(p Packet) {
	switch p.Msg {
	case MsgStart:
		c.running = true
	case MsgStop:
		c.running = false
	}
}

// Send posts a control packet to the running Core.
func (c *Core) Send(p Packet) {
	c.control <- p
}

// Stop signals the loop to exit and waits (bounded) for it to return.
func (c *Core) Stop() {
	close(c.done)
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("core: timed out waiting for hart to stop", "hart", c.Hart.Cfg.Hart)
	}
}
