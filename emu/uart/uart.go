/*
rviss - UART device model.

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

// Package uart implements a minimal 16550-ish byte-oriented console
// UART, grounded on the original's platform/microrv32/microrv32_uart.h:
// a transmit-data register that writes straight to an io.Writer, a
// receive FIFO fed from an io.Reader, and a status register the guest
// polls for TX-ready/RX-ready. It deliberately offers no DMI mapping,
// per spec.md's "never cached by LSCache" requirement for MMIO.
package uart

import (
	"bufio"
	"io"
	"sync"

	"github.com/rvsim/rviss/emu/device"
	"github.com/rvsim/rviss/emu/plic"
)

const (
	regTXData = 0x00
	regRXData = 0x04
	regStatus = 0x08

	statusTxReady = 1 << 0
	statusRxReady = 1 << 1
)

// UART is one console device; Base/Size are fixed at construction and
// it exposes itself as an emu/device.MMIODevice.
type UART struct {
	mu      sync.Mutex
	base    uint64
	size    uint64
	out     io.Writer
	in      *bufio.Reader
	rxBuf   []byte
	irqLine uint32
	plic    *plic.PLIC
}

// New creates a UART at base/size, writing transmitted bytes to out
// and pulling received bytes from in. irqLine, if non-zero and plic
// is non-nil, is raised whenever the receive FIFO is non-empty.
func New(base, size uint64, out io.Writer, in io.Reader, irqLine uint32, p *plic.PLIC) *UART {
	return &UART{base: base, size: size, out: out, in: bufio.NewReader(in), irqLine: irqLine, plic: p}
}

func (u *UART) Base() uint64 { return u.base }
func (u *UART) Size() uint64 { return u.size }
func (u *UART) Shutdown()    {}

func (u *UART) ReadReg(offset uint64, width int) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch offset {
	case regRXData:
		if len(u.rxBuf) == 0 {
			u.fillLocked()
		}
		if len(u.rxBuf) == 0 {
			return 0, nil
		}
		b := u.rxBuf[0]
		u.rxBuf = u.rxBuf[1:]
		u.updateIRQLocked()
		return uint64(b), nil
	case regStatus:
		u.fillLocked()
		var s uint64 = statusTxReady
		if len(u.rxBuf) > 0 {
			s |= statusRxReady
		}
		return s, nil
	}
	return 0, device.ErrAccessFault
}

func (u *UART) WriteReg(offset uint64, width int, value uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch offset {
	case regTXData:
		if u.out != nil {
			_, _ = u.out.Write([]byte{byte(value)})
		}
		return nil
	case regStatus:
		return nil
	}
	return device.ErrAccessFault
}

// fillLocked attempts to top up rxBuf with every byte currently
// available without blocking past what the underlying reader already
// has buffered; a real terminal-backed reader is expected to be set
// non-blocking by the caller (cmd/rviss wires a raw-mode reader in) so
// this never stalls the hart waiting on console input.
func (u *UART) fillLocked() {
	for {
		b, err := u.in.ReadByte()
		if err != nil {
			break
		}
		u.rxBuf = append(u.rxBuf, b)
		if u.in.Buffered() == 0 {
			break
		}
	}
	u.updateIRQLocked()
}

func (u *UART) updateIRQLocked() {
	if u.plic == nil || u.irqLine == 0 {
		return
	}
	if len(u.rxBuf) > 0 {
		u.plic.Raise(u.irqLine)
	} else {
		u.plic.Lower(u.irqLine)
	}
}
