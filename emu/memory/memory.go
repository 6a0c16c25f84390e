/*
rviss - Low level memory

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

// Package memory implements the Bus: a flat byte-addressed physical
// address space made of a RAM region plus any number of memory-mapped
// devices, reachable after MMU translation. It implements both
// device.InstrMemory and device.DataMemory, and is the only component
// that may expose a DMI host pointer.
package memory

import (
	"sync"

	"github.com/rvsim/rviss/emu/device"
)

const pageSize = 4096
const pageMask = pageSize - 1

// Region is one contiguous RAM range backing the bus.
type Region struct {
	Base uint64
	Data []byte
}

func (r *Region) contains(paddr uint64) bool {
	return paddr >= r.Base && paddr < r.Base+uint64(len(r.Data))
}

// Bus is the platform's physical address space.
type Bus struct {
	mu      sync.Mutex
	ram     []Region
	devices []device.MMIODevice

	locked       bool
	reservations map[int]reservation
}

type reservation struct {
	addr    uint64
	valid   bool
	counter int
}

// ReservationBound is the countdown value Reserve stores with a new
// reservation. No bus transaction decrements it, so a reservation lasts
// until a store to its address, an SC, or ClearReservation.
const ReservationBound = 1 << 20

// NewBus creates an empty bus; call AddRAM/AddDevice to populate it.
func NewBus() *Bus {
	return &Bus{reservations: make(map[int]reservation)}
}

// AddRAM installs a RAM region of size bytes starting at base.
func (b *Bus) AddRAM(base uint64, size uint64) *Region {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := Region{Base: base, Data: make([]byte, size)}
	b.ram = append(b.ram, r)
	return &b.ram[len(b.ram)-1]
}

// AddDevice registers a memory-mapped peripheral on the bus.
func (b *Bus) AddDevice(dev device.MMIODevice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, dev)
}

func (b *Bus) findRAM(paddr uint64) *Region {
	for i := range b.ram {
		if b.ram[i].contains(paddr) {
			return &b.ram[i]
		}
	}
	return nil
}

func (b *Bus) findDevice(paddr uint64) device.MMIODevice {
	for _, d := range b.devices {
		if paddr >= d.Base() && paddr < d.Base()+d.Size() {
			return d
		}
	}
	return nil
}

// loadN reads n little-endian bytes at paddr, from RAM or an MMIO
// device, and reports ErrAccessFault for addresses backed by neither.
func (b *Bus) loadN(paddr uint64, n int) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.findRAM(paddr); r != nil {
		off := paddr - r.Base
		var v uint64
		for i := 0; i < n; i++ {
			v |= uint64(r.Data[off+uint64(i)]) << (8 * i)
		}
		return v, nil
	}
	if d := b.findDevice(paddr); d != nil {
		v, err := d.ReadReg(paddr-d.Base(), n)
		return v, err
	}
	return 0, device.ErrAccessFault
}

func (b *Bus) storeN(paddr uint64, n int, v uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.findRAM(paddr); r != nil {
		off := paddr - r.Base
		for i := 0; i < n; i++ {
			r.Data[off+uint64(i)] = byte(v >> (8 * i))
		}
		b.invalidateReservations(paddr, uint64(n))
		return nil
	}
	if d := b.findDevice(paddr); d != nil {
		return d.WriteReg(paddr-d.Base(), n, v)
	}
	return device.ErrAccessFault
}

// invalidateReservations clears any hart's LR/SC reservation covering
// [paddr, paddr+n) — called whenever any store lands on the bus, per
// spec.md §5's "any other hart's store to the reserved address...
// clears the reservation" rule. Caller holds b.mu.
func (b *Bus) invalidateReservations(paddr, n uint64) {
	for hart, res := range b.reservations {
		if res.valid && paddr < res.addr+8 && res.addr < paddr+n {
			res.valid = false
			b.reservations[hart] = res
		}
	}
}

func (b *Bus) LoadByte(paddr uint64) (uint8, error) {
	v, err := b.loadN(paddr, 1)
	return uint8(v), err
}

func (b *Bus) LoadHalf(paddr uint64) (uint16, error) {
	v, err := b.loadN(paddr, 2)
	return uint16(v), err
}

func (b *Bus) LoadWord(paddr uint64) (uint32, error) {
	v, err := b.loadN(paddr, 4)
	return uint32(v), err
}

func (b *Bus) LoadDouble(paddr uint64) (uint64, error) {
	return b.loadN(paddr, 8)
}

func (b *Bus) StoreByte(paddr uint64, v uint8) error  { return b.storeN(paddr, 1, uint64(v)) }
func (b *Bus) StoreHalf(paddr uint64, v uint16) error { return b.storeN(paddr, 2, uint64(v)) }
func (b *Bus) StoreWord(paddr uint64, v uint32) error { return b.storeN(paddr, 4, uint64(v)) }
func (b *Bus) StoreDouble(paddr uint64, v uint64) error {
	return b.storeN(paddr, 8, v)
}

// LoadInstr fetches one 32-bit-aligned-or-not instruction word; fetch
// uses the same backing store as data, RISC-V has a unified address
// space.
func (b *Bus) LoadInstr(paddr uint64) (uint32, error) {
	return b.LoadWord(paddr)
}

// LastDMIPageHostAddr exposes a direct host-memory pointer to the page
// containing paddr when it falls entirely inside one RAM region;
// MMIO devices never participate in DMI.
func (b *Bus) LastDMIPageHostAddr(paddr uint64) (uint64, []byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := paddr &^ pageMask
	r := b.findRAM(base)
	if r == nil || !r.contains(base+pageMask) {
		return 0, nil, false
	}
	off := base - r.Base
	return base, r.Data[off : off+pageSize], true
}

// IsBusLocked reports whether any hart currently holds the bus lock
// for an in-progress LR/SC sequence.
func (b *Bus) IsBusLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

func (b *Bus) AtomicLock() {
	b.mu.Lock()
	b.locked = true
	b.mu.Unlock()
}

func (b *Bus) AtomicUnlock() {
	b.mu.Lock()
	b.locked = false
	b.mu.Unlock()
}

// Reserve records hart's LR reservation on the line containing addr.
func (b *Bus) Reserve(hart int, addr uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservations[hart] = reservation{addr: addr &^ 7, valid: true, counter: ReservationBound}
}

// CheckAndClearReservation reports whether hart's reservation on addr
// is still valid, then clears it regardless (SC always consumes the
// reservation, successful or not).
func (b *Bus) CheckAndClearReservation(hart int, addr uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, ok := b.reservations[hart]
	delete(b.reservations, hart)
	return ok && res.valid && res.addr == addr&^7
}

// ClearReservation drops hart's reservation unconditionally, called
// on trap entry per spec.md §5.
func (b *Bus) ClearReservation(hart int) {
	b.mu.Lock()
	delete(b.reservations, hart)
	b.mu.Unlock()
}

// FlushTLB is a no-op on the bus itself: it holds no virtual-address
// state, but satisfies device.DataMemory for callers that flush
// through the bus after the MMU's own TLB flush.
func (b *Bus) FlushTLB() {}
