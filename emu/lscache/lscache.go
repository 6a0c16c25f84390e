/*
rviss - Load/Store Cache.

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

// Package lscache implements the Load/Store Cache: a 256-entry
// direct-mapped virtual-page-to-host-pointer cache that lets hit data
// accesses skip the MMU and bus entirely. A hit dereferences a cached
// host page pointer directly; a miss falls through to the data-memory
// interface and opportunistically installs a DMI mapping for next
// time.
package lscache

import (
	"encoding/binary"

	"github.com/rvsim/rviss/emu/device"
)

const (
	numEntries = 256
	idxBits    = 8
	offsBits   = 12
	offsMask   = (1 << offsBits) - 1
	idxMask    = (1 << idxBits) - 1

	validLoad  = 1 << 0
	validStore = 1 << 1 // implies validLoad, per spec.md §3
)

// entry packs tag + validity bits in one word, plus the cached host
// page slice, mirroring the original's tag-word-plus-pointer layout.
type entry struct {
	tag   uint64 // vaddr bits above [19:12], or 0 if unused
	flags uint8
	page  []byte // host bytes for the full page, indexable by vaddr[11:0]
	base  uint64 // physical page base the host slice corresponds to
}

// Cache is one hart's LSCache.
type Cache struct {
	entries [numEntries]entry
	mem     device.DataMemory
}

// New creates an LSCache fronting mem.
func New(mem device.DataMemory) *Cache {
	return &Cache{mem: mem}
}

func index(vaddr uint64) uint64 { return (vaddr >> offsBits) & idxMask }
func tagOf(vaddr uint64) uint64 { return vaddr >> (offsBits + idxBits) }

func (c *Cache) lookup(vaddr uint64, need uint8) *entry {
	e := &c.entries[index(vaddr)]
	if e.flags&need == need && e.tag == tagOf(vaddr) {
		return e
	}
	return nil
}

// install records a host-page mapping for vaddr's page if mem offers
// one; on refusal (MMIO, no DMI) no entry is written, so every future
// access to that page bypasses the cache, per spec.md §4.3's tie-break
// rule.
func (c *Cache) install(vaddr uint64, addValid uint8) {
	base, host, ok := c.mem.LastDMIPageHostAddr(vaddr)
	if !ok {
		return
	}
	e := &c.entries[index(vaddr)]
	if e.tag != tagOf(vaddr) {
		e.flags = 0
	}
	e.tag = tagOf(vaddr)
	e.base = base
	e.page = host
	e.flags |= addValid
	if addValid&validStore != 0 {
		e.flags |= validLoad
	}
}

func (c *Cache) bypassed() bool {
	return c.mem.IsBusLocked()
}

// LoadByte/LoadHalf/LoadWord/LoadDouble implement spec.md §4.3's
// per-operation contract: bus-lock bypass, hit via host-pointer
// dereference, miss via the underlying memory interface plus
// opportunistic DMI install.
func (c *Cache) LoadByte(vaddr uint64) (uint8, error) {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validLoad); e != nil {
			return e.page[vaddr&offsMask], nil
		}
	}
	v, err := c.mem.LoadByte(vaddr)
	if err != nil {
		return 0, err
	}
	if !c.bypassed() {
		c.install(vaddr, validLoad)
	}
	return v, nil
}

func (c *Cache) LoadHalf(vaddr uint64) (uint16, error) {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validLoad); e != nil {
			off := vaddr & offsMask
			return binary.LittleEndian.Uint16(e.page[off : off+2]), nil
		}
	}
	v, err := c.mem.LoadHalf(vaddr)
	if err != nil {
		return 0, err
	}
	if !c.bypassed() {
		c.install(vaddr, validLoad)
	}
	return v, nil
}

func (c *Cache) LoadWord(vaddr uint64) (uint32, error) {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validLoad); e != nil {
			off := vaddr & offsMask
			return binary.LittleEndian.Uint32(e.page[off : off+4]), nil
		}
	}
	v, err := c.mem.LoadWord(vaddr)
	if err != nil {
		return 0, err
	}
	if !c.bypassed() {
		c.install(vaddr, validLoad)
	}
	return v, nil
}

func (c *Cache) LoadDouble(vaddr uint64) (uint64, error) {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validLoad); e != nil {
			off := vaddr & offsMask
			return binary.LittleEndian.Uint64(e.page[off : off+8]), nil
		}
	}
	v, err := c.mem.LoadDouble(vaddr)
	if err != nil {
		return 0, err
	}
	if !c.bypassed() {
		c.install(vaddr, validLoad)
	}
	return v, nil
}

func (c *Cache) StoreByte(vaddr uint64, v uint8) error {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validStore); e != nil {
			e.page[vaddr&offsMask] = v
			return nil
		}
	}
	if err := c.mem.StoreByte(vaddr, v); err != nil {
		return err
	}
	if !c.bypassed() {
		c.install(vaddr, validStore)
	}
	return nil
}

func (c *Cache) StoreHalf(vaddr uint64, v uint16) error {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validStore); e != nil {
			off := vaddr & offsMask
			binary.LittleEndian.PutUint16(e.page[off:off+2], v)
			return nil
		}
	}
	if err := c.mem.StoreHalf(vaddr, v); err != nil {
		return err
	}
	if !c.bypassed() {
		c.install(vaddr, validStore)
	}
	return nil
}

func (c *Cache) StoreWord(vaddr uint64, v uint32) error {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validStore); e != nil {
			off := vaddr & offsMask
			binary.LittleEndian.PutUint32(e.page[off:off+4], v)
			return nil
		}
	}
	if err := c.mem.StoreWord(vaddr, v); err != nil {
		return err
	}
	if !c.bypassed() {
		c.install(vaddr, validStore)
	}
	return nil
}

func (c *Cache) StoreDouble(vaddr uint64, v uint64) error {
	if !c.bypassed() {
		if e := c.lookup(vaddr, validStore); e != nil {
			off := vaddr & offsMask
			binary.LittleEndian.PutUint64(e.page[off:off+8], v)
			return nil
		}
	}
	if err := c.mem.StoreDouble(vaddr, v); err != nil {
		return err
	}
	if !c.bypassed() {
		c.install(vaddr, validStore)
	}
	return nil
}

// FenceVMA flushes every entry and the underlying memory interface's
// TLB, per spec.md §4.3 ("fence_vma flushes all entries and also
// flushes the TLB held by the memory interface").
func (c *Cache) FenceVMA() {
	c.entries = [numEntries]entry{}
	c.mem.FlushTLB()
}

// Fence is a deliberate no-op: the ISS has no out-of-order execution
// or private caches for FENCE to order against, per the original
// source's own fence() implementation.
func (c *Cache) Fence() {}
