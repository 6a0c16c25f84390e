/*
rviss - Dynamic Basic-Block Cache.

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

// Package dbbcache implements the Dynamic Basic-Block Cache: it
// memoizes fetch/decode work into Blocks of Entries and drives the
// interpreter's fast/medium/slow dispatch regimes. Blocks live in a
// map the cache owns; Entries refer to other Blocks through plain
// integer handles (indices), never pointers, so invalidation is a
// coherence-counter bump rather than a graph walk — the "map owns
// Blocks, store handles" pattern from the design notes on breaking
// cyclic Block<->Entry graphs.
package dbbcache

import "github.com/rvsim/rviss/emu/decoder"

// noLink marks an absent Block handle or dynamic-jump target.
const noLink = -1

// linkCacheSize bounds each Block's dynamic-jump link cache and the
// process-wide trap-entry link cache.
const linkCacheSize = 8

// Entry is one decoded instruction.
type Entry struct {
	PC       uint64
	Word     uint32
	Op       decoder.OpId
	View     decoder.View
	PCIncr   uint8
	CycleRaw uint64 // cumulative cycles relative to block start
	Link     int32  // handle of the Block a taken branch/jump from here lands in, or noLink
	Abort    bool   // true only for the terminal sentinel entry
}

// linkSlot is one entry of a Block's bounded dynamic-jump cache.
type linkSlot struct {
	targetPC uint64
	block    int32
	used     bool
}

// Block is a dynamically grown straight-line fragment of Entries.
type Block struct {
	StartPC   uint64
	Entries   []Entry
	Coherence uint64
	dynLinks  [linkCacheSize]linkSlot
	dynNext   int
}

// Cache is one hart's DBBCache.
type Cache struct {
	blocks   []Block
	blockMap map[uint64]int32

	coherence uint64
	trapLinks [linkCacheSize]linkSlot
	trapNext  int

	fetch func(pc uint64) (uint32, error)
	avail decoder.Ext

	cycleTable map[decoder.OpId]uint32

	curBlock      int32
	curIdx        int
	forceSlow     bool
	fast          bool
	dummy         bool
	dummyPC       uint64
	compressedC   bool // whether C extension is configured (alignment rule)
	RawCycles     uint64
}

// DefaultCycleTable is spec.md §6's documented default: memory-access
// = 4, multiply/divide = 8, everything else = 1. Implementations are
// free to override it, which New's cycleTable parameter allows.
func DefaultCycleTable() map[decoder.OpId]uint32 {
	t := map[decoder.OpId]uint32{}
	mem := []decoder.OpId{
		decoder.OpLB, decoder.OpLH, decoder.OpLW, decoder.OpLBU, decoder.OpLHU,
		decoder.OpLWU, decoder.OpLD, decoder.OpSB, decoder.OpSH, decoder.OpSW, decoder.OpSD,
		decoder.OpFLW, decoder.OpFLD, decoder.OpFSW, decoder.OpFSD,
	}
	for _, op := range mem {
		t[op] = 4
	}
	muldiv := []decoder.OpId{
		decoder.OpMUL, decoder.OpMULH, decoder.OpMULHSU, decoder.OpMULHU,
		decoder.OpDIV, decoder.OpDIVU, decoder.OpREM, decoder.OpREMU,
		decoder.OpMULW, decoder.OpDIVW, decoder.OpDIVUW, decoder.OpREMW, decoder.OpREMUW,
	}
	for _, op := range muldiv {
		t[op] = 8
	}
	return t
}

// New creates a DBBCache. fetch performs one instruction-word fetch
// (through the MMU/bus) for a given PC. cycleTable may be nil, in
// which case DefaultCycleTable is used.
func New(fetch func(pc uint64) (uint32, error), avail decoder.Ext, compressed bool, cycleTable map[decoder.OpId]uint32) *Cache {
	if cycleTable == nil {
		cycleTable = DefaultCycleTable()
	}
	c := &Cache{
		blockMap:    make(map[uint64]int32),
		fetch:       fetch,
		avail:       avail,
		cycleTable:  cycleTable,
		curBlock:    noLink,
		compressedC: compressed,
	}
	for i := range c.trapLinks {
		c.trapLinks[i].block = noLink
	}
	return c
}

func (c *Cache) cycleCost(op decoder.OpId) uint64 {
	if v, ok := c.cycleTable[op]; ok {
		return uint64(v)
	}
	return 1
}

// blockAt returns the handle of the Block whose start PC is pc,
// creating (fetching/decoding) it if absent.
func (c *Cache) blockAt(pc uint64) (int32, error) {
	if h, ok := c.blockMap[pc]; ok {
		return h, nil
	}
	return c.buildBlock(pc)
}

// buildBlock performs a full fetch/decode straight-line run starting
// at pc, stopping at the first control-transfer operation (inclusive)
// or decode failure, and appends a terminal sentinel entry.
func (c *Cache) buildBlock(pc uint64) (int32, error) {
	b := Block{StartPC: pc, Coherence: c.coherence}
	for i := range b.dynLinks {
		b.dynLinks[i].block = noLink
	}

	cur := pc
	var cycles uint64
	for {
		word, err := c.fetch(cur)
		if err != nil {
			if len(b.Entries) == 0 {
				return noLink, err
			}
			break
		}
		op, view := decoder.Decode(word, c.avail)
		incr := uint8(view.Length)
		cycles += c.cycleCost(op)
		e := Entry{PC: cur, Word: word, Op: op, View: view, PCIncr: incr, CycleRaw: cycles, Link: noLink}
		b.Entries = append(b.Entries, e)
		if isControlTransfer(op) || op == decoder.OpUndef {
			break
		}
		cur += uint64(incr)
	}
	b.Entries = append(b.Entries, Entry{PC: cur + uint64(lastIncr(b.Entries)), Op: decoder.OpUndef, Abort: true, Link: noLink, CycleRaw: cycles})

	handle := int32(len(c.blocks))
	c.blocks = append(c.blocks, b)
	c.blockMap[pc] = handle
	return handle, nil
}

func lastIncr(entries []Entry) uint64 {
	if len(entries) == 0 {
		return 0
	}
	return uint64(entries[len(entries)-1].PCIncr)
}

func isControlTransfer(op decoder.OpId) bool {
	switch op {
	case decoder.OpJAL, decoder.OpJALR,
		decoder.OpBEQ, decoder.OpBNE, decoder.OpBLT, decoder.OpBGE, decoder.OpBLTU, decoder.OpBGEU,
		decoder.OpECALL, decoder.OpEBREAK, decoder.OpMRET, decoder.OpSRET, decoder.OpWFI,
		decoder.OpFENCE, decoder.OpFENCEI, decoder.OpSFENCEVMA:
		return true
	}
	return false
}

// Dispatch is the label+state pair the cache hands the interpreter:
// either a real decoded Entry, or a terminal/dummy signal.
type Dispatch struct {
	Entry   Entry
	InBlock bool // false only in dummy-block mode
}

// Next advances to and returns the next Entry for execution,
// performing the fast/medium/slow classification described in
// spec.md §4.4. It is the single entry point the interpreter calls
// once per retired instruction.
func (c *Cache) Next(pc uint64) (Dispatch, error) {
	if c.dummy {
		return c.slowPath(pc)
	}
	if c.fast && !c.forceSlow {
		d, err := c.fastPath()
		if d.Entry.Abort || d.Entry.PC != pc {
			// Ran onto the terminal sentinel, or a Block switch left
			// the cursor on the target's first Entry: resolve pc in full.
			return c.slowPath(pc)
		}
		return d, err
	}
	return c.mediumPath(pc)
}

func (c *Cache) fastPath() (Dispatch, error) {
	c.curIdx++
	b := &c.blocks[c.curBlock]
	e := b.Entries[c.curIdx]
	c.RawCycles = e.CycleRaw
	if e.Abort {
		c.fast = false
	}
	return Dispatch{Entry: e, InBlock: true}, nil
}

// mediumPath checks coherence/bounds before deciding whether to
// re-enter fast or fall to slow.
func (c *Cache) mediumPath(pc uint64) (Dispatch, error) {
	if c.forceSlow {
		c.forceSlow = false
		return c.slowPath(pc)
	}
	if c.curBlock == noLink {
		return c.slowPath(pc)
	}
	b := &c.blocks[c.curBlock]
	if b.Coherence != c.coherence {
		return c.slowPath(pc)
	}
	if c.curIdx+1 >= len(b.Entries) {
		return c.slowPath(pc)
	}
	c.curIdx++
	e := b.Entries[c.curIdx]
	if e.PC != pc {
		return c.slowPath(pc)
	}
	c.fast = true
	c.RawCycles = e.CycleRaw
	return Dispatch{Entry: e, InBlock: true}, nil
}

// slowPath performs full fetch/decode: find the Block that starts at
// pc or build a new one there, repair it if its coherence snapshot is
// stale, and resume at its first Entry. A pc that is not the start of
// any known Block gets a new Block starting at pc; dummy mode is
// entered only when that Block cannot be built because the fetch at
// pc fails.
func (c *Cache) slowPath(pc uint64) (Dispatch, error) {
	c.dummy = false
	handle, ok := c.blockMap[pc]
	if !ok {
		h, err := c.buildBlock(pc)
		if err != nil {
			c.dummy = true
			c.dummyPC = pc
			return Dispatch{InBlock: false}, err
		}
		handle = h
	} else {
		b := &c.blocks[handle]
		if b.Coherence != c.coherence {
			if err := c.repair(handle); err != nil {
				return Dispatch{InBlock: false}, err
			}
		}
	}
	c.curBlock = handle
	c.curIdx = 0
	c.fast = true
	b := &c.blocks[handle]
	c.RawCycles = b.Entries[0].CycleRaw
	return Dispatch{Entry: b.Entries[0], InBlock: true}, nil
}

// repair walks every Entry re-fetching its memory word; on any
// mismatch it invalidates all of the Block's outgoing links and
// re-decodes each Entry whose word changed, per spec.md §4.4's
// whole-block repair policy. The terminal sentinel holds no fetched
// word and is skipped; PCIncr and the Block's length are kept.
func (c *Cache) repair(handle int32) error {
	b := &c.blocks[handle]
	for i := range b.Entries {
		if b.Entries[i].Abort {
			continue
		}
		word, err := c.fetch(b.Entries[i].PC)
		if err != nil {
			return err
		}
		if word != b.Entries[i].Word {
			for j := range b.Entries {
				b.Entries[j].Link = noLink
			}
			for k := range b.dynLinks {
				b.dynLinks[k].block = noLink
			}
			op, view := decoder.Decode(word, c.avail)
			b.Entries[i].Word = word
			b.Entries[i].Op = op
			b.Entries[i].View = view
		}
	}
	b.Coherence = c.coherence
	return nil
}

// BranchNotTaken is a no-op state transition; present for symmetry
// with BranchTaken/Jump and the interpreter's uniform call shape.
func (c *Cache) BranchNotTaken(pc uint64) {}

// BranchTaken/Jump handle a static control transfer: reuse the
// originating Entry's link if valid, else compute the target, look up
// or build its Block, and install the link.
func (c *Cache) BranchTaken(curPC uint64, offset int64) (uint64, error) {
	target := uint64(int64(curPC) + offset)
	if err := c.checkAlignment(target); err != nil {
		return target, err
	}
	b := &c.blocks[c.curBlock]
	e := &b.Entries[c.curIdx]
	if e.Link != noLink {
		c.curBlock = e.Link
		c.curIdx = 0
		c.fast = true
		return target, nil
	}
	handle, err := c.blockAt(target)
	if err != nil {
		return target, err
	}
	e.Link = handle
	c.curBlock = handle
	c.curIdx = 0
	c.fast = true
	return target, nil
}

func (c *Cache) checkAlignment(target uint64) error {
	if c.compressedC {
		if target&1 != 0 {
			return ErrMisaligned
		}
		return nil
	}
	if target&3 != 0 {
		return ErrMisaligned
	}
	return nil
}

// JumpDyn handles JALR-style dynamic targets via the Block's small
// dynamic-jump link cache.
func (c *Cache) JumpDyn(target uint64) (uint64, error) {
	if err := c.checkAlignment(target); err != nil {
		return target, err
	}
	if c.curBlock != noLink {
		b := &c.blocks[c.curBlock]
		for i := range b.dynLinks {
			if b.dynLinks[i].block != noLink && b.dynLinks[i].targetPC == target {
				c.curBlock = b.dynLinks[i].block
				c.curIdx = 0
				c.fast = true
				return target, nil
			}
		}
		handle, err := c.blockAt(target)
		if err != nil {
			return target, err
		}
		slot := b.dynNext % linkCacheSize
		b.dynLinks[slot] = linkSlot{targetPC: target, block: handle, used: true}
		b.dynNext++
		c.curBlock = handle
		c.curIdx = 0
		c.fast = true
		return target, nil
	}
	handle, err := c.blockAt(target)
	if err != nil {
		return target, err
	}
	c.curBlock = handle
	c.curIdx = 0
	c.fast = true
	return target, nil
}

// FenceI/FenceVMA bump the global coherence counter and drop to slow
// path, per spec.md §4.4.
func (c *Cache) FenceI() {
	c.coherence++
	c.fast = false
	c.forceSlow = true
}

func (c *Cache) FenceVMA() {
	c.FenceI()
}

// EnterTrap consults the process-wide trap-entry link cache.
func (c *Cache) EnterTrap(pc uint64) (uint64, error) {
	for i := range c.trapLinks {
		if c.trapLinks[i].block != noLink && c.trapLinks[i].targetPC == pc {
			c.curBlock = c.trapLinks[i].block
			c.curIdx = 0
			c.fast = true
			return pc, nil
		}
	}
	handle, err := c.blockAt(pc)
	if err != nil {
		return pc, err
	}
	slot := c.trapNext % linkCacheSize
	c.trapLinks[slot] = linkSlot{targetPC: pc, block: handle, used: true}
	c.trapNext++
	c.curBlock = handle
	c.curIdx = 0
	c.fast = true
	return pc, nil
}

// RetTrap switches to dummy-block mode at pc: the handler's Block
// stays cached but isn't re-entered through the fast path until
// control naturally reaches its start again.
func (c *Cache) RetTrap(pc uint64) {
	c.dummy = true
	c.dummyPC = pc
	c.fast = false
}

// ForceSlowPath arms the slow-path flag; called for external wake
// events (interrupt pending, debug, AMOs, ECALL, EBREAK, WFI, xret,
// certain CSR writes) per spec.md §4.5.
func (c *Cache) ForceSlowPath() {
	c.forceSlow = true
}

// ErrMisaligned signals EXC_INSTR_ADDR_MISALIGNED to the interpreter.
var ErrMisaligned = misalignedErr{}

type misalignedErr struct{}

func (misalignedErr) Error() string { return "misaligned instruction address" }
