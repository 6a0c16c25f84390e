package mmu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/csr"
	"github.com/rvsim/rviss/emu/memory"
)

const satpModeSv39 = uint64(8) << 60

// setupSv39 lays out a three-level walk entirely inside a small RAM
// window: root page table at PPN 1, level-1 at PPN 2, level-0 at PPN 3,
// all indexed by VPN entry 0 so any vaddr under 4KiB walks through all
// three. The final leaf PPN (0x4000) is never itself read as memory —
// Translate only computes its physical address — so it is free to sit
// outside the backing RAM region.
func setupSv39(t *testing.T, ram *memory.Bus) (rootPPN uint64) {
	t.Helper()
	rootPPN = 1
	level1PPN := uint64(2)
	level0PPN := uint64(3)
	leafDataPPN := uint64(0x4000)

	require.NoError(t, ram.StoreDouble(rootPPN*pageSize, (level1PPN<<10)|0x1))
	require.NoError(t, ram.StoreDouble(level1PPN*pageSize, (level0PPN<<10)|0x1))
	require.NoError(t, ram.StoreDouble(level0PPN*pageSize, (leafDataPPN<<10)|0xf))

	return rootPPN
}

func TestTranslateBareModePassesThrough(t *testing.T) {
	ram := memory.NewBus()
	ram.AddRAM(0, 1<<20)
	f := csr.New(64, true, true)
	u := New(f, ram, 64)
	pa, err := u.Translate(0x1234, Load, csr.Supervisor)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), pa)
}

func TestTranslateSv39WalksThreeLevels(t *testing.T) {
	ram := memory.NewBus()
	ram.AddRAM(0, 1<<16)
	f := csr.New(64, true, true)
	rootPPN := setupSv39(t, ram)
	f.SetRaw(csr.Satp, satpModeSv39|rootPPN)

	u := New(f, ram, 64)
	pa, err := u.Translate(0x123, Load, csr.Supervisor)
	require.NoError(t, err)
	require.Equal(t, uint64(0x4000*pageSize+0x123), pa)
}

func TestTranslateStoreDeniedOnReadOnlyLeaf(t *testing.T) {
	ram := memory.NewBus()
	ram.AddRAM(0, 1<<16)
	f := csr.New(64, true, true)
	rootPPN := uint64(1)
	// Single-level-deep shortcut: make the root entry itself a readable
	// leaf (Sv39 permits a gigapage stop at level 2). PPN 0 keeps the
	// superpage low-order-bits-must-be-zero alignment check trivially
	// satisfied so the fault below is the intended permission check.
	leafPTE := uint64(0x3) // PPN=0, V=1, R=1, W=0, X=0
	require.NoError(t, ram.StoreDouble(rootPPN*pageSize, leafPTE))
	f.SetRaw(csr.Satp, satpModeSv39|rootPPN)

	u := New(f, ram, 64)
	_, err := u.Translate(0x1000, Store, csr.Supervisor)
	require.Error(t, err)
	var me *Error
	require.ErrorAs(t, err, &me)
	require.Equal(t, PageFault, me.Kind)
}

func TestTranslateCachesInTLB(t *testing.T) {
	ram := memory.NewBus()
	ram.AddRAM(0, 1<<16)
	f := csr.New(64, true, true)
	rootPPN := setupSv39(t, ram)
	f.SetRaw(csr.Satp, satpModeSv39|rootPPN)

	u := New(f, ram, 64)
	pa1, err := u.Translate(0x200, Load, csr.Supervisor)
	require.NoError(t, err)
	// Second translation should hit the TLB, not re-walk (same result).
	pa2, err := u.Translate(0x200, Load, csr.Supervisor)
	require.NoError(t, err)
	require.Equal(t, pa1, pa2)
}

func TestFenceVMAFlushesTLB(t *testing.T) {
	ram := memory.NewBus()
	ram.AddRAM(0, 1<<16)
	f := csr.New(64, true, true)
	rootPPN := setupSv39(t, ram)
	f.SetRaw(csr.Satp, satpModeSv39|rootPPN)

	u := New(f, ram, 64)
	_, err := u.Translate(0x300, Load, csr.Supervisor)
	require.NoError(t, err)
	u.FenceVMA()
	for _, e := range u.tlb {
		require.False(t, e.valid)
	}
}
