package dbbcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/decoder"
)

// program is a tiny fixed instruction stream keyed by PC, used to back
// the fetch closure in every test below.
func program() map[uint64]uint32 {
	return map[uint64]uint32{
		0x1000: 0x00000013, // addi x0,x0,0   (ADDI, straight-line)
		0x1004: 0x00000013, // addi x0,x0,0
		0x1008: 0x00000063, // beq x0,x0,0    (control transfer, ends block)
		0x100c: 0x00000013, // addi x0,x0,0   (branch target landing pad)
		0x1010: 0x00000013,
	}
}

func fetcher(words map[uint64]uint32) func(uint64) (uint32, error) {
	return func(pc uint64) (uint32, error) {
		if w, ok := words[pc]; ok {
			return w, nil
		}
		return 0, errNoInstr
	}
}

type fetchErr struct{}

func (fetchErr) Error() string { return "no instruction at pc" }

var errNoInstr = fetchErr{}

func TestBuildBlockStopsAtControlTransfer(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	handle, err := c.blockAt(0x1000)
	require.NoError(t, err)

	b := c.blocks[handle]
	// ADDI, ADDI, BEQ, then the terminal sentinel.
	require.Len(t, b.Entries, 4)
	require.Equal(t, decoder.OpADDI, b.Entries[0].Op)
	require.Equal(t, decoder.OpADDI, b.Entries[1].Op)
	require.Equal(t, decoder.OpBEQ, b.Entries[2].Op)
	require.True(t, b.Entries[3].Abort)
}

func TestNextFastPathAdvancesWithinBlock(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	d, err := c.Next(0x1000) // slow path: builds and enters the block
	require.NoError(t, err)
	require.Equal(t, decoder.OpADDI, d.Entry.Op)

	d2, err := c.Next(0x1004) // fast path: next entry in the same block
	require.NoError(t, err)
	require.Equal(t, decoder.OpADDI, d2.Entry.Op)
	require.Equal(t, uint64(0x1004), d2.Entry.PC)
}

func TestBranchTakenBuildsAndLinksTargetBlock(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	_, err := c.Next(0x1000)
	require.NoError(t, err)
	_, err = c.Next(0x1004)
	require.NoError(t, err)
	_, err = c.Next(0x1008) // lands on the BEQ entry
	require.NoError(t, err)

	target, err := c.BranchTaken(0x1008, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0x100c), target)
	require.NotEqual(t, int32(-1), c.blocks[0].Entries[2].Link)

	// Taking the same branch again must reuse the cached Link rather
	// than rebuilding the target Block.
	nBlocks := len(c.blocks)
	_, err = c.BranchTaken(0x1008, 4)
	require.NoError(t, err)
	require.Equal(t, nBlocks, len(c.blocks))
}

func TestBranchTakenMisalignedErrorsWithoutC(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions&^decoder.ExtC, false, nil)
	_, err := c.Next(0x1000)
	require.NoError(t, err)
	_, err = c.Next(0x1004)
	require.NoError(t, err)
	_, err = c.Next(0x1008)
	require.NoError(t, err)

	_, err = c.BranchTaken(0x1008, 2)
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestJumpDynCachesTarget(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	_, err := c.Next(0x1000)
	require.NoError(t, err)

	_, err = c.JumpDyn(0x100c)
	require.NoError(t, err)
	nBlocks := len(c.blocks)

	_, err = c.JumpDyn(0x100c)
	require.NoError(t, err)
	require.Equal(t, nBlocks, len(c.blocks))
}

func TestFenceIForcesSlowPathAndBumpsCoherence(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	_, err := c.Next(0x1000)
	require.NoError(t, err)
	before := c.coherence

	c.FenceI()
	require.Equal(t, before+1, c.coherence)
	require.True(t, c.forceSlow)
}

func TestRepairReDecodesOnWordMismatch(t *testing.T) {
	words := program()
	c := New(fetcher(words), decoder.DefaultExtensions, true, nil)
	handle, err := c.blockAt(0x1000)
	require.NoError(t, err)
	require.Equal(t, decoder.OpADDI, c.blocks[handle].Entries[0].Op)

	// Self-modifying code: the word at 0x1000 changes to a JAL.
	words[0x1000] = 0x0000006f
	c.coherence++

	require.NoError(t, c.repair(handle))
	require.Equal(t, decoder.OpJAL, c.blocks[handle].Entries[0].Op)
	require.Equal(t, c.coherence, c.blocks[handle].Coherence)
}

func TestEnterTrapCachesHandlerBlock(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	_, err := c.EnterTrap(0x1000)
	require.NoError(t, err)
	nBlocks := len(c.blocks)

	_, err = c.EnterTrap(0x1000)
	require.NoError(t, err)
	require.Equal(t, nBlocks, len(c.blocks))
}

func TestRetTrapEntersDummyMode(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	_, err := c.Next(0x1000)
	require.NoError(t, err)

	c.RetTrap(0x100c)
	require.True(t, c.dummy)

	d, err := c.Next(0x100c)
	require.NoError(t, err)
	require.Equal(t, uint64(0x100c), d.Entry.PC)
}

func TestForceSlowPathDisablesFastDispatchOnce(t *testing.T) {
	c := New(fetcher(program()), decoder.DefaultExtensions, true, nil)
	_, err := c.Next(0x1000)
	require.NoError(t, err)

	c.ForceSlowPath()
	d, err := c.Next(0x1004)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1004), d.Entry.PC)
	require.False(t, c.forceSlow)
}

func TestDefaultCycleTableMemoryAndMulDiv(t *testing.T) {
	tbl := DefaultCycleTable()
	require.Equal(t, uint32(4), tbl[decoder.OpLW])
	require.Equal(t, uint32(8), tbl[decoder.OpMUL])
	_, other := tbl[decoder.OpADDI]
	require.False(t, other)
}
