package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rvsim/rviss/emu/csr"
	"github.com/rvsim/rviss/emu/decoder"
	"github.com/rvsim/rviss/emu/memory"
)

func encodeR(opcode, rd, funct3, funct7, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	imm11_5 := (u >> 5) & 0x7f
	imm4_0 := u & 0x1f
	return imm11_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | imm4_0<<7 | opcode
}

func newTestHart(t *testing.T) (*Hart, *memory.Bus) {
	t.Helper()
	bus := memory.NewBus()
	bus.AddRAM(0, 4096)
	cfg := Config{XLEN: 64, Extensions: decoder.DefaultExtensions, HasS: true, HasU: true, Hart: 0, EntryPC: 0}
	h := New(cfg, bus, bus)
	return h, bus
}

func storeProgram(t *testing.T, bus *memory.Bus, words []uint32) {
	t.Helper()
	for i, w := range words {
		require.NoError(t, bus.StoreWord(uint64(i*4), w))
	}
}

func TestAddiAndAddRetireCorrectValues(t *testing.T) {
	h, bus := newTestHart(t)
	storeProgram(t, bus, []uint32{
		encodeI(0x13, 1, 0, 0, 5),  // addi x1, x0, 5
		encodeI(0x13, 2, 0, 0, 7),  // addi x2, x0, 7
		encodeR(0x33, 3, 0, 0, 1, 2), // add x3, x1, x2
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Step())
	}
	require.Equal(t, uint64(12), h.X.GetX(3))
	require.Equal(t, uint64(12), h.PC)
}

func TestStoreThenLoadRoundTrips(t *testing.T) {
	h, bus := newTestHart(t)
	storeProgram(t, bus, []uint32{
		encodeI(0x13, 1, 0, 0, 42),        // addi x1, x0, 42
		encodeS(0x23, 2, 0, 1, 64),        // sw x1, 64(x0)
		encodeI(0x03, 2, 2, 0, 64),        // lw x2, 64(x0)
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Step())
	}
	require.Equal(t, uint64(42), h.X.GetX(2))
}

func TestEcallWithoutSyscallEmulatorTrapsToMachine(t *testing.T) {
	h, bus := newTestHart(t)
	storeProgram(t, bus, []uint32{
		0x00000073, // ecall
	})
	require.NoError(t, h.Step())
	require.Equal(t, csr.Machine, h.Privilege)
	require.NotZero(t, h.CSR.RawValue(csr.Mcause))
}

func TestIllegalInstructionTraps(t *testing.T) {
	h, bus := newTestHart(t)
	storeProgram(t, bus, []uint32{
		0x0000007f, // reserved opcode, decodes as OpUndef
	})
	require.NoError(t, h.Step())
	require.Equal(t, uint64(2), h.CSR.RawValue(csr.Mcause)&0xff)
}

func TestJalSetsLinkAndTarget(t *testing.T) {
	h, bus := newTestHart(t)
	// jal x1, 16: imm=16 has only bit[4] set, which lands in the
	// bits[10:1] field of J-type encoding (imm>>1 == 8).
	word := uint32(8)<<21 | uint32(1)<<7 | 0x6f
	storeProgram(t, bus, []uint32{word})
	require.NoError(t, h.Step())
	require.Equal(t, uint64(4), h.X.GetX(1))
	require.Equal(t, uint64(16), h.PC)
}

func TestWfiBlocksUntilInterruptPending(t *testing.T) {
	h, bus := newTestHart(t)
	storeProgram(t, bus, []uint32{
		0x10500073, // wfi
	})
	require.NoError(t, h.Step())
	require.True(t, h.WFI)
	require.NoError(t, h.Run(1))
	require.True(t, h.WFI)

	require.NoError(t, h.CSR.Write(csr.Mie, 1<<7))
	h.CSR.SetRaw(csr.Mip, 1<<7)
	require.NoError(t, h.CSR.Write(csr.Mstatus, csr.MstatusMIE))
	require.NoError(t, h.Run(1))
	require.False(t, h.WFI)
}

func TestHeadlessWfiNeverBlocks(t *testing.T) {
	bus := memory.NewBus()
	bus.AddRAM(0, 4096)
	cfg := Config{XLEN: 64, Extensions: decoder.DefaultExtensions, HasS: true, HasU: true, Hart: 0, EntryPC: 0, HeadlessWFI: true}
	h := New(cfg, bus, bus)
	storeProgram(t, bus, []uint32{
		0x10500073, // wfi
	})
	require.NoError(t, h.Step())
	require.False(t, h.WFI)
	require.Equal(t, uint64(4), h.PC)
}
