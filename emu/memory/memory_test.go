package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadStoreRoundTrip(t *testing.T) {
	b := NewBus()
	b.AddRAM(0x80000000, 0x1000)

	require.NoError(t, b.StoreWord(0x80000010, 0xdeadbeef))
	v, err := b.LoadWord(0x80000010)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), v)

	require.NoError(t, b.StoreByte(0x80000000, 0x7f))
	by, err := b.LoadByte(0x80000000)
	require.NoError(t, err)
	require.Equal(t, uint8(0x7f), by)
}

func TestAccessFaultOutsideRegions(t *testing.T) {
	b := NewBus()
	b.AddRAM(0x80000000, 0x1000)
	_, err := b.LoadWord(0x90000000)
	require.Error(t, err)
}

func TestDMIOnlyForWholePage(t *testing.T) {
	b := NewBus()
	b.AddRAM(0x80000000, 0x1000)

	_, _, ok := b.LastDMIPageHostAddr(0x80000100)
	require.True(t, ok)

	// A RAM region smaller than a page never exposes DMI for it.
	b2 := NewBus()
	b2.AddRAM(0x81000000, 0x10)
	_, _, ok = b2.LastDMIPageHostAddr(0x81000000)
	require.False(t, ok)
}

func TestReservationClearedByOtherHartStore(t *testing.T) {
	b := NewBus()
	b.AddRAM(0x80000000, 0x1000)

	b.Reserve(0, 0x80000000)
	require.NoError(t, b.StoreWord(0x80000000, 1)) // hart 1's store
	require.False(t, b.CheckAndClearReservation(0, 0x80000000))
}

func TestReservationSurvivesUnrelatedStore(t *testing.T) {
	b := NewBus()
	b.AddRAM(0x80000000, 0x1000)

	b.Reserve(0, 0x80000000)
	require.NoError(t, b.StoreWord(0x80000100, 1))
	require.True(t, b.CheckAndClearReservation(0, 0x80000000))
}
