package regfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestX0HardwiredZero(t *testing.T) {
	f := New(64)
	f.SetX(0, 0xdeadbeef)
	require.Equal(t, uint64(0), f.GetX(0))
}

func TestIntegerRoundTrip(t *testing.T) {
	f := New(64)
	f.SetX(5, 0x1122334455667788)
	require.Equal(t, uint64(0x1122334455667788), f.GetX(5))
}

func TestXLEN32Truncates(t *testing.T) {
	f := New(32)
	f.SetX(5, 0x1122334455667788)
	require.Equal(t, uint64(0x55667788), f.GetX(5))
	require.Equal(t, int64(int32(0x55667788)), f.GetXSigned(5))
}

func TestNaNBoxingF32(t *testing.T) {
	f := New(64)
	f.SetF32(1, 0x3f800000)
	require.Equal(t, uint64(0xffffffff3f800000), f.GetF64(1))
	require.Equal(t, uint32(0x3f800000), f.GetF32(1))
}

func TestUnboxedF64ReadAsCanonicalNaN(t *testing.T) {
	f := New(64)
	f.SetF64(1, 0x1122334455667788)
	require.Equal(t, CanonicalNaNF32, f.GetF32(1))
}
