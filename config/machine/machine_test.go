package machine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	config "github.com/rvsim/rviss/config/configparser"
	"github.com/rvsim/rviss/emu/decoder"
)

func TestParseISADecodesXLENAndExtensions(t *testing.T) {
	xlen, ext, hasS, hasU, err := ParseISA("rv64imafdc_su")
	require.NoError(t, err)
	require.Equal(t, 64, xlen)
	require.True(t, hasS)
	require.True(t, hasU)
	require.NotZero(t, ext&decoder.ExtM)
	require.NotZero(t, ext&decoder.ExtA)
	require.NotZero(t, ext&decoder.ExtF)
	require.NotZero(t, ext&decoder.ExtD)
	require.NotZero(t, ext&decoder.ExtC)
}

func TestParseISARejectsBadPrefix(t *testing.T) {
	_, _, _, _, err := ParseISA("arm64")
	require.Error(t, err)
}

func TestParseISAWithoutPrivilegeSuffix(t *testing.T) {
	_, _, hasS, hasU, err := ParseISA("rv32ima")
	require.NoError(t, err)
	require.False(t, hasS)
	require.False(t, hasU)
}

func TestLoadConfigFileBuildsMachine(t *testing.T) {
	*Current = Machine{}

	dir := t.TempDir()
	path := filepath.Join(dir, "rviss.cfg")
	contents := "hart0 rv64imac\n" +
		"mem 0x80000000 size=64M\n" +
		"clint 0x02000000\n" +
		"plic 0x0c000000\n" +
		"uart0 0x10000000 irq=1\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	require.NoError(t, config.LoadConfigFile(path))

	require.Equal(t, 64, Current.XLEN)
	require.True(t, Current.HasRAM)
	require.Equal(t, uint64(0x80000000), Current.RAMBase)
	require.Equal(t, uint64(64*1024*1024), Current.RAMSize)
	require.True(t, Current.HasClint)
	require.True(t, Current.HasPlic)
	require.True(t, Current.HasUART)
	require.Equal(t, uint32(1), Current.UARTIRQ)
}
