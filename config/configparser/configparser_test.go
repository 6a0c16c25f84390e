/*
 * rviss - Configuration file parser test set.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package configparser

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetModels() {
	models = map[string]modelDef{}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rviss-*.cfg")
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestModelRequiresAddress(t *testing.T) {
	resetModels()
	var gotAddr uint64
	RegisterModel("MEM", TypeModel, func(addr uint64, _ string, _ []Option) error {
		gotAddr = addr
		return nil
	})

	path := writeConfig(t, "mem 0x80000000 size=128M\n")
	require.NoError(t, LoadConfigFile(path))
	require.Equal(t, uint64(0x80000000), gotAddr)
}

func TestModelMissingAddressErrors(t *testing.T) {
	resetModels()
	RegisterModel("MEM", TypeModel, func(uint64, string, []Option) error { return nil })

	path := writeConfig(t, "mem\n")
	require.Error(t, LoadConfigFile(path))
}

func TestOptionsSpaceSeparated(t *testing.T) {
	resetModels()
	var gotOpts []Option
	var gotFirst string
	RegisterOptions("TRACE", func(_ uint64, first string, opts []Option) error {
		gotFirst = first
		gotOpts = opts
		return nil
	})

	path := writeConfig(t, "trace INST IRQ CACHE\n")
	require.NoError(t, LoadConfigFile(path))
	require.Equal(t, "INST", gotFirst)
	require.Len(t, gotOpts, 2)
	require.Equal(t, "IRQ", gotOpts[0].Name)
	require.Equal(t, "CACHE", gotOpts[1].Name)
}

func TestOptionWithCommaValueList(t *testing.T) {
	resetModels()
	var gotOpts []Option
	RegisterModel("MEM", TypeModel, func(_ uint64, _ string, opts []Option) error {
		gotOpts = opts
		return nil
	})

	path := writeConfig(t, "mem 0x1000 dmi=on,fast,cached\n")
	require.NoError(t, LoadConfigFile(path))
	require.Len(t, gotOpts, 1)
	require.Equal(t, "dmi", gotOpts[0].Name)
	require.Equal(t, "on", gotOpts[0].EqualOpt)
	require.Len(t, gotOpts[0].Value, 2)
	require.Equal(t, "fast", *gotOpts[0].Value[0])
	require.Equal(t, "cached", *gotOpts[0].Value[1])
}

func TestSwitch(t *testing.T) {
	resetModels()
	called := false
	RegisterSwitch("HEADLESS", func(uint64, string, []Option) error {
		called = true
		return nil
	})

	path := writeConfig(t, "headless\n")
	require.NoError(t, LoadConfigFile(path))
	require.True(t, called)
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	resetModels()
	calls := 0
	RegisterModel("MEM", TypeModel, func(uint64, string, []Option) error {
		calls++
		return nil
	})

	path := writeConfig(t, "# a comment\n\nmem 0x1000\n  # trailing comment\n")
	require.NoError(t, LoadConfigFile(path))
	require.Equal(t, 1, calls)
}

func TestUnknownComponentErrors(t *testing.T) {
	resetModels()
	path := writeConfig(t, "bogus 0x1000\n")
	require.Error(t, LoadConfigFile(path))
}

func TestSizedNumberSuffixes(t *testing.T) {
	n, ok := parseSizedNumber("128M")
	require.True(t, ok)
	require.Equal(t, uint64(128*1024*1024), n)

	n, ok = parseSizedNumber("0x1000")
	require.True(t, ok)
	require.Equal(t, uint64(0x1000), n)

	n, ok = parseSizedNumber("4K")
	require.True(t, ok)
	require.Equal(t, uint64(4*1024), n)
}
