package uart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTXRegisterForwardsToWriter(t *testing.T) {
	var out bytes.Buffer
	u := New(0x1000, 0x1000, &out, strings.NewReader(""), 0, nil)
	require.NoError(t, u.WriteReg(regTXData, 1, uint64('A')))
	require.Equal(t, "A", out.String())
}

func TestReadRXRegisterPullsFromReader(t *testing.T) {
	u := New(0x1000, 0x1000, nil, strings.NewReader("hi"), 0, nil)
	v, err := u.ReadReg(regRXData, 1)
	require.NoError(t, err)
	require.Equal(t, uint64('h'), v)
}

func TestStatusReflectsRxReady(t *testing.T) {
	u := New(0x1000, 0x1000, nil, strings.NewReader("x"), 0, nil)
	v, err := u.ReadReg(regStatus, 1)
	require.NoError(t, err)
	require.NotZero(t, v&statusRxReady)
	require.NotZero(t, v&statusTxReady)
}

func TestStatusNoRxReadyOnEmptyInput(t *testing.T) {
	u := New(0x1000, 0x1000, nil, strings.NewReader(""), 0, nil)
	v, err := u.ReadReg(regStatus, 1)
	require.NoError(t, err)
	require.Zero(t, v&statusRxReady)
}

func TestUnknownOffsetIsAccessFault(t *testing.T) {
	u := New(0x1000, 0x1000, nil, strings.NewReader(""), 0, nil)
	_, err := u.ReadReg(0xff, 1)
	require.Error(t, err)
}
