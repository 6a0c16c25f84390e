package plic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeIRQ struct {
	triggered bool
	cleared   bool
}

func (f *fakeIRQ) TriggerExternalInterrupt(hart int, privilege int) { f.triggered = true; f.cleared = false }
func (f *fakeIRQ) ClearExternalInterrupt(hart int, privilege int)   { f.cleared = true; f.triggered = false }

func TestRaiseWithPriorityAboveThresholdTriggers(t *testing.T) {
	irq := &fakeIRQ{}
	p := New(0, irq)
	require.NoError(t, p.WriteReg(priorityBase+4*1, 4, 5))
	require.NoError(t, p.WriteReg(enableBase, 4, 1<<1))

	p.Raise(1)
	require.True(t, irq.triggered)
}

func TestRaiseBelowThresholdDoesNotTrigger(t *testing.T) {
	irq := &fakeIRQ{}
	p := New(0, irq)
	require.NoError(t, p.WriteReg(priorityBase+4*1, 4, 1))
	require.NoError(t, p.WriteReg(enableBase, 4, 1<<1))
	require.NoError(t, p.WriteReg(contextBase, 4, 5))

	p.Raise(1)
	require.False(t, irq.triggered)
}

func TestClaimReturnsHighestPrioritySource(t *testing.T) {
	irq := &fakeIRQ{}
	p := New(0, irq)
	require.NoError(t, p.WriteReg(priorityBase+4*1, 4, 3))
	require.NoError(t, p.WriteReg(priorityBase+4*2, 4, 7))
	require.NoError(t, p.WriteReg(enableBase, 4, (1<<1)|(1<<2)))

	p.Raise(1)
	p.Raise(2)

	claimed, err := p.ReadReg(contextBase+claimOffset, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(2), claimed)
}

func TestCompleteClearsClaimedSource(t *testing.T) {
	irq := &fakeIRQ{}
	p := New(0, irq)
	require.NoError(t, p.WriteReg(priorityBase+4*1, 4, 3))
	require.NoError(t, p.WriteReg(enableBase, 4, 1<<1))
	p.Raise(1)

	claimed, _ := p.ReadReg(contextBase+claimOffset, 4)
	require.Equal(t, uint64(1), claimed)
	require.NoError(t, p.WriteReg(contextBase+claimOffset, 4, 1))
	require.Empty(t, p.claimed)
}

func TestLowerClearsPendingAndInterrupt(t *testing.T) {
	irq := &fakeIRQ{}
	p := New(0, irq)
	require.NoError(t, p.WriteReg(priorityBase+4*1, 4, 3))
	require.NoError(t, p.WriteReg(enableBase, 4, 1<<1))
	p.Raise(1)
	require.True(t, irq.triggered)

	p.Lower(1)
	require.True(t, irq.cleared)
}
