package hv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVirtualPLICPendingAndClear(t *testing.T) {
	p := NewVirtualPLIC()
	require.False(t, p.InterruptPending())

	p.SetPending(7)
	require.True(t, p.InterruptPending())

	p.Clear(7)
	require.False(t, p.InterruptPending())
}

func TestVirtualPLICMultipleSources(t *testing.T) {
	p := NewVirtualPLIC()
	p.SetPending(1)
	p.SetPending(2)
	p.Clear(1)
	require.True(t, p.InterruptPending())
	p.Clear(2)
	require.False(t, p.InterruptPending())
}
