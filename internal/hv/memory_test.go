package hv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuestMemoryInRegion(t *testing.T) {
	m := GuestMemory{Base: 0x8000_0000, Data: make([]byte, 0x1000)}
	require.True(t, m.InRegion(0x8000_0000))
	require.True(t, m.InRegion(0x8000_0fff))
	require.False(t, m.InRegion(0x8000_1000))
	require.False(t, m.InRegion(0x7fff_ffff))
}

func TestGuestMemoryReadWriteU64RoundTrip(t *testing.T) {
	m := GuestMemory{Base: 0x8000_0000, Data: make([]byte, 0x1000)}
	require.NoError(t, m.WriteU64(0x8000_0100, 0xdead_beef_cafe_f00d))
	v, err := m.ReadU64(0x8000_0100)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdead_beef_cafe_f00d), v)
}

func TestGuestMemorySliceRejectsOutOfRange(t *testing.T) {
	m := GuestMemory{Base: 0x8000_0000, Data: make([]byte, 0x10)}
	_, err := m.Slice(0x8000_0008, 16)
	require.Error(t, err)
}
