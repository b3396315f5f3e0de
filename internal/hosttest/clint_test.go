package hosttest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLINTExpiresOnAdvance(t *testing.T) {
	c := NewCLINT()
	c.SetMtimecmp(0, 100)
	require.False(t, c.Expired(0))

	c.Advance(99)
	require.False(t, c.Expired(0))

	c.Advance(1)
	require.True(t, c.Expired(0))
	require.Equal(t, uint64(100), c.GetMtime())
}

func TestCLINTUnarmedHartNeverExpires(t *testing.T) {
	c := NewCLINT()
	c.Advance(1_000_000)
	require.False(t, c.Expired(3))
}
