package hosttest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShadowPageTablesInstallRootRecordsHistory(t *testing.T) {
	s := NewShadowPageTables()
	require.NoError(t, s.InstallRoot(0x8000_0001))
	require.NoError(t, s.InstallRoot(0x8000_0002))
	require.Equal(t, []uint64{0x8000_0001, 0x8000_0002}, s.Roots())
}

func TestShadowPageTablesHandlePageFaultMapsByDefault(t *testing.T) {
	s := NewShadowPageTables()
	resolved, err := s.HandlePageFault(0x1000, 1)
	require.NoError(t, err)
	require.True(t, resolved)
	require.True(t, s.IsMapped(0x1000))
	require.True(t, s.IsMapped(0x1fff))
}

func TestShadowPageTablesSFenceFlushesMappings(t *testing.T) {
	s := NewShadowPageTables()
	s.HandlePageFault(0x1000, 1)
	require.True(t, s.IsMapped(0x1000))

	s.HandleSFenceVMA(0x1000, false, 0)
	require.False(t, s.IsMapped(0x1000))
	require.Equal(t, 1, s.SFenceCount())
}

func TestShadowPageTablesCustomFaultHandler(t *testing.T) {
	s := NewShadowPageTables()
	s.SetFaultHandler(func(vaddr uint64, cause int) (bool, error) {
		return false, errors.New("permission violation")
	})

	resolved, err := s.HandlePageFault(0x2000, 1)
	require.Error(t, err)
	require.False(t, resolved)
}
