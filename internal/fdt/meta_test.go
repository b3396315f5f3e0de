package fdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractProducesFrozenMachineMeta(t *testing.T) {
	f, err := Parse(buildSampleMachine())
	require.NoError(t, err)

	meta, err := Extract(f)
	require.NoError(t, err)

	require.Equal(t, uint64(0x80000000), meta.PhysicalMemoryOffset)
	require.Equal(t, uint64(0x10000000), meta.PhysicalMemorySize)
	require.Equal(t, uint64(0x2000000), meta.CLINTAddress)
	require.Equal(t, uint64(0xc000000), meta.PLICAddress)
	require.Equal(t, uint64(0x10000000), meta.UARTAddress)
	require.Equal(t, UARTNs16550a, meta.UARTType)
	require.Equal(t, uint64(0x84000000), meta.InitrdStart)
	require.Equal(t, uint64(0x85000000), meta.InitrdEnd)
}

func TestExtractHartOrdering(t *testing.T) {
	f, err := Parse(buildSampleMachine())
	require.NoError(t, err)
	meta, err := Extract(f)
	require.NoError(t, err)

	require.Len(t, meta.Harts, 2)
	require.True(t, meta.Harts[0].HartID < meta.Harts[1].HartID)
	require.Equal(t, uint64(0), meta.Harts[0].HartID)
	require.Equal(t, uint64(1), meta.Harts[1].HartID)
	// interrupts-extended = [1,9, 2,9]: phandle 1 at index 0 -> plic_context 0,
	// phandle 2 at index 1 -> plic_context 1.
	require.Equal(t, uint64(0), meta.Harts[0].PLICContext)
	require.Equal(t, uint64(1), meta.Harts[1].PLICContext)
}

func TestExtractVirtioSortAndCompleteness(t *testing.T) {
	f, err := Parse(buildSampleMachine())
	require.NoError(t, err)
	meta, err := Extract(f)
	require.NoError(t, err)

	require.Len(t, meta.Virtio, 2)
	require.True(t, meta.Virtio[0].BaseAddress < meta.Virtio[1].BaseAddress)
	require.Equal(t, uint64(0x10001000), meta.Virtio[0].BaseAddress)
	require.Equal(t, uint64(1), meta.Virtio[0].IRQ)
	require.Equal(t, uint64(0x10005000), meta.Virtio[1].BaseAddress)
}

func TestExtractFailsWithoutPLIC(t *testing.T) {
	b := newTestTreeBuilder()
	b.beginNode("")
	b.beginNode("soc")
	b.beginNode("clint@2000000")
	b.propRange("reg", 0x2000000, 0x10000)
	b.endNode()
	b.endNode()
	b.endNode()

	f, err := Parse(b.build())
	require.NoError(t, err)

	_, err = Extract(f)
	require.ErrorIs(t, err, ErrMissingPLIC)
}

func TestExtractFailsWithoutCLINT(t *testing.T) {
	b := newTestTreeBuilder()
	b.beginNode("")
	b.beginNode("soc")
	b.beginNode("interrupt-controller")
	b.propRange("reg", 0xc000000, 0x4000000)
	b.endNode()
	b.endNode()
	b.endNode()

	f, err := Parse(b.build())
	require.NoError(t, err)

	_, err = Extract(f)
	require.ErrorIs(t, err, ErrMissingCLINT)
}

func TestParseMaskReparseConsistency(t *testing.T) {
	f, err := Parse(buildSampleMachine())
	require.NoError(t, err)

	require.NoError(t, Mask(f, 0x08000000))

	f2, err := Parse(f.Data)
	require.NoError(t, err)
	meta, err := Extract(f2)
	require.NoError(t, err)

	require.Equal(t, uint64(0x08000000), meta.PhysicalMemorySize)
	require.Equal(t, uint64(0), meta.InitrdStart)
	require.Equal(t, uint64(0), meta.InitrdEnd)
	require.Equal(t, uint64(0x80000000), meta.PhysicalMemoryOffset)
}
