package fdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkVisitsEveryNodeAndProperty(t *testing.T) {
	data := buildSampleMachine()
	f, err := Parse(data)
	require.NoError(t, err)

	var nodes []string
	var props []string
	err = f.Walk(Walker{
		OnNode: func(path, unitAddr []string) bool {
			nodes = append(nodes, path[len(path)-1]+"@"+unitAddr[len(unitAddr)-1])
			return false
		},
		OnProperty: func(path, unitAddr []string, name string, value []byte, _ int) {
			props = append(props, name)
		},
	})
	require.NoError(t, err)
	require.Contains(t, nodes, "memory@")
	require.Contains(t, nodes, "cpu@0")
	require.Contains(t, nodes, "virtio_mmio@10001000")
	require.Contains(t, props, "linux,initrd-start")
	require.Contains(t, props, "reg")
}

func TestWalkRejectsBadMagic(t *testing.T) {
	data := buildSampleMachine()
	data[0] = 0
	_, err := Parse(data)
	require.Error(t, err)
}

func TestMaskIsIdempotent(t *testing.T) {
	data := buildSampleMachine()
	f, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, Mask(f, 0x20000000))

	once := append([]byte(nil), f.Data...)

	f2, err := Parse(once)
	require.NoError(t, err)
	require.NoError(t, Mask(f2, 0x20000000))

	require.Equal(t, once, f2.Data, "masking an already-masked blob must be a no-op")
}

func TestReadAfterMaskSeesNoMaskedSubtree(t *testing.T) {
	data := buildSampleMachine()
	f, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, Mask(f, 0x20000000))

	var nodes []string
	var props []string
	err = f.Walk(Walker{
		OnNode: func(path, unitAddr []string) bool {
			nodes = append(nodes, path[len(path)-1])
			return false
		},
		OnProperty: func(path, unitAddr []string, name string, value []byte, _ int) {
			props = append(props, path[len(path)-1]+"/"+name)
		},
	})
	require.NoError(t, err)
	require.NotContains(t, nodes, "test")
	require.NotContains(t, nodes, "pci")
	require.NotContains(t, props, "chosen/linux,initrd-start")
	require.NotContains(t, props, "chosen/linux,initrd-end")

	// cpu@1 is masked (non-boot hart) but cpu@0 survives.
	found0, found1 := false, false
	err = f.Walk(Walker{
		OnNode: func(path, unitAddr []string) bool {
			if len(path) == 3 && path[0] == "" && path[1] == "cpus" && path[2] == "cpu" {
				switch cpuUnitAddress(unitAddr) {
				case "0":
					found0 = true
				case "1":
					found1 = true
				}
			}
			return false
		},
	})
	require.NoError(t, err)
	require.True(t, found0)
	require.False(t, found1)
}

func TestMemorySizeRewrite(t *testing.T) {
	data := buildSampleMachine()
	f, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, Mask(f, 0x40000000))

	var base, size uint64
	err = f.Walk(Walker{
		OnProperty: func(path, unitAddr []string, name string, value []byte, _ int) {
			if pathEquals(path, "", "memory") && name == "reg" {
				base, size, _ = AsRange(value)
			}
		},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0x80000000), base)
	require.Equal(t, uint64(0x40000000), size)
}

func TestMaskOfTestAndPCISubtrees(t *testing.T) {
	data := buildSampleMachine()
	f, err := Parse(data)
	require.NoError(t, err)
	original := append([]byte(nil), f.Data...)

	require.NoError(t, Mask(f, 0x10000000))

	changed := 0
	for i := range f.Data {
		if f.Data[i] != original[i] {
			changed++
		}
	}
	require.Greater(t, changed, 0, "masking must mutate the blob")

	var nodes []string
	err = f.Walk(Walker{
		OnNode: func(path, unitAddr []string) bool {
			nodes = append(nodes, path[len(path)-1])
			return false
		},
	})
	require.NoError(t, err)
	require.NotContains(t, nodes, "test")
	require.NotContains(t, nodes, "pci")
}
