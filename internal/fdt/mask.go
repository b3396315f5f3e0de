package fdt

import "encoding/binary"

// maskedVirtioUnitAddresses are the virtio-mmio transport windows QEMU's
// default machine wires up that this hypervisor does not forward to the
// guest (they belong to devices handled some other way, or not at all).
var maskedVirtioUnitAddresses = map[string]bool{
	"10005000": true,
	"10006000": true,
	"10007000": true,
	"10008000": true,
}

// Mask runs the second, sanitizing walk: it hides /cpus/cpu nodes for any
// hart but the boot hart, /soc/pci, /test, and the fixed virtio-mmio windows
// above, masks the initrd properties under /chosen, and rewrites
// /memory/reg's size field to guestMemorySize in place. f.Data is mutated;
// callers hand the same blob to the guest afterward.
func Mask(f *FDT, guestMemorySize uint64) error {
	return f.Walk(Walker{
		OnNode: func(path, unitAddr []string) bool {
			switch {
			case len(path) == 3 && path[0] == "" && path[1] == "cpus" && path[2] == "cpu":
				ua := cpuUnitAddress(unitAddr)
				return ua != "" && ua != "0"
			case pathEquals(path, "", "soc", "pci"):
				return true
			case pathEquals(path, "", "test"):
				return true
			case len(path) == 2 && path[0] == "" && path[1] == "virtio_mmio":
				ua := ""
				if len(unitAddr) >= 2 {
					ua = unitAddr[1]
				}
				return maskedVirtioUnitAddresses[ua]
			}
			return false
		},
		OnProperty: func(path, unitAddr []string, name string, value []byte, tokenOffset int) {
			switch {
			case pathEquals(path, "", "chosen") && (name == "linux,initrd-start" || name == "linux,initrd-end"):
				f.MaskProperty(tokenOffset, len(value))
			case pathEquals(path, "", "memory") && name == "reg" && len(value) == 16:
				binary.BigEndian.PutUint64(value[8:16], guestMemorySize)
			}
		},
	})
}
