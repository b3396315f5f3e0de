package fdt

import "sort"

// UARTType names the console UART compatible string discovered during
// extraction; the hypervisor never talks to the real device through this
// package, it only records which driver the guest should expect.
type UARTType int

const (
	UARTNone UARTType = iota
	UARTNs16550a
	UARTSiFive
)

const (
	maxHarts  = 16
	maxVirtio = 16
)

// Hart is one virtual hart's identity and the index into the PLIC's
// interrupts-extended array that carries its S-mode external interrupt.
type Hart struct {
	HartID      uint64
	PLICContext uint64
}

// VirtioEntry is one discovered virtio-mmio transport window.
type VirtioEntry struct {
	BaseAddress uint64
	Size        uint64
	IRQ         uint64
}

// MachineMeta is the frozen record of host resources the boot-time FDT walk
// produces: harts, interrupt controllers, UART, virtio transports, memory,
// and any initrd the bootloader staged.
type MachineMeta struct {
	PhysicalMemoryOffset uint64
	PhysicalMemorySize   uint64

	Harts []Hart

	UARTType    UARTType
	UARTAddress uint64

	PLICAddress  uint64
	CLINTAddress uint64

	Virtio []VirtioEntry

	InitrdStart uint64
	InitrdEnd   uint64
}

type cpuEntry struct {
	hartID      uint64
	haveHart    bool
	phandle     uint64
	havePhandle bool
}

type virtioAccum struct {
	base, size, irq  uint64
	haveReg, haveIRQ bool
}

// Extract runs a single walk over f and derives a MachineMeta. Per the
// Design Notes decision, CPU unit-addresses and virtio unit-addresses are
// interned in two separate tables rather than the shared table the source
// uses, so a virtio @addr can never alias a CPU @addr.
func Extract(f *FDT) (*MachineMeta, error) {
	meta := &MachineMeta{}

	var cpuIntern, virtioIntern addressIntern
	var cpus [maxHarts]cpuEntry
	var plicPhandles [maxHarts]uint64
	var plicPhandleSet [maxHarts]bool
	var virtios [maxVirtio]virtioAccum
	uartSet := false
	havePLIC, haveCLINT := false, false

	var extractErr error
	fail := func(err error) {
		if extractErr == nil {
			extractErr = err
		}
	}

	err := f.Walk(Walker{
		OnProperty: func(path, unitAddr []string, name string, value []byte, _ int) {
			switch {
			case pathEquals(path, "", "chosen"):
				switch name {
				case "linux,initrd-start":
					if v, ok := AsU32Or64(value); ok {
						meta.InitrdStart = v
					}
				case "linux,initrd-end":
					if v, ok := AsU32Or64(value); ok {
						meta.InitrdEnd = v
					}
				}

			case pathEquals(path, "", "memory"):
				if name == "reg" {
					if base, size, ok := AsRange(value); ok {
						meta.PhysicalMemoryOffset = base
						meta.PhysicalMemorySize = size
					}
				}

			case isUARTPath(path):
				switch name {
				case "reg":
					if !uartSet {
						if base, _, ok := AsRange(value); ok {
							meta.UARTAddress = base
							uartSet = true
						} else if base, ok := AsU64(value); ok {
							meta.UARTAddress = base
							uartSet = true
						}
					}
				case "compatible":
					switch AsString(value) {
					case "ns16550a":
						meta.UARTType = UARTNs16550a
					case "sifive,uart0":
						meta.UARTType = UARTSiFive
					}
				}

			case pathEquals(path, "", "soc", "clint"):
				if name == "reg" {
					if base, _, ok := AsRange(value); ok {
						meta.CLINTAddress = base
						haveCLINT = true
					}
				}

			case pathEquals(path, "", "soc", "interrupt-controller"):
				switch name {
				case "reg":
					if base, _, ok := AsRange(value); ok {
						meta.PLICAddress = base
						havePLIC = true
					}
				case "interrupts-extended":
					pairs := AsU32Array(value)
					for i := 0; i+1 < len(pairs); i += 2 {
						phandle, irq := uint64(pairs[i]), uint64(pairs[i+1])
						if irq == 9 && i/2 < maxHarts {
							plicPhandles[i/2] = phandle
							plicPhandleSet[i/2] = true
						}
					}
				}

			case len(path) == 2 && path[0] == "" && path[1] == "virtio_mmio":
				ua := ""
				if len(unitAddr) >= 2 {
					ua = unitAddr[1]
				}
				idx, ok := virtioIntern.indexOf(ua)
				if !ok {
					fail(ErrTooManyVirtioDevices)
					return
				}
				switch name {
				case "reg":
					if base, size, ok2 := AsRange(value); ok2 {
						virtios[idx].base = base
						virtios[idx].size = size
						virtios[idx].haveReg = true
					}
				case "interrupts":
					if irq, ok2 := AsU32(value); ok2 {
						virtios[idx].irq = uint64(irq)
						virtios[idx].haveIRQ = true
					}
				}

			case len(path) == 3 && path[0] == "" && path[1] == "cpus" && path[2] == "cpu":
				ua := cpuUnitAddress(unitAddr)
				idx, ok := cpuIntern.indexOf(ua)
				if !ok {
					fail(ErrTooManyHarts)
					return
				}
				if name == "reg" {
					if hartID, ok2 := AsU32Or64(value); ok2 {
						cpus[idx].hartID = hartID
						cpus[idx].haveHart = true
					}
				}

			case len(path) == 4 && path[0] == "" && path[1] == "cpus" && path[2] == "cpu" && path[3] == "interrupt-controller":
				// Keyed by the *parent* cpu's unit-address, not the
				// interrupt-controller's own (usually absent) one, so its
				// phandle correlates back to the cpu node it belongs to.
				ua := cpuUnitAddress(unitAddr)
				idx, ok := cpuIntern.indexOf(ua)
				if !ok {
					fail(ErrTooManyHarts)
					return
				}
				if name == "phandle" {
					if ph, ok2 := AsU32(value); ok2 {
						cpus[idx].phandle = uint64(ph)
						cpus[idx].havePhandle = true
					}
				}
			}
		},
	})
	if err != nil {
		return nil, err
	}
	if extractErr != nil {
		return nil, extractErr
	}
	if !havePLIC {
		return nil, ErrMissingPLIC
	}
	if !haveCLINT {
		return nil, ErrMissingCLINT
	}

	for i := 0; i < maxHarts; i++ {
		c := cpus[i]
		if !c.haveHart || !c.havePhandle {
			continue
		}
		for p := 0; p < maxHarts; p++ {
			if plicPhandleSet[p] && plicPhandles[p] == c.phandle {
				meta.Harts = append(meta.Harts, Hart{HartID: c.hartID, PLICContext: uint64(p)})
				break
			}
		}
	}
	sort.Slice(meta.Harts, func(i, j int) bool { return meta.Harts[i].HartID < meta.Harts[j].HartID })

	for i := 0; i < maxVirtio; i++ {
		v := virtios[i]
		if !v.haveReg || !v.haveIRQ {
			continue
		}
		meta.Virtio = append(meta.Virtio, VirtioEntry{BaseAddress: v.base, Size: v.size, IRQ: v.irq})
	}
	sort.Slice(meta.Virtio, func(i, j int) bool { return meta.Virtio[i].BaseAddress < meta.Virtio[j].BaseAddress })

	return meta, nil
}

func isUARTPath(path []string) bool {
	switch {
	case len(path) == 2 && path[0] == "" && path[1] == "uart":
		return true
	case len(path) == 3 && path[0] == "" && path[1] == "soc" && (path[2] == "uart" || path[2] == "serial"):
		return true
	}
	return false
}

// cpuUnitAddress is the unit-address of the "cpu" path component, which for
// both /cpus/cpu and /cpus/cpu/interrupt-controller sits at index 2 (root,
// cpus, cpu).
func cpuUnitAddress(unitAddr []string) string {
	if len(unitAddr) >= 3 {
		return unitAddr[2]
	}
	return ""
}
