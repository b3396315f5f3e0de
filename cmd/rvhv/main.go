// Command rvhv is a thin type-1 hypervisor for RISC-V 64-bit: it boots a
// single S-mode guest kernel directly from a flattened device tree and a
// kernel image, trapping and emulating the handful of privileged
// instructions and virtio-mmio accesses the guest needs to make forward
// progress, and otherwise getting out of the guest's way.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"example.com/rvhv/internal/fdt"
	"example.com/rvhv/internal/hosttest"
	"example.com/rvhv/internal/hv"
	"example.com/rvhv/internal/trap"
	"example.com/rvhv/internal/virtio"
)

var (
	kernelPath = flag.String("kernel", "", "path to the guest kernel image")
	fdtPath    = flag.String("fdt", "", "path to the flattened device tree blob describing host resources")
	memSize    = flag.Uint64("memory-size", 256<<20, "guest physical memory size in bytes")
	guestShift = flag.Uint64("guest-shift", 0, "offset added to guest-physical addresses to form the host-physical addresses virtio devices see")
	cmdline    = flag.String("cmdline", "", "kernel command line (logged at startup; not written into the device tree)")
	debug      = flag.Bool("debug", false, "enable debug-level logging")
)

const (
	kernelLoadOffset = 0x200000
	fdtLoadOffset    = 0x2200000
)

func main() {
	flag.Parse()
	log := logrus.New()
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log); err != nil {
		log.WithError(err).Fatal("rvhv: fatal startup error")
	}
}

func run(log *logrus.Logger) error {
	if *kernelPath == "" || *fdtPath == "" {
		return fmt.Errorf("rvhv: --kernel and --fdt are required")
	}

	kernel, err := os.ReadFile(*kernelPath)
	if err != nil {
		return fmt.Errorf("reading kernel image: %w", err)
	}
	fdtBlob, err := os.ReadFile(*fdtPath)
	if err != nil {
		return fmt.Errorf("reading device tree: %w", err)
	}

	tree, err := fdt.Parse(fdtBlob)
	if err != nil {
		return fmt.Errorf("parsing device tree: %w", err)
	}
	meta, err := fdt.Extract(tree)
	if err != nil {
		return fmt.Errorf("extracting machine metadata: %w", err)
	}
	if *debug {
		var dump strings.Builder
		if err := fdt.Dump(tree, &dump); err != nil {
			return fmt.Errorf("dumping device tree: %w", err)
		}
		log.WithField("component", "fdt").Debug(dump.String())
	}
	if err := fdt.Mask(tree, *memSize); err != nil {
		return fmt.Errorf("masking device tree: %w", err)
	}

	log.WithFields(logrus.Fields{
		"component": "boot",
		"harts":     len(meta.Harts),
		"virtio":    len(meta.Virtio),
		"plic":      fmt.Sprintf("0x%x", meta.PLICAddress),
		"clint":     fmt.Sprintf("0x%x", meta.CLINTAddress),
	}).Info("parsed host machine description")

	// Guest memory is mmap'd rather than a plain make([]byte, ...) slice, so
	// the host page cache and NUMA policy can apply to it like any other
	// mapped region.
	memory, err := unix.Mmap(-1, 0, int(*memSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("mmap guest memory: %w", err)
	}
	defer unix.Munmap(memory)

	if uint64(len(kernel))+kernelLoadOffset > *memSize {
		return fmt.Errorf("kernel image (%d bytes) does not fit at load offset 0x%x", len(kernel), kernelLoadOffset)
	}
	copy(memory[kernelLoadOffset:], kernel)

	maskedFDT := tree.Data
	if fdtLoadOffset+uint64(len(maskedFDT)) > *memSize {
		return fmt.Errorf("masked device tree (%d bytes) does not fit at load offset 0x%x", len(maskedFDT), fdtLoadOffset)
	}
	copy(memory[fdtLoadOffset:], maskedFDT)

	plic := hosttest.NewPLIC()
	clint := hosttest.NewCLINT()
	// The UART's own receive-data interrupt isn't part of MachineMeta; this
	// console is output-only, so it never schedules one.
	uart := hosttest.NewUART(os.Stdout, plic, 0)
	spt := hosttest.NewShadowPageTables()

	bus := virtio.NewBus(*guestShift, spt)
	for _, v := range meta.Virtio {
		bus.AddDevice(virtio.NewDevice(v.BaseAddress, 0, 256))
	}

	irqMap := make(map[uint32]uint32, len(meta.Virtio)+1)
	for _, v := range meta.Virtio {
		irqMap[uint32(v.IRQ)] = uint32(v.IRQ)
	}

	ctx := &hv.Context{
		Memory:      hv.GuestMemory{Base: 0, Data: memory},
		VirtualPLIC: hv.NewVirtualPLIC(),
		SPT:         spt,
		HostPLIC:    plic,
		HostCLINT:   clint,
		UART:        uart,
		IRQMap:      irqMap,
	}
	ctx.CSRs.Satp = 0
	ctx.RealSepc = kernelLoadOffset
	ctx.SMode = true

	dispatcher := &trap.Dispatcher{Ctx: ctx, Bus: bus}
	trap.Install()
	trap.SetDispatcher(dispatcher)

	log.WithFields(logrus.Fields{
		"component": "boot",
		"entry":     fmt.Sprintf("0x%x", ctx.RealSepc),
		"fdt":       fmt.Sprintf("0x%x", fdtLoadOffset),
		"cmdline":   *cmdline,
	}).Info("entering guest")

	return enterGuest(ctx)
}
