// Package trap dispatches S-mode traps: classifying scause, handing
// illegal instructions to the privileged-instruction emulator, virtio MMIO
// and queue-page faults to the virtio transport, environment calls to the
// SBI surface, and everything else either to the external page-fault
// handler or onward to the guest as a forwarded exception or interrupt.
package trap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"example.com/rvhv/internal/cpu"
	"example.com/rvhv/internal/hv"
	"example.com/rvhv/internal/virtio"
)

// fatalError wraps a condition the real hypervisor would log and halt on.
// Recoverable so the property suite can assert on fatal conditions without
// terminating the test binary; production code still treats it as fatal.
type fatalError struct {
	reason string
	err    error
}

func (f fatalError) Error() string {
	if f.err != nil {
		return fmt.Sprintf("trap: fatal: %s: %v", f.reason, f.err)
	}
	return fmt.Sprintf("trap: fatal: %s", f.reason)
}

func (f fatalError) Unwrap() error { return f.err }

// Dispatcher holds the collaborators a single hart's trap handling needs
// beyond the per-hart Context itself.
type Dispatcher struct {
	Ctx *hv.Context
	Bus *virtio.Bus
}

// Dispatch classifies and handles one trap. It is the function the entry
// trampoline (real or portable stand-in) calls with the guest's registers
// already saved into Ctx.
func (d *Dispatcher) Dispatch() (err error) {
	ctx := d.Ctx
	ctx.Lock()
	defer ctx.Unlock()
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(fatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()

	if ctx.RealSPP {
		logrus.WithFields(logrus.Fields{
			"component": "trap",
			"sepc":      fmt.Sprintf("0x%x", ctx.RealSepc),
			"stval":     fmt.Sprintf("0x%x", ctx.RealStval),
			"scause":    fmt.Sprintf("0x%x", ctx.RealScause),
			"regs":      ctx.Regs,
		}).Error("trap from within the hypervisor")
		return fatalError{reason: "hypervisor-originating trap"}
	}

	cause := ctx.RealScause
	if cause&hv.InterruptBit != 0 {
		err = d.routeInterrupt(cause &^ hv.InterruptBit)
	} else {
		err = d.routeException(cause)
	}
	if err != nil {
		return err
	}

	if ctx.SPT != nil {
		if err := ctx.SPT.InstallRoot(ctx.CSRs.Satp); err != nil {
			return fatalError{reason: "shadow root reinstall", err: err}
		}
	}
	return nil
}

func (d *Dispatcher) routeException(cause uint64) error {
	ctx := d.Ctx

	switch cause {
	case hv.CauseInstructionPageFault, hv.CauseLoadPageFault, hv.CauseStorePageFault:
		return d.routePageFault(cause)

	case hv.CauseIllegalInstruction:
		if !ctx.SMode {
			d.forwardException(cause)
			return nil
		}
		if err := cpu.Emulate(ctx); err != nil {
			if _, ok := err.(cpu.Forwarded); ok {
				// Returns without a maybeForwardInterrupt pass on this path,
				// unlike the successful-emulation path below: the guest trap
				// just pushed here will be re-entered and re-evaluate its own
				// interrupt state on its next trap, so no pending interrupt
				// is lost, only delivered one trap later than it could be.
				d.forwardException(cause)
				return nil
			}
			return fatalError{reason: "privileged-instruction emulation", err: err}
		}
		return d.maybeForwardInterrupt()

	case hv.CauseEnvCall:
		if !ctx.SMode {
			d.forwardException(cause)
			return nil
		}
		if err := d.handleSBI(); err != nil {
			return err
		}
		return d.maybeForwardInterrupt()

	default:
		d.forwardException(cause)
		return nil
	}
}

// routePageFault tries the virtio emulators first (addresses they manage
// are never validly mapped through the shadow page tables), then falls
// back to the external shadow-page-table engine, then forwards to the
// guest as a last resort.
func (d *Dispatcher) routePageFault(cause uint64) error {
	ctx := d.Ctx
	gpa := ctx.RealStval

	if d.Bus != nil {
		insn, ferr := fetchInstruction(ctx)
		switch {
		case ferr != nil:
			// fall through to the SPT / forward path below
		case d.Bus.InMMIOWindow(gpa):
			length, err := d.Bus.HandleMMIO(ctx, gpa, insn)
			if err != nil {
				return fatalError{reason: "virtio mmio emulation", err: err}
			}
			ctx.RealSepc += uint64(length)
			return d.maybeForwardInterrupt()
		case d.Bus.IsQueuePage(gpa):
			length, err := d.Bus.HandleQueuePage(ctx, gpa, insn)
			if err != nil {
				return fatalError{reason: "virtio queue-page emulation", err: err}
			}
			ctx.RealSepc += uint64(length)
			return d.maybeForwardInterrupt()
		}
	}

	if ctx.SPT != nil {
		resolved, err := ctx.SPT.HandlePageFault(gpa, int(cause))
		if err != nil {
			return fatalError{reason: "shadow page table fault handling", err: err}
		}
		if resolved {
			return d.maybeForwardInterrupt()
		}
	}

	d.forwardException(cause)
	return nil
}

// fetchInstruction reads the 16 or 32-bit word at the real sepc, the
// instruction word virtio handling needs (the dispatcher is responsible
// for supplying it, per the MMIO surface contract).
func fetchInstruction(ctx *hv.Context) (uint32, error) {
	lo, err := ctx.Memory.Slice(ctx.RealSepc, 2)
	if err != nil {
		return 0, err
	}
	first := uint16(lo[0]) | uint16(lo[1])<<8
	if first&0x3 != 0x3 {
		return uint32(first), nil
	}
	hi, err := ctx.Memory.Slice(ctx.RealSepc+2, 2)
	if err != nil {
		return 0, err
	}
	second := uint16(hi[0]) | uint16(hi[1])<<8
	return uint32(first) | uint32(second)<<16, nil
}

// forwardException installs a virtual trap at the guest's stvec carrying
// the real exception, per the forwarding-exceptions construction: the
// redirect always targets stvec's base, never a vectored offset.
func (d *Dispatcher) forwardException(cause uint64) {
	ctx := d.Ctx
	ctx.CSRs.Sepc = ctx.RealSepc
	ctx.CSRs.Scause = cause
	ctx.CSRs.Stval = ctx.RealStval
	d.pushVirtualTrapState()

	if ctx.CSRs.Stvec&0x3 >= 2 {
		panic(fatalError{reason: fmt.Sprintf("unsupported stvec mode %d", ctx.CSRs.Stvec&0x3)})
	}
	ctx.RealSepc = ctx.CSRs.Stvec &^ 0x3
}

// pushVirtualTrapState is the shared half of exception and interrupt
// forwarding: push SIE, record the guest's current mode into SPP, and
// switch to S-mode. Redirecting the real sepc is left to the caller,
// since interrupts and exceptions differ on vectored-mode offsetting.
func (d *Dispatcher) pushVirtualTrapState() {
	ctx := d.Ctx
	sie := ctx.CSRs.Sstatus&hv.StatusSIE != 0
	status := ctx.CSRs.Sstatus &^ (hv.StatusSIE | hv.StatusSPIE | hv.StatusSPP)
	if sie {
		status |= hv.StatusSPIE
	}
	if ctx.SMode {
		status |= hv.StatusSPP
	}
	ctx.CSRs.Sstatus = status
	ctx.SMode = true
}
