package trap

import (
	"fmt"

	"example.com/rvhv/internal/hv"
)

// routeInterrupt handles the real interrupt source delivered to this trap,
// per the three recognized low-byte values. Cause 0x5 (supervisor timer)
// is unreachable by construction: M-mode always delivers timers as
// software interrupts in this design.
func (d *Dispatcher) routeInterrupt(source uint64) error {
	switch source {
	case hv.InterruptSoftware:
		d.handleSoftwareInterrupt()
	case hv.InterruptExternal:
		d.handleExternalInterrupt()
	default:
		return fatalError{reason: fmt.Sprintf("unexpected interrupt source 0x%x", source)}
	}

	return d.maybeForwardInterrupt()
}

func (d *Dispatcher) handleSoftwareInterrupt() {
	ctx := d.Ctx
	ctx.CSRs.Sip &^= hv.IPSSIP // clear host SIP bit (relayed through sip here for the single-hart model)

	var mtime uint64
	if ctx.HostCLINT != nil {
		mtime = ctx.HostCLINT.GetMtime()
	}
	if ctx.UART != nil {
		if at, ok := ctx.UART.NextInterruptTime(); ok && at <= mtime {
			ctx.UART.Timer()
		}
	}

	if ctx.CSRs.Mtimecmp <= mtime {
		ctx.CSRs.Sip |= hv.IPSTIP
		ctx.NoInterrupt = false
	}

	next, have := uint64(0), false
	if ctx.UART != nil {
		if t, ok := ctx.UART.NextInterruptTime(); ok && t > mtime {
			next, have = t, true
		}
	}
	if ctx.CSRs.Mtimecmp > mtime {
		if !have || ctx.CSRs.Mtimecmp < next {
			next, have = ctx.CSRs.Mtimecmp, true
		}
	}
	if have && ctx.HostCLINT != nil {
		ctx.HostCLINT.SetMtimecmp(0, next)
	}
}

func (d *Dispatcher) handleExternalInterrupt() {
	ctx := d.Ctx
	if ctx.HostPLIC == nil {
		return
	}
	hostIRQ := ctx.HostPLIC.ClaimAndClear()
	if hostIRQ == 0 {
		return
	}
	guestIRQ, ok := ctx.IRQMap[hostIRQ]
	if !ok || guestIRQ == 0 {
		return
	}
	if ctx.VirtualPLIC != nil {
		ctx.VirtualPLIC.SetPending(guestIRQ)
		if ctx.VirtualPLIC.InterruptPending() {
			ctx.CSRs.Sip |= hv.IPSEIP
			ctx.NoInterrupt = false
		}
	}
}

// maybeForwardInterrupt is the tail every trap path runs before returning
// to the guest: latch SEIP if the virtual PLIC has work, then either
// deliver a virtual interrupt trap (by priority SEIP > STIP > SSIP) or
// remember that this trap already considered it.
func (d *Dispatcher) maybeForwardInterrupt() error {
	ctx := d.Ctx
	if ctx.NoInterrupt {
		return nil
	}

	if ctx.CSRs.Sip&hv.IPSEIP == 0 && ctx.VirtualPLIC != nil && ctx.VirtualPLIC.InterruptPending() {
		ctx.CSRs.Sip |= hv.IPSEIP
	}

	pendingDelivery := (!ctx.SMode || ctx.CSRs.Sstatus&hv.StatusSIE != 0) &&
		(ctx.CSRs.Sie&ctx.CSRs.Sip) != 0

	if !pendingDelivery {
		ctx.NoInterrupt = true
		return nil
	}

	// Priority is gated on sie&sip, not sip alone: a pending bit the guest
	// has masked off in sie never wins priority over a lower bit it still
	// has enabled. This differs from sip-only priority when a higher bit is
	// pending but masked while a lower enabled bit is also pending: the
	// lower, enabled bit is the one delivered.
	var cause uint64
	switch {
	case ctx.CSRs.Sie&ctx.CSRs.Sip&hv.IESEIE != 0:
		cause = hv.InterruptExternal
	case ctx.CSRs.Sie&ctx.CSRs.Sip&hv.IESTIE != 0:
		cause = hv.InterruptTimer
	case ctx.CSRs.Sie&ctx.CSRs.Sip&hv.IESSIE != 0:
		cause = hv.InterruptSoftware
	default:
		ctx.NoInterrupt = true
		return nil
	}

	ctx.CSRs.Sepc = ctx.RealSepc
	ctx.CSRs.Scause = hv.InterruptBit | cause
	ctx.CSRs.Stval = 0
	d.pushVirtualTrapState()

	mode := ctx.CSRs.Stvec & 0x3
	base := ctx.CSRs.Stvec &^ 0x3
	switch mode {
	case 0:
		ctx.RealSepc = base
	case 1:
		ctx.RealSepc = base + 4*cause
	default:
		return fatalError{reason: fmt.Sprintf("unsupported stvec mode %d", mode)}
	}
	return nil
}
