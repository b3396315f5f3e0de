// Package hosttest provides host-side fakes for the interfaces internal/hv
// declares for the physical devices the hypervisor leans on: the platform
// interrupt controller, the core-local timer, the console UART, and the
// shadow page tables. They are the collaborators cmd/rvhv wires in on every
// build target; a real port would replace them with drivers
// that talk to the actual PLIC, CLINT and UART MMIO windows.
package hosttest

import "sync"

// PLIC is a host-side stand-in for a RISC-V platform-level interrupt
// controller. It tracks one pending bit per source and claims the
// lowest-numbered pending source first, mirroring the fixed priority a
// single-priority-level PLIC gives its sources.
type PLIC struct {
	mu      sync.Mutex
	pending map[uint32]bool
}

// NewPLIC returns a PLIC with nothing pending.
func NewPLIC() *PLIC {
	return &PLIC{pending: make(map[uint32]bool)}
}

// RaiseIRQ marks irq pending. Call it from wherever a fake device's
// interrupt line would assert in a real host.
func (p *PLIC) RaiseIRQ(irq uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[irq] = true
}

// ClaimAndClear returns the lowest-numbered pending source and clears it,
// or 0 if nothing is pending. 0 is never a legal interrupt ID for a real
// PLIC, so it doubles as the no-interrupt sentinel the hv.HostPLIC
// contract expects.
func (p *PLIC) ClaimAndClear() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var claimed uint32
	for irq, set := range p.pending {
		if !set {
			continue
		}
		if claimed == 0 || irq < claimed {
			claimed = irq
		}
	}
	if claimed != 0 {
		delete(p.pending, claimed)
	}
	return claimed
}

// HasPending reports whether any source is currently asserted, without
// claiming it. Tests use this to assert a RaiseIRQ took effect.
func (p *PLIC) HasPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, set := range p.pending {
		if set {
			return true
		}
	}
	return false
}
