package hv

import "sync"

// VirtualPLIC is the in-scope simulated interrupt controller the guest's
// sip bit 9 (external) is multiplexed through. It tracks only which guest
// IRQ lines are currently pending; claim/complete semantics and priority
// levels belong to the host PLIC this repo forwards from, not here.
type VirtualPLIC struct {
	mu      sync.Mutex
	pending map[uint32]bool
}

// NewVirtualPLIC returns an empty virtual PLIC.
func NewVirtualPLIC() *VirtualPLIC {
	return &VirtualPLIC{pending: make(map[uint32]bool)}
}

// SetPending marks irq as asserted.
func (p *VirtualPLIC) SetPending(irq uint32) {
	p.mu.Lock()
	p.pending[irq] = true
	p.mu.Unlock()
}

// Clear marks irq as no longer asserted.
func (p *VirtualPLIC) Clear(irq uint32) {
	p.mu.Lock()
	delete(p.pending, irq)
	p.mu.Unlock()
}

// InterruptPending reports whether any guest IRQ line is currently
// asserted, which drives whether SEIP is latched into sip.
func (p *VirtualPLIC) InterruptPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, set := range p.pending {
		if set {
			return true
		}
	}
	return false
}

// ShadowPageTables is the out-of-scope guest-to-host page table translation
// engine; this repo only calls into it from the privileged-instruction
// emulator (satp writes, SFENCE.VMA) and the trap dispatcher (page faults).
type ShadowPageTables interface {
	// InstallRoot is called on a guest write to satp, swapping the shadow
	// root to match the guest's chosen page table.
	InstallRoot(satp uint64) error

	// FlushAll invalidates every cached translation, the SFENCE.VMA form
	// with rs1=x0 and rs2=x0.
	FlushAll()

	// HandleSFenceVMA invalidates translations for a single address or
	// address space, the narrower SFENCE.VMA forms.
	HandleSFenceVMA(vaddr uint64, asidPresent bool, asid uint64)

	// HandlePageFault attempts to resolve a stage-2 fault at vaddr for the
	// given access kind (load/store/fetch); it reports whether the fault
	// was resolved without forwarding it to the guest.
	HandlePageFault(vaddr uint64, cause int) (resolved bool, err error)
}

// HostPLIC is the out-of-scope host interrupt controller driver this repo
// only claims completed external interrupts from.
type HostPLIC interface {
	// ClaimAndClear claims the highest-priority pending host IRQ and
	// clears it, returning 0 if none is pending.
	ClaimAndClear() uint32
}

// HostCLINT is the out-of-scope host timer driver this repo reads the
// current time from and programs comparator interrupts through.
type HostCLINT interface {
	GetMtime() uint64
	SetMtimecmp(hartID uint64, value uint64)
}

// UART is the out-of-scope console driver the SBI console_putchar call and
// the timer-driven input poll go through.
type UART interface {
	OutputByte(b byte)
	NextInterruptTime() (uint64, bool)
	Timer()
}
