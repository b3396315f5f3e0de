package hv

import "sync"

// CSRs is the shadow of the guest's visible S-mode control and status
// registers. mtimecmp is virtual — the guest reaches it only through the
// set_timer SBI call, never a CSR instruction.
type CSRs struct {
	Sstatus  uint64
	Sie      uint64
	Sip      uint64
	Sepc     uint64
	Scause   uint64
	Stval    uint64
	Stvec    uint64
	Sscratch uint64
	Satp     uint64
	Mtimecmp uint64
}

// Context is the per-virtual-hart state the trap dispatcher reads and
// mutates. It is created once per hart and never touched outside the trap
// handler (see the concurrency model), except for the diagnostic dump on a
// fatal, hypervisor-originating trap, which is why Lock carries a
// non-poisoning ForceUnlock.
type Context struct {
	lock contextLock

	// Saved general-purpose registers x1, x3..x31. x0 always reads zero and
	// discards writes; x2 is not stored here because it is snapshotted
	// through RealSscratch instead (see GetRegister/SetRegister).
	Regs [32]uint64

	CSRs CSRs

	// RealSscratch is the guest's x2 (sp), saved and restored via the real
	// sscratch CSR by the entry trampoline. It is distinct from
	// CSRs.Sscratch, the guest-visible shadow CSR a guest csrrw sscratch
	// instruction reads and writes; conflating the two turns the classic
	// trap-entry idiom "csrrw sp, sscratch, sp" into a no-op that destroys
	// the guest's stack pointer.
	RealSscratch uint64

	// Real* mirror the physical S-mode trap registers the entry trampoline
	// captured on this trap and will restore (or overwrite, to redirect a
	// forwarded trap) before its sret. They are distinct from CSRs.Sepc and
	// friends, which are the guest-visible shadow registers a guest CSR
	// instruction reads and writes; the two only agree once a virtual trap
	// has been constructed and is about to be delivered.
	RealSepc   uint64
	RealScause uint64
	RealStval  uint64
	RealSPP    bool

	// SMode is true when the guest believes itself to be running in S-mode
	// (as opposed to U-mode, the privilege it is really scheduled at).
	SMode bool

	// NoInterrupt latches true once a trap path has already decided not to
	// forward a virtual interrupt this trap, so the dispatcher's tail call
	// to the forwarding logic does not redundantly reconsider it.
	NoInterrupt bool

	Memory GuestMemory

	VirtualPLIC *VirtualPLIC

	SPT       ShadowPageTables
	HostPLIC  HostPLIC
	HostCLINT HostCLINT
	UART      UART

	// IRQMap translates a host PLIC IRQ number to the guest-visible IRQ
	// number the virtual PLIC should raise; zero means "not forwarded."
	IRQMap map[uint32]uint32
}

// Lock acquires the context's mutex for the duration of trap handling.
func (c *Context) Lock() { c.lock.Lock() }

// Unlock releases the context's mutex.
func (c *Context) Unlock() { c.lock.Unlock() }

// ForceUnlock releases the mutex unconditionally, even if it believes itself
// unlocked already. It exists solely for the pre-halt diagnostic dump on a
// fatal, hypervisor-originating trap, where the handler may already hold the
// lock and must still be able to print state without deadlocking.
func (c *Context) ForceUnlock() { c.lock.ForceUnlock() }

// GetRegister reads guest general-purpose register i (0..31). x0 is
// hardwired to zero; x2 reads the guest's saved stack pointer.
func (c *Context) GetRegister(i uint32) uint64 {
	switch i {
	case 0:
		return 0
	case 2:
		return c.RealSscratch
	default:
		return c.Regs[i]
	}
}

// SetRegister writes guest general-purpose register i. Writes to x0 are
// discarded; x2 writes update the guest's saved stack pointer.
func (c *Context) SetRegister(i uint32, v uint64) {
	switch i {
	case 0:
		return
	case 2:
		c.RealSscratch = v
	default:
		c.Regs[i] = v
	}
}

// contextLock is a mutex with a non-poisoning force-unlock, used so a panic
// path that already holds the lock (or isn't sure) can still release it
// before dumping diagnostics, without the double-unlock panic a bare
// sync.Mutex would give.
type contextLock struct {
	mu     sync.Mutex
	locked bool
	meta   sync.Mutex // guards `locked` itself
}

func (l *contextLock) Lock() {
	l.mu.Lock()
	l.meta.Lock()
	l.locked = true
	l.meta.Unlock()
}

func (l *contextLock) Unlock() {
	l.meta.Lock()
	l.locked = false
	l.meta.Unlock()
	l.mu.Unlock()
}

func (l *contextLock) ForceUnlock() {
	l.meta.Lock()
	wasLocked := l.locked
	l.locked = false
	l.meta.Unlock()
	if wasLocked {
		l.mu.Unlock()
	}
}
