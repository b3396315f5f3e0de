package hosttest

import (
	"fmt"
	"sync"
)

// ShadowPageTables is a host-side stand-in for the shadow MMU engine: it
// records the installed satp root and a set of guest page frames that
// are considered mapped, without actually building any native page
// tables. HandlePageFault resolves a fault by adding the containing page
// to that set, the way a real engine would after consulting the guest's
// own (now-shadowed) page tables; callers that want a fault to keep
// propagating to the guest can leave the page unmapped.
type ShadowPageTables struct {
	mu      sync.Mutex
	roots   []uint64
	mapped  map[uint64]bool
	sfences int
	onFault func(vaddr uint64, cause int) (resolved bool, err error)
}

const shadowPageSize = 4096

// NewShadowPageTables returns an engine with nothing mapped and no root
// installed.
func NewShadowPageTables() *ShadowPageTables {
	return &ShadowPageTables{mapped: make(map[uint64]bool)}
}

// InstallRoot records satp as the active root. A real engine would walk
// it lazily on the next fault; this fake only needs to remember it was
// asked to.
func (s *ShadowPageTables) InstallRoot(satp uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = append(s.roots, satp)
	return nil
}

// Roots returns every satp value InstallRoot has been called with, in
// order, for tests to assert reinstall-on-trap-return behavior against.
func (s *ShadowPageTables) Roots() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.roots...)
}

// FlushAll drops every mapping, as a real engine would on a global
// SFENCE.VMA or an ASID-less satp switch.
func (s *ShadowPageTables) FlushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapped = make(map[uint64]bool)
}

// HandleSFenceVMA records the request; this fake always flushes
// everything regardless of the vaddr/asid arguments, since it tracks no
// finer granularity than "mapped or not".
func (s *ShadowPageTables) HandleSFenceVMA(vaddr uint64, asidPresent bool, asid uint64) {
	s.mu.Lock()
	s.sfences++
	s.mu.Unlock()
	s.FlushAll()
}

// SFenceCount returns how many times HandleSFenceVMA has been called.
func (s *ShadowPageTables) SFenceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sfences
}

// SetFaultHandler overrides how HandlePageFault resolves an unmapped
// page, for tests that want to simulate a walk failure (a genuine
// permission violation the guest must see) instead of the default
// always-map behavior.
func (s *ShadowPageTables) SetFaultHandler(f func(vaddr uint64, cause int) (bool, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFault = f
}

// HandlePageFault resolves a fault by mapping the containing page unless
// a custom fault handler says otherwise.
func (s *ShadowPageTables) HandlePageFault(vaddr uint64, cause int) (bool, error) {
	s.mu.Lock()
	handler := s.onFault
	s.mu.Unlock()

	if handler != nil {
		return handler(vaddr, cause)
	}

	page := vaddr &^ (shadowPageSize - 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if page == 0 {
		return false, fmt.Errorf("hosttest: refusing to map the zero page")
	}
	s.mapped[page] = true
	return true, nil
}

// IsMapped reports whether the page containing vaddr has been resolved.
func (s *ShadowPageTables) IsMapped(vaddr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped[vaddr&^(shadowPageSize-1)]
}
