package hosttest

import "sync"

// CLINT is a host-side stand-in for the core-local interruptor: a free
// running mtime counter and one mtimecmp register per hart. Unlike the
// real device, time only advances when a test calls Advance; nothing
// here reads the wall clock.
type CLINT struct {
	mu       sync.Mutex
	mtime    uint64
	mtimecmp map[uint64]uint64
}

// NewCLINT returns a CLINT with mtime at 0 and every hart's mtimecmp at
// its maximum value (armed timers start disarmed, matching a real CLINT's
// power-on state).
func NewCLINT() *CLINT {
	return &CLINT{mtimecmp: make(map[uint64]uint64)}
}

// GetMtime returns the current counter value.
func (c *CLINT) GetMtime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtime
}

// SetMtimecmp programs hartID's compare register, as the set_timer SBI
// call does.
func (c *CLINT) SetMtimecmp(hartID uint64, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtimecmp[hartID] = value
}

// Advance moves mtime forward by delta. Tests use it to simulate the
// passage of time between SBI set_timer calls.
func (c *CLINT) Advance(delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtime += delta
}

// Expired reports whether hartID's mtimecmp has been reached or passed
// by the current mtime.
func (c *CLINT) Expired(hartID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmp, armed := c.mtimecmp[hartID]
	return armed && c.mtime >= cmp
}
