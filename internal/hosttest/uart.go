package hosttest

import (
	"io"
	"sync"
)

// UART is a host-side stand-in for the guest console, grounded on the
// same transmit-holding-register model a 16550A uses: a byte written by
// the guest goes straight to the backing writer, and the device can be
// told to fire a "transmit complete" interrupt on a timer some time
// later rather than instantly.
type UART struct {
	mu  sync.Mutex
	w   io.Writer
	out []byte

	raiser       *PLIC
	irq          uint32
	nextIRQAt    uint64
	irqScheduled bool
}

// NewUART writes every byte the guest sends to w. raiser and irq are
// optional (nil/0 disables interrupt scheduling); when set, ScheduleIRQ
// arms a pending interrupt that Timer raises once the host clock it is
// driven from reaches the scheduled time.
func NewUART(w io.Writer, raiser *PLIC, irq uint32) *UART {
	return &UART{w: w, raiser: raiser, irq: irq}
}

// OutputByte writes b to the backing writer and records it for tests
// that want to assert on console output directly.
func (u *UART) OutputByte(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.out = append(u.out, b)
	if u.w != nil {
		u.w.Write([]byte{b})
	}
}

// Output returns everything written so far.
func (u *UART) Output() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.out...)
}

// ScheduleIRQ arms a pending interrupt for time at.
func (u *UART) ScheduleIRQ(at uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nextIRQAt = at
	u.irqScheduled = true
}

// NextInterruptTime reports the scheduled interrupt time, if any.
func (u *UART) NextInterruptTime() (uint64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.nextIRQAt, u.irqScheduled
}

// Timer fires the scheduled interrupt through the PLIC fake and
// disarms it. The hart run loop calls this once its clock reaches the
// time NextInterruptTime reported.
func (u *UART) Timer() {
	u.mu.Lock()
	scheduled := u.irqScheduled
	u.irqScheduled = false
	u.mu.Unlock()

	if scheduled && u.raiser != nil && u.irq != 0 {
		u.raiser.RaiseIRQ(u.irq)
	}
}
