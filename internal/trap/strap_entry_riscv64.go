//go:build riscv64

package trap

import "example.com/rvhv/internal/hv"

// strapEntry is the assembly trampoline installed at stvec. It saves the
// guest's general-purpose registers (x1, x3..x31) around a call into
// dispatchFromTrampoline, using sscratch to stash and recover the guest's
// x2 while the hypervisor runs on its own fixed stack, then executes sret.
func strapEntry()

// Install points stvec (direct mode) at strapEntry. Called once per hart
// during startup.
func Install()

// currentDispatcher is the single hart's trap dispatcher the trampoline
// calls into; set once by SetDispatcher before the guest is started.
var currentDispatcher *Dispatcher

// SetDispatcher registers the dispatcher the trampoline invokes on every
// trap. This hypervisor runs exactly one virtual hart per physical hart,
// so a single package-level pointer is the whole of the registration
// needed.
func SetDispatcher(d *Dispatcher) { currentDispatcher = d }

// SetContext is a convenience for callers that built the Dispatcher first
// and only need to swap its Context, e.g. between test runs.
func SetContext(ctx *hv.Context) { currentDispatcher.Ctx = ctx }

// dispatchFromTrampoline is called by the assembly entry with the guest's
// registers already saved into currentDispatcher.Ctx.Regs by the
// trampoline.
func dispatchFromTrampoline() {
	if err := currentDispatcher.Dispatch(); err != nil {
		panic(err)
	}
}
