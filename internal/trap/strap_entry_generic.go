//go:build !riscv64

package trap

import "example.com/rvhv/internal/hv"

// Install is a no-op on non-riscv64 build targets; there is no real stvec
// to program. It exists so cmd/rvhv links on a development machine.
func Install() {}

// SetContext is a no-op on non-riscv64 build targets; the property suite
// calls the Dispatcher directly instead.
func SetContext(ctx *hv.Context) {}

// SetDispatcher is a no-op on non-riscv64 build targets.
func SetDispatcher(d *Dispatcher) {}
