//go:build !riscv64

package trap

// hostFenceI is a no-op stand-in on non-riscv64 build targets.
func hostFenceI() {}
