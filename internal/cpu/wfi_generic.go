//go:build !riscv64

package cpu

// hostWFI is a no-op stand-in on non-riscv64 build targets, where there is
// no real WFI instruction to execute. It exists so the property suite can
// exercise the rest of the emulation table on a development machine.
func hostWFI() {}
