//go:build riscv64

package cpu

// hostWFI executes the real WFI instruction, blocking the physical hart
// until the next interrupt the host considers enabled.
func hostWFI() {
	wfi()
}

func wfi()
