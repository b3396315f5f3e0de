//go:build riscv64

package trap

func hostFenceI() {
	fenceI()
}

func fenceI()
