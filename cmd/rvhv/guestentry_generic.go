//go:build !riscv64

package main

import (
	"fmt"

	"example.com/rvhv/internal/hv"
)

// enterGuest always returns an error on non-riscv64 build targets: there is
// no real sepc/sstatus/sret to program. It exists so cmd/rvhv links and its flag
// parsing and composition can be exercised on a development machine.
func enterGuest(ctx *hv.Context) error {
	return fmt.Errorf("rvhv: cannot enter a guest on this build target (real sret requires riscv64)")
}
