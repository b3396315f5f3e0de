//go:build riscv64

package main

import "example.com/rvhv/internal/hv"

// enterGuestAsm programs sepc and sstatus and executes sret into the
// guest. It does not return in normal operation; the next time this
// hart's Go code runs is inside dispatchFromTrampoline, entered directly
// by hardware on the guest's next trap.
func enterGuestAsm(sepc uint64, sstatus uint64)

// enterGuest starts the guest at ctx.RealSepc in the privilege mode
// ctx.SMode selects. enterGuestAsm loads sscratch with the hypervisor's
// trampoline stack top before the sret.
func enterGuest(ctx *hv.Context) error {
	sstatus := ctx.CSRs.Sstatus
	if ctx.SMode {
		sstatus |= hv.StatusSPP
	} else {
		sstatus &^= hv.StatusSPP
	}
	enterGuestAsm(ctx.RealSepc, sstatus)
	return nil
}
