package cpu

import "example.com/rvhv/internal/hv"

// readCSR returns the guest-visible value of csr and reports whether it is
// one this emulator exposes at all.
func readCSR(ctx *hv.Context, csr uint32) (uint64, bool) {
	switch csr {
	case csrSstatus:
		return ctx.CSRs.Sstatus, true
	case csrSie:
		return ctx.CSRs.Sie, true
	case csrSip:
		return ctx.CSRs.Sip, true
	case csrSepc:
		return ctx.CSRs.Sepc, true
	case csrScause:
		return ctx.CSRs.Scause, true
	case csrStval:
		return ctx.CSRs.Stval, true
	case csrStvec:
		return ctx.CSRs.Stvec, true
	case csrSscratch:
		return ctx.CSRs.Sscratch, true
	case csrSatp:
		return ctx.CSRs.Satp, true
	default:
		return 0, false
	}
}

// writeCSR applies a guest write to csr, masking to the bits each register
// actually allows. satp writes additionally invalidate the shadow page
// tables, since the guest just changed its address space. The returned
// error is only ever non-nil for a satp write the shadow-page-table engine
// itself rejected.
func writeCSR(ctx *hv.Context, csr uint32, value uint64) (recognized bool, err error) {
	switch csr {
	case csrSstatus:
		kept := ctx.CSRs.Sstatus &^ hv.StatusWritableMask
		ctx.CSRs.Sstatus = kept | (value & hv.StatusWritableMask)
	case csrSie:
		ctx.CSRs.Sie = value
	case csrSip:
		kept := ctx.CSRs.Sip &^ hv.SipWritableMask
		ctx.CSRs.Sip = kept | (value & hv.SipWritableMask)
	case csrSepc:
		ctx.CSRs.Sepc = value
	case csrScause:
		ctx.CSRs.Scause = value
	case csrStval:
		ctx.CSRs.Stval = value
	case csrStvec:
		ctx.CSRs.Stvec = value
	case csrSscratch:
		ctx.CSRs.Sscratch = value
	case csrSatp:
		ctx.CSRs.Satp = value
		if ctx.SPT != nil {
			ctx.SPT.FlushAll()
			if err := ctx.SPT.InstallRoot(value); err != nil {
				return true, err
			}
		}
	default:
		return false, nil
	}
	return true, nil
}

// CSR addresses this emulator recognizes.
const (
	csrSstatus  = 0x100
	csrSie      = 0x104
	csrStvec    = 0x105
	csrSscratch = 0x140
	csrSepc     = 0x141
	csrScause   = 0x142
	csrStval    = 0x143
	csrSip      = 0x144
	csrSatp     = 0x180
)
