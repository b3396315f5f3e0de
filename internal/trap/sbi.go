package trap

import "example.com/rvhv/internal/hv"

// SBI function numbers, keyed by the legacy calling convention (function
// in x17/a7, arguments in x10../a0..).
const (
	sbiSetTimer         = 0
	sbiConsolePutchar   = 1
	sbiFenceI           = 5
	sbiRemoteSFenceVMA  = 6
	sbiRemoteSFenceASID = 7
)

// handleSBI services an environment call from S-mode. Only the five
// listed function numbers are accepted; anything else is fatal. After a
// successful call the real sepc is advanced by 4 (ECALL is always 4
// bytes), matching every other SBI implementation's calling convention.
func (d *Dispatcher) handleSBI() error {
	ctx := d.Ctx
	fn := ctx.GetRegister(17)

	switch fn {
	case sbiSetTimer:
		ctx.CSRs.Sip &^= hv.IPSTIP
		ctx.CSRs.Mtimecmp = ctx.GetRegister(10)
		if ctx.HostCLINT != nil {
			ctx.HostCLINT.SetMtimecmp(0, ctx.CSRs.Mtimecmp)
		}

	case sbiConsolePutchar:
		if ctx.UART != nil {
			ctx.UART.OutputByte(byte(ctx.GetRegister(10)))
		}

	case sbiFenceI:
		hostFenceI()

	case sbiRemoteSFenceVMA, sbiRemoteSFenceASID:
		if ctx.SPT != nil {
			ctx.SPT.FlushAll()
		}

	default:
		return fatalError{reason: "unknown SBI call"}
	}

	ctx.RealSepc += 4
	return nil
}
