package cpu

import "example.com/rvhv/internal/hv"

// Forwarded reports that the instruction could not be emulated and the
// illegal-instruction exception must be forwarded to the guest instead.
type Forwarded struct{}

func (Forwarded) Error() string { return "cpu: instruction forwarded to guest" }

// Emulate fetches the instruction at the real sepc from ctx.Memory, using
// sepc directly as an address in that window (no guest page-table
// translation is done; SUM is set in the shadow sstatus for the duration of
// the fetch and then restored), decodes it, and carries out one of the
// privileged forms in the table this package implements. A return of
// Forwarded means the caller should deliver an illegal-instruction
// exception to the guest; any other error is internal/fatal.
func Emulate(ctx *hv.Context) error {
	sum := ctx.CSRs.Sstatus & hv.StatusSUM
	ctx.CSRs.Sstatus |= hv.StatusSUM
	first, err := fetchHalfword(ctx, ctx.RealSepc)
	if err != nil {
		ctx.CSRs.Sstatus = ctx.CSRs.Sstatus&^hv.StatusSUM | sum
		return Forwarded{}
	}

	length := InstructionLength(first)
	var word uint32
	if length == 2 {
		word = uint32(first)
	} else {
		second, err := fetchHalfword(ctx, ctx.RealSepc+2)
		if err != nil {
			ctx.CSRs.Sstatus = ctx.CSRs.Sstatus&^hv.StatusSUM | sum
			return Forwarded{}
		}
		word = uint32(first) | uint32(second)<<16
	}
	ctx.CSRs.Sstatus = ctx.CSRs.Sstatus&^hv.StatusSUM | sum

	d, err := Decode(word)
	if err != nil {
		return Forwarded{}
	}

	advance := true
	switch d.Kind {
	case KindSRET:
		advance = false
		sie := ctx.CSRs.Sstatus&hv.StatusSIE != 0
		spie := ctx.CSRs.Sstatus&hv.StatusSPIE != 0
		if !sie && spie {
			ctx.NoInterrupt = false
		}
		newStatus := ctx.CSRs.Sstatus &^ (hv.StatusSIE | hv.StatusSPIE | hv.StatusSPP)
		if spie {
			newStatus |= hv.StatusSIE
		}
		newStatus |= hv.StatusSPIE
		ctx.SMode = ctx.CSRs.Sstatus&hv.StatusSPP != 0
		ctx.CSRs.Sstatus = newStatus
		ctx.RealSepc = ctx.CSRs.Sepc
		if !ctx.SMode {
			ctx.NoInterrupt = false
		}

	case KindSFENCEVMA:
		if ctx.SPT != nil {
			if d.Rs1 == 0 && d.Rs2 == 0 {
				ctx.SPT.FlushAll()
			} else {
				asidPresent := d.Rs2 != 0
				ctx.SPT.HandleSFenceVMA(ctx.GetRegister(d.Rs1), asidPresent, ctx.GetRegister(d.Rs2))
			}
		}

	case KindCSRRW:
		prev, ok := readCSR(ctx, d.CSR)
		if !ok {
			return Forwarded{}
		}
		if _, err := writeCSR(ctx, d.CSR, ctx.GetRegister(d.Rs1)); err != nil {
			return err
		}
		ctx.SetRegister(d.Rd, prev)

	case KindCSRRS:
		prev, ok := readCSR(ctx, d.CSR)
		if !ok {
			return Forwarded{}
		}
		if d.Rs1 != 0 {
			if _, err := writeCSR(ctx, d.CSR, prev|ctx.GetRegister(d.Rs1)); err != nil {
				return err
			}
		}
		ctx.SetRegister(d.Rd, prev)

	case KindCSRRC:
		prev, ok := readCSR(ctx, d.CSR)
		if !ok {
			return Forwarded{}
		}
		if d.Rs1 != 0 {
			if _, err := writeCSR(ctx, d.CSR, prev&^ctx.GetRegister(d.Rs1)); err != nil {
				return err
			}
		}
		ctx.SetRegister(d.Rd, prev)

	case KindCSRRWI:
		prev, ok := readCSR(ctx, d.CSR)
		if !ok {
			return Forwarded{}
		}
		if _, err := writeCSR(ctx, d.CSR, uint64(d.Imm5)); err != nil {
			return err
		}
		ctx.SetRegister(d.Rd, prev)

	case KindCSRRSI:
		prev, ok := readCSR(ctx, d.CSR)
		if !ok {
			return Forwarded{}
		}
		if d.Imm5 != 0 {
			if _, err := writeCSR(ctx, d.CSR, prev|uint64(d.Imm5)); err != nil {
				return err
			}
		}
		ctx.SetRegister(d.Rd, prev)

	case KindCSRRCI:
		prev, ok := readCSR(ctx, d.CSR)
		if !ok {
			return Forwarded{}
		}
		if d.Imm5 != 0 {
			if _, err := writeCSR(ctx, d.CSR, prev&^uint64(d.Imm5)); err != nil {
				return err
			}
		}
		ctx.SetRegister(d.Rd, prev)

	case KindWFI:
		hostWFI()

	default:
		return Forwarded{}
	}

	if advance {
		ctx.RealSepc += uint64(length)
	}
	return nil
}

// fetchHalfword reads a little-endian 16-bit guest instruction halfword.
func fetchHalfword(ctx *hv.Context, addr uint64) (uint16, error) {
	b, err := ctx.Memory.Slice(addr, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}
