// Package cpu emulates the handful of privileged RISC-V instructions a
// type-1 hypervisor must trap and run on the guest's behalf: SRET,
// SFENCE.VMA, the six CSR access forms, and WFI.
package cpu

// Kind identifies which privileged form a decoded instruction is.
type Kind int

const (
	KindUnknown Kind = iota
	KindSRET
	KindSFENCEVMA
	KindCSRRW
	KindCSRRS
	KindCSRRC
	KindCSRRWI
	KindCSRRSI
	KindCSRRCI
	KindWFI
)

// Decoded is the fixed set of fields any of the recognized forms needs.
// Unused fields for a given Kind are zero.
type Decoded struct {
	Kind Kind
	Rd   uint32
	Rs1  uint32
	Rs2  uint32
	CSR  uint32
	Imm5 uint32 // zero-extended rs1 field, used as the immediate by *I forms
}

const systemOpcode = 0x73

// field extraction, 32-bit RISC-V instruction layout (bit-layout
// conventions follow tinyrange-cc's rv64 package).
func opcode(insn uint32) uint32 { return insn & 0x7f }
func rd(insn uint32) uint32     { return (insn >> 7) & 0x1f }
func funct3(insn uint32) uint32 { return (insn >> 12) & 0x7 }
func rs1(insn uint32) uint32    { return (insn >> 15) & 0x1f }
func rs2(insn uint32) uint32    { return (insn >> 20) & 0x1f }
func funct7(insn uint32) uint32 { return (insn >> 25) & 0x7f }
func imm12(insn uint32) uint32  { return (insn >> 20) & 0xfff }

// InstructionLength reports whether the instruction starting with this
// halfword is 2 bytes (compressed) or 4 bytes, per the RVC rule: the low
// two bits of the first halfword are 0b11 for a full-width instruction,
// anything else for a 16-bit compressed one.
func InstructionLength(firstHalfword uint16) int {
	if firstHalfword&0x3 == 0x3 {
		return 4
	}
	return 2
}

// Decode recognizes SRET, SFENCE.VMA, the six CSR forms, and WFI among
// 32-bit SYSTEM-opcode instructions. Anything else, including a
// compressed instruction (this emulator implements none of the
// privileged forms as RVC), yields ErrDecodeFailed.
func Decode(insn uint32) (Decoded, error) {
	if opcode(insn) != systemOpcode {
		return Decoded{}, ErrDecodeFailed
	}

	f3 := funct3(insn)
	if f3 == 0 {
		switch imm12(insn) {
		case 0x102:
			if rd(insn) == 0 && rs1(insn) == 0 {
				return Decoded{Kind: KindSRET}, nil
			}
		case 0x105:
			if rd(insn) == 0 && rs1(insn) == 0 {
				return Decoded{Kind: KindWFI}, nil
			}
		}
		if funct7(insn) == 0x09 {
			return Decoded{Kind: KindSFENCEVMA, Rs1: rs1(insn), Rs2: rs2(insn)}, nil
		}
		return Decoded{}, ErrDecodeFailed
	}

	d := Decoded{Rd: rd(insn), Rs1: rs1(insn), CSR: imm12(insn), Imm5: rs1(insn)}
	switch f3 {
	case 0b001:
		d.Kind = KindCSRRW
	case 0b010:
		d.Kind = KindCSRRS
	case 0b011:
		d.Kind = KindCSRRC
	case 0b101:
		d.Kind = KindCSRRWI
	case 0b110:
		d.Kind = KindCSRRSI
	case 0b111:
		d.Kind = KindCSRRCI
	default:
		return Decoded{}, ErrDecodeFailed
	}
	return d, nil
}
