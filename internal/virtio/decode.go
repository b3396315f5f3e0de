// Package virtio emulates a virtio-mmio v1 transport: the register window
// each device exposes and the descriptor-ring pages the hypervisor must
// rewrite addresses within once a queue is armed.
package virtio

// Width identifies the access width and signedness of a decoded RV64I
// load or store against an emulated MMIO or queue-page address.
type Width int

const (
	WidthByte Width = iota
	WidthHalf
	WidthWord
	WidthDouble
	WidthByteUnsigned
	WidthHalfUnsigned
	WidthWordUnsigned
)

// LoadStore is the part of a decoded RV64I load or store this package
// needs: whether it is a store, the width, and which register carries the
// destination (load) or source (store) value.
type LoadStore struct {
	Store bool
	Width Width
	Reg   uint32 // rd for a load, rs2 for a store
}

const (
	opLoad  = 0x03
	opStore = 0x23
)

func opcode(insn uint32) uint32 { return insn & 0x7f }
func rd(insn uint32) uint32     { return (insn >> 7) & 0x1f }
func funct3(insn uint32) uint32 { return (insn >> 12) & 0x7 }
func rs2(insn uint32) uint32    { return (insn >> 20) & 0x1f }

// InstructionLength reports 2 or 4 bytes per the RVC low-bits rule, same
// convention the privileged-instruction emulator uses.
func InstructionLength(firstHalfword uint16) int {
	if firstHalfword&0x3 == 0x3 {
		return 4
	}
	return 2
}

// DecodeLoadStore recognizes the RV64I load and store forms the MMIO and
// queue-page emulation needs: LD/LWU/LHU/LBU/LW/LH/LB and SD/SW/SH/SB.
func DecodeLoadStore(insn uint32) (LoadStore, error) {
	switch opcode(insn) {
	case opLoad:
		var w Width
		switch funct3(insn) {
		case 0b000:
			w = WidthByte
		case 0b001:
			w = WidthHalf
		case 0b010:
			w = WidthWord
		case 0b011:
			w = WidthDouble
		case 0b100:
			w = WidthByteUnsigned
		case 0b101:
			w = WidthHalfUnsigned
		case 0b110:
			w = WidthWordUnsigned
		default:
			return LoadStore{}, ErrDecodeFailed
		}
		return LoadStore{Store: false, Width: w, Reg: rd(insn)}, nil

	case opStore:
		var w Width
		switch funct3(insn) {
		case 0b000:
			w = WidthByte
		case 0b001:
			w = WidthHalf
		case 0b010:
			w = WidthWord
		case 0b011:
			w = WidthDouble
		default:
			return LoadStore{}, ErrDecodeFailed
		}
		return LoadStore{Store: true, Width: w, Reg: rs2(insn)}, nil

	default:
		return LoadStore{}, ErrDecodeFailed
	}
}
