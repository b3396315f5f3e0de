package virtio

import (
	"fmt"

	"example.com/rvhv/internal/hv"
)

// HandleQueuePage services a guest trap against a page previously recorded
// as a queue page. Within a descriptor's addr field the access is
// translated between the guest's own view (guest-physical) and the value
// actually stored in the ring (guest-physical + guest_shift); everywhere
// else on the page it is a plain mirrored load/store against guest memory.
func (b *Bus) HandleQueuePage(ctx *hv.Context, gpa uint64, insn uint32) (length int, err error) {
	ls, err := DecodeLoadStore(insn)
	if err != nil {
		return 0, err
	}
	length = 4
	if uint16(insn)&0x3 != 0x3 {
		length = 2
	}

	b.mu.Lock()
	ref, ok := b.queuePages[gpa&^0xfff]
	b.mu.Unlock()
	if !ok {
		return length, ErrDescriptorOutOfRange
	}
	b.mu.Lock()
	q := b.Devices[ref.device].Queues[ref.queue]
	b.mu.Unlock()

	if inDescriptorAddrField(q, gpa) {
		return length, b.handleDescriptorAddr(ctx, gpa, ls)
	}
	return length, handleMirroredAccess(ctx, gpa, ls)
}

// inDescriptorAddrField reports whether gpa falls within the addr field
// (the first 8 bytes) of some descriptor in q's ring.
func inDescriptorAddrField(q Queue, gpa uint64) bool {
	if gpa < q.GuestPA {
		return false
	}
	end := q.GuestPA + uint64(q.Size)*descriptorSize
	if gpa >= end {
		return false
	}
	return (gpa-q.GuestPA)%descriptorSize < 8
}

func (b *Bus) handleDescriptorAddr(ctx *hv.Context, gpa uint64, ls LoadStore) error {
	if ls.Width != WidthDouble {
		return fmt.Errorf("virtio: non-doubleword access to descriptor addr field at 0x%x", gpa)
	}
	if ls.Store {
		src := ctx.GetRegister(ls.Reg)
		var stored uint64
		switch {
		case src == 0:
			stored = 0
		case ctx.Memory.InRegion(src):
			stored = src + b.GuestShift
		default:
			return ErrStoreOutsideGuestMemory
		}
		return ctx.Memory.WriteU64(gpa, stored)
	}

	v, err := ctx.Memory.ReadU64(gpa)
	if err != nil {
		return err
	}
	ctx.SetRegister(ls.Reg, v-b.GuestShift)
	return nil
}

// handleMirroredAccess implements the straight byte-level mirror used for
// the len|flags|next doubleword of each descriptor and the avail/used ring
// headers: read the containing aligned 8-byte word, slice it by the
// access's byte offset, sign/zero-extend, or for a store splice the new
// value in and write the word back.
func handleMirroredAccess(ctx *hv.Context, gpa uint64, ls LoadStore) error {
	wordBase := gpa &^ 7
	word, err := ctx.Memory.ReadU64(wordBase)
	if err != nil {
		return err
	}
	shift := (gpa & 7) * 8

	if ls.Store {
		value := ctx.GetRegister(ls.Reg)
		var mask uint64
		switch ls.Width {
		case WidthByte, WidthByteUnsigned:
			mask = 0xff
		case WidthHalf, WidthHalfUnsigned:
			mask = 0xffff
		case WidthWord, WidthWordUnsigned:
			mask = 0xffffffff
		case WidthDouble:
			mask = ^uint64(0)
		}
		word = (word &^ (mask << shift)) | ((value & mask) << shift)
		return ctx.Memory.WriteU64(wordBase, word)
	}

	raw := word >> shift
	var value uint64
	switch ls.Width {
	case WidthByte:
		value = uint64(int64(int8(byte(raw))))
	case WidthByteUnsigned:
		value = uint64(byte(raw))
	case WidthHalf:
		value = uint64(int64(int16(uint16(raw))))
	case WidthHalfUnsigned:
		value = uint64(uint16(raw))
	case WidthWord:
		value = uint64(int64(int32(uint32(raw))))
	case WidthWordUnsigned:
		value = uint64(uint32(raw))
	case WidthDouble:
		value = raw
	}
	ctx.SetRegister(ls.Reg, value)
	return nil
}
