package virtio

import (
	"encoding/binary"
	"fmt"

	"example.com/rvhv/internal/hv"
)

// HandleMMIO services a guest trap against a device's register window.
// gpa is the faulting guest-physical address and insn the instruction the
// trap dispatcher fetched at the guest's real sepc. After handling, the
// caller is expected to advance sepc by the decoded instruction length
// (also returned, for that purpose).
func (b *Bus) HandleMMIO(ctx *hv.Context, gpa uint64, insn uint32) (length int, err error) {
	ls, err := DecodeLoadStore(insn)
	if err != nil {
		return 0, err
	}
	length = 4
	if uint16(insn)&0x3 != 0x3 {
		length = 2
	}

	idx := int((gpa - WindowBase) / WindowStride)
	b.mu.Lock()
	if idx < 0 || idx >= len(b.Devices) {
		b.mu.Unlock()
		return length, fmt.Errorf("virtio: mmio fault at 0x%x outside attached devices", gpa)
	}
	dev := b.Devices[idx]
	b.mu.Unlock()

	offset := gpa & 0xfff

	if ls.Store {
		return length, b.handleStore(ctx, dev, idx, offset, ls)
	}
	return length, b.handleLoad(ctx, dev, offset, ls)
}

func (b *Bus) handleLoad(ctx *hv.Context, dev *Device, offset uint64, ls LoadStore) error {
	wordOff := offset &^ 3
	word := binary.LittleEndian.Uint32(dev.regs[wordOff : wordOff+4])

	switch wordOff {
	case regDeviceFeatures:
		word &^= featureIndirectDesc
	case regQueueNumMax:
		if word > queueNumMaxClamp {
			word = queueNumMaxClamp
		}
	}

	var value uint64
	switch ls.Width {
	case WidthWord, WidthWordUnsigned:
		value = uint64(word)
	case WidthByteUnsigned:
		if offset < configSpaceOffset {
			return fmt.Errorf("virtio: byte load at 0x%x outside config space", offset)
		}
		shift := (offset & 3) * 8
		value = uint64(byte(word >> shift))
	case WidthByte:
		if offset < configSpaceOffset {
			return fmt.Errorf("virtio: byte load at 0x%x outside config space", offset)
		}
		shift := (offset & 3) * 8
		value = uint64(int8(byte(word >> shift)))
	default:
		return fmt.Errorf("virtio: unsupported mmio load width at 0x%x", offset)
	}

	ctx.SetRegister(ls.Reg, value)
	return nil
}

func (b *Bus) handleStore(ctx *hv.Context, dev *Device, deviceIdx int, offset uint64, ls LoadStore) error {
	if ls.Width != WidthWord {
		return fmt.Errorf("virtio: unsupported mmio store width at 0x%x", offset)
	}
	value := uint32(ctx.GetRegister(ls.Reg))
	wordOff := offset &^ 3
	binary.LittleEndian.PutUint32(dev.regs[wordOff:wordOff+4], value)

	switch wordOff {
	case regQueueSel:
		if value >= maxQueuesPerDevice {
			return ErrInvalidQueueSel
		}
		dev.sel = value

	case regQueueNum:
		q := &dev.Queues[dev.sel]
		if q.armed() {
			return ErrQueueAlreadyArmed
		}
		q.Size = value

	case regQueuePFN:
		return b.armQueue(ctx, dev, deviceIdx, value)
	}
	return nil
}

// armQueue implements first-arming of the currently selected queue: it
// translates the guest's page-frame number into a shadow-visible frame,
// records the page as a queue page for future interposition, invalidates
// the shadow page tables, and rewrites every descriptor's addr field in
// place to account for guest_shift.
func (b *Bus) armQueue(ctx *hv.Context, dev *Device, deviceIdx int, pfn uint32) error {
	q := &dev.Queues[dev.sel]
	if q.armed() {
		return ErrQueueAlreadyArmed
	}

	guestPA := uint64(pfn) << 12
	translated := pfn + uint32(b.GuestShift>>12)
	binary.LittleEndian.PutUint32(dev.regs[regQueuePFN:regQueuePFN+4], translated)

	q.GuestPA = guestPA
	q.HostPA = guestPA + b.GuestShift

	if b.SPT != nil {
		b.SPT.FlushAll()
	}

	b.mu.Lock()
	b.queuePages[guestPA&^0xfff] = queueRef{device: deviceIdx, queue: int(dev.sel)}
	b.mu.Unlock()

	for i := uint32(0); i < q.Size; i++ {
		addr := guestPA + uint64(i)*descriptorSize
		field, err := ctx.Memory.Slice(addr, 8)
		if err != nil {
			return err
		}
		orig := binary.LittleEndian.Uint64(field)
		binary.LittleEndian.PutUint64(field, orig+b.GuestShift)
	}
	return nil
}
