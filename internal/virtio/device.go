package virtio

import (
	"encoding/binary"
	"sync"

	"example.com/rvhv/internal/hv"
)

const (
	// WindowBase is where the first virtio-mmio device's register window
	// starts; device k occupies [WindowBase+k*WindowStride, ...+WindowStride).
	WindowBase   = 0x10001000
	WindowStride = 0x1000

	regDeviceFeatures = 0x10
	regQueueSel       = 0x30
	regQueueNumMax    = 0x34
	regQueueNum       = 0x38
	regQueuePFN       = 0x40

	featureIndirectDesc = 1 << 28
	queueNumMaxClamp    = 256
	configSpaceOffset   = 0x100

	maxQueuesPerDevice = 4
	descriptorSize     = 16
)

// Queue is one of a device's (up to four) virtqueues.
type Queue struct {
	Size    uint32
	GuestPA uint64 // guest-physical base of the descriptor ring; 0 = unarmed
	HostPA  uint64 // GuestPA translated by the bus's guest_shift
}

func (q Queue) armed() bool { return q.HostPA != 0 }

// Device is one virtio-mmio v1 register window. regs mirrors the raw
// 4KiB page; reads and writes pass through it except at the offsets this
// transport gives side effects.
type Device struct {
	Base   uint64
	regs   [WindowStride]byte
	Queues [maxQueuesPerDevice]Queue
	sel    uint32
}

// NewDevice returns a device whose register mirror is pre-populated with
// the given 32-bit DeviceFeatures and QueueNumMax values (the rest of the
// window, including config space, is left zero for the caller to fill).
func NewDevice(base uint64, deviceFeatures, queueNumMax uint32) *Device {
	d := &Device{Base: base}
	binary.LittleEndian.PutUint32(d.regs[regDeviceFeatures:], deviceFeatures)
	binary.LittleEndian.PutUint32(d.regs[regQueueNumMax:], queueNumMax)
	return d
}

// Bus owns every virtio-mmio device in the guest's address space plus the
// queue-page bookkeeping that makes descriptor-ring interposition possible.
type Bus struct {
	mu         sync.Mutex
	Devices    []*Device
	GuestShift uint64
	SPT        hv.ShadowPageTables

	// queuePages maps a guest-physical page base to the device/queue that
	// armed it, so a later trap against that page routes to queue-page
	// handling rather than falling through to the generic MMIO window.
	queuePages map[uint64]queueRef
}

type queueRef struct {
	device int
	queue  int
}

// NewBus returns an empty bus; devices are added with AddDevice.
func NewBus(guestShift uint64, spt hv.ShadowPageTables) *Bus {
	return &Bus{GuestShift: guestShift, SPT: spt, queuePages: make(map[uint64]queueRef)}
}

// AddDevice registers a device at the next available window.
func (b *Bus) AddDevice(d *Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Devices = append(b.Devices, d)
}

// InMMIOWindow reports whether gpa falls within any attached device's
// register window.
func (b *Bus) InMMIOWindow(gpa uint64) bool {
	if gpa < WindowBase {
		return false
	}
	b.mu.Lock()
	n := len(b.Devices)
	b.mu.Unlock()
	idx := int((gpa - WindowBase) / WindowStride)
	return idx >= 0 && idx < n
}

// IsQueuePage reports whether the page containing gpa was recorded as a
// queue page at arming time.
func (b *Bus) IsQueuePage(gpa uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queuePages[gpa&^0xfff]
	return ok
}
