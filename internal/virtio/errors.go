package virtio

import "errors"

var (
	// ErrDecodeFailed marks an MMIO or queue-page trap whose faulting
	// instruction is not one of the load/store forms this package handles.
	ErrDecodeFailed = errors.New("virtio: decode failed")

	// ErrQueueAlreadyArmed marks a QueueNum or QueuePFN write against a
	// queue that has already been armed once; this transport gives queues
	// no resize or teardown path.
	ErrQueueAlreadyArmed = errors.New("virtio: queue already armed")

	// ErrDescriptorOutOfRange marks a guest-physical address this device's
	// queue-page bookkeeping does not recognize.
	ErrDescriptorOutOfRange = errors.New("virtio: address outside queue page")

	// ErrInvalidQueueSel marks a QueueSel write with a value outside the
	// four queues this transport supports per device.
	ErrInvalidQueueSel = errors.New("virtio: queue selector out of range")

	// ErrStoreOutsideGuestMemory marks a descriptor addr-field store whose
	// source register holds neither zero nor an address inside guest
	// memory — forwarding such a pointer into the ring would hand the
	// device a dangling host address.
	ErrStoreOutsideGuestMemory = errors.New("virtio: descriptor store source outside guest memory")
)
