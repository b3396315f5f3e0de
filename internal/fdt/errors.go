package fdt

import "errors"

// Sentinel errors for the machine-discovery fatal conditions enumerated by
// the error-handling design: a MachineMeta missing the PLIC or CLINT address
// means boot fails, and a host description with more harts or virtio
// devices than the bounded intern tables can hold is rejected outright
// rather than silently truncated.
var (
	ErrMissingPLIC          = errors.New("fdt: no /soc/interrupt-controller reg property found")
	ErrMissingCLINT         = errors.New("fdt: no /soc/clint reg property found")
	ErrTooManyHarts         = errors.New("fdt: more than 16 /cpus/cpu nodes")
	ErrTooManyVirtioDevices = errors.New("fdt: more than 16 /virtio_mmio nodes")
)
