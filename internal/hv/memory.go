package hv

import (
	"encoding/binary"
	"fmt"
)

// GuestMemory is a flat window onto guest-physical memory: Base is the
// guest-physical address of Data[0]. It stands in for the guest-memory
// region abstraction, out of scope per the purpose statement and owned
// elsewhere in a real deployment; here it is just enough of a byte-slice
// view for the virtio and privileged-instruction emulators to read and
// write guest-physical addresses against.
type GuestMemory struct {
	Base uint64
	Data []byte
}

// InRegion reports whether addr falls inside this memory window.
func (m GuestMemory) InRegion(addr uint64) bool {
	return addr >= m.Base && addr-m.Base < uint64(len(m.Data))
}

// Slice returns a live sub-slice of Data covering [addr, addr+n), bounds
// checked against the window.
func (m GuestMemory) Slice(addr uint64, n int) ([]byte, error) {
	if !m.InRegion(addr) || !m.InRegion(addr+uint64(n)-1) {
		return nil, fmt.Errorf("hv: guest address 0x%x+%d outside memory window [0x%x,0x%x)", addr, n, m.Base, m.Base+uint64(len(m.Data)))
	}
	off := addr - m.Base
	return m.Data[off : off+uint64(n)], nil
}

// ReadU64 reads a little-endian 64-bit word at addr — guest-visible memory
// is native (little-endian) RISC-V byte order, distinct from the FDT's
// big-endian wire format.
func (m GuestMemory) ReadU64(addr uint64) (uint64, error) {
	b, err := m.Slice(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU64 writes a little-endian 64-bit word at addr.
func (m GuestMemory) WriteU64(addr uint64, v uint64) error {
	b, err := m.Slice(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}
