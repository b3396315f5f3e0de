package fdt

import (
	"bytes"
	"encoding/binary"
)

// testTreeBuilder assembles a minimal well-formed FDT blob for the property
// suite. It mirrors the shape of a real device tree closely enough to
// exercise Walk, Extract, and Mask, without pulling in a full DTC-compatible
// writer.
type testTreeBuilder struct {
	structure bytes.Buffer
	strings   bytes.Buffer
	stringOff map[string]uint32
}

func newTestTreeBuilder() *testTreeBuilder {
	return &testTreeBuilder{stringOff: make(map[string]uint32)}
}

func (b *testTreeBuilder) putU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.structure.Write(buf[:])
}

func (b *testTreeBuilder) pad4(n *bytes.Buffer) {
	for n.Len()%4 != 0 {
		n.WriteByte(0)
	}
}

func (b *testTreeBuilder) internString(s string) uint32 {
	if off, ok := b.stringOff[s]; ok {
		return off
	}
	off := uint32(b.strings.Len())
	b.strings.WriteString(s)
	b.strings.WriteByte(0)
	b.stringOff[s] = off
	return off
}

func (b *testTreeBuilder) beginNode(name string) {
	b.putU32(tokenBeginNode)
	b.structure.WriteString(name)
	b.structure.WriteByte(0)
	b.pad4(&b.structure)
}

func (b *testTreeBuilder) endNode() {
	b.putU32(tokenEndNode)
}

func (b *testTreeBuilder) propBytes(name string, value []byte) {
	b.putU32(tokenProp)
	b.putU32(uint32(len(value)))
	b.putU32(b.internString(name))
	b.structure.Write(value)
	b.pad4(&b.structure)
}

func (b *testTreeBuilder) propU32(name string, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.propBytes(name, buf[:])
}

func (b *testTreeBuilder) propU64(name string, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.propBytes(name, buf[:])
}

func (b *testTreeBuilder) propRange(name string, base, size uint64) {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], base)
	binary.BigEndian.PutUint64(buf[8:16], size)
	b.propBytes(name, buf[:])
}

func (b *testTreeBuilder) propString(name, v string) {
	b.propBytes(name, append([]byte(v), 0))
}

func (b *testTreeBuilder) propU32Array(name string, values []uint32) {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	b.propBytes(name, buf)
}

func (b *testTreeBuilder) build() []byte {
	b.putU32(tokenEnd)
	b.pad4(&b.strings)

	const memRsvmapSize = 16
	structOff := uint32(headerSize + memRsvmapSize)
	structSize := uint32(b.structure.Len())
	stringsOff := structOff + structSize
	stringsSize := uint32(b.strings.Len())
	total := stringsOff + stringsSize

	out := make([]byte, total)
	be := binary.BigEndian
	be.PutUint32(out[0:4], magic)
	be.PutUint32(out[4:8], total)
	be.PutUint32(out[8:12], structOff)
	be.PutUint32(out[12:16], stringsOff)
	be.PutUint32(out[16:20], headerSize)
	be.PutUint32(out[20:24], 17) // version
	be.PutUint32(out[24:28], 16) // last_comp_version
	be.PutUint32(out[28:32], 0)  // boot_cpuid_phys
	be.PutUint32(out[32:36], stringsSize)
	be.PutUint32(out[36:40], structSize)

	copy(out[structOff:], b.structure.Bytes())
	copy(out[stringsOff:], b.strings.Bytes())
	return out
}

// buildSampleMachine produces a device tree with two harts, a PLIC, a CLINT,
// an ns16550a UART, one virtio-mmio device, a /test node, a /soc/pci node,
// and a /chosen node carrying an initrd range — enough surface to exercise
// every row of the extraction and masking tables.
func buildSampleMachine() []byte {
	b := newTestTreeBuilder()
	b.beginNode("")
	{
		b.beginNode("chosen")
		b.propString("bootargs", "console=ttyS0")
		b.propU64("linux,initrd-start", 0x84000000)
		b.propU64("linux,initrd-end", 0x85000000)
		b.endNode()

		b.beginNode("memory")
		b.propRange("reg", 0x80000000, 0x10000000)
		b.endNode()

		b.beginNode("cpus")
		{
			b.beginNode("cpu@0")
			b.propU32("reg", 0)
			{
				b.beginNode("interrupt-controller")
				b.propU32("phandle", 1)
				b.endNode()
			}
			b.endNode()

			b.beginNode("cpu@1")
			b.propU32("reg", 1)
			{
				b.beginNode("interrupt-controller")
				b.propU32("phandle", 2)
				b.endNode()
			}
			b.endNode()
		}
		b.endNode()

		b.beginNode("test")
		b.propString("compatible", "test-device")
		b.propU32("reg", 0)
		b.propU32("value", 42)
		b.endNode()

		b.beginNode("soc")
		{
			b.beginNode("clint@2000000")
			b.propRange("reg", 0x2000000, 0x10000)
			b.endNode()

			b.beginNode("interrupt-controller")
			b.propRange("reg", 0xc000000, 0x4000000)
			// phandle 1 -> irq 9 (S-ext for hart 0), phandle 2 -> irq 9 (hart 1)
			b.propU32Array("interrupts-extended", []uint32{1, 9, 2, 9})
			b.endNode()

			b.beginNode("serial@10000000")
			b.propRange("reg", 0x10000000, 0x100)
			b.propString("compatible", "ns16550a")
			b.endNode()

			b.beginNode("pci")
			b.propString("compatible", "pci-host-ecam-generic")
			b.propU32("value", 7)
			b.endNode()
		}
		b.endNode()

		b.beginNode("virtio_mmio@10001000")
		b.propRange("reg", 0x10001000, 0x1000)
		b.propU32("interrupts", 1)
		b.endNode()

		b.beginNode("virtio_mmio@10005000")
		b.propRange("reg", 0x10005000, 0x1000)
		b.propU32("interrupts", 5)
		b.endNode()
	}
	b.endNode()
	return b.build()
}
