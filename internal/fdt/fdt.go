// Package fdt reads and in-place masks a big-endian flattened device tree
// blob, the machine description a guest kernel expects to find at boot.
package fdt

import (
	"encoding/binary"
	"fmt"
)

const (
	magic = 0xd00dfeed

	tokenBeginNode = 0x01000000
	tokenEndNode   = 0x02000000
	tokenProp      = 0x03000000
	tokenNOP       = 0x04000000
	tokenEnd       = 0x09000000

	maxDepth = 16

	headerSize = 40
)

// FDT is a parsed view over a live device-tree blob. The structure block is
// not copied out; walking and masking operate directly on Data, so a masked
// FDT and its source byte slice are the same backing array.
type FDT struct {
	Data   []byte
	header header
}

type header struct {
	offDtStruct   uint32
	offDtStrings  uint32
	sizeDtStruct  uint32
	sizeDtStrings uint32
}

// Parse validates the blob header and returns an FDT ready for Walk.
func Parse(data []byte) (*FDT, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("fdt: blob of %d bytes shorter than header", len(data))
	}
	be := binary.BigEndian
	if m := be.Uint32(data[0:4]); m != magic {
		return nil, fmt.Errorf("fdt: bad magic 0x%08x", m)
	}
	h := header{
		offDtStruct:   be.Uint32(data[8:12]),
		offDtStrings:  be.Uint32(data[12:16]),
		sizeDtStrings: be.Uint32(data[32:36]),
		sizeDtStruct:  be.Uint32(data[36:40]),
	}
	if int64(h.offDtStruct)+int64(h.sizeDtStruct) > int64(len(data)) {
		return nil, fmt.Errorf("fdt: structure block [%d,+%d) exceeds blob of %d bytes", h.offDtStruct, h.sizeDtStruct, len(data))
	}
	if int64(h.offDtStrings)+int64(h.sizeDtStrings) > int64(len(data)) {
		return nil, fmt.Errorf("fdt: strings block [%d,+%d) exceeds blob of %d bytes", h.offDtStrings, h.sizeDtStrings, len(data))
	}
	return &FDT{Data: data, header: h}, nil
}

// NodeFunc is invoked on a node's opening token, after path/unitAddresses
// have been extended with the node itself. Returning true requests that the
// reader enter masking mode for this subtree.
type NodeFunc func(path, unitAddresses []string) (mask bool)

// PropertyFunc is invoked for every property, in document order. tokenOffset
// is the byte offset of the property's own FDT_PROP token, for callers that
// need to mask the property directly via MaskProperty.
type PropertyFunc func(path, unitAddresses []string, name string, value []byte, tokenOffset int)

// Walker bundles the two callbacks a traversal needs. Either may be nil.
type Walker struct {
	OnNode     NodeFunc
	OnProperty PropertyFunc
}

// Walk traverses the structure block once, calling back on every node and
// property with full path context. When a node callback requests masking,
// every token word inside that subtree — including the opening and closing
// node tokens and all property headers and payloads — is overwritten with
// FDT_NOP before Walk advances past it. Masking nests by a depth counter, not
// a stack, so a masked subtree containing further subtrees erases all of
// them regardless of what their own node callbacks return.
func (f *FDT) Walk(w Walker) error {
	be := binary.BigEndian
	pos := int(f.header.offDtStruct)
	end := pos + int(f.header.sizeDtStruct)

	var path, unitAddrs []string
	maskDepth := 0

	for pos < end {
		if pos+4 > len(f.Data) {
			return fmt.Errorf("fdt: token at offset %d runs past blob end", pos)
		}
		tok := be.Uint32(f.Data[pos : pos+4])
		switch tok {
		case tokenBeginNode:
			nameStart := pos + 4
			nameEnd := nameStart
			for nameEnd < len(f.Data) && f.Data[nameEnd] != 0 {
				nameEnd++
			}
			if nameEnd >= len(f.Data) {
				return fmt.Errorf("fdt: unterminated node name at offset %d", nameStart)
			}
			name := string(f.Data[nameStart:nameEnd])
			nodeName, unitAddr := splitUnitAddress(name)

			if len(path) >= maxDepth {
				return fmt.Errorf("fdt: node depth exceeds %d at %q", maxDepth, name)
			}
			path = append(path, nodeName)
			unitAddrs = append(unitAddrs, unitAddr)

			mask := false
			if w.OnNode != nil {
				mask = w.OnNode(path, unitAddrs)
			}
			if maskDepth > 0 {
				maskDepth++
			} else if mask {
				maskDepth = 1
			}

			wordsConsumed := 1 + ceilDiv(len(name)+1, 4)
			if maskDepth > 0 {
				f.stampNOP(pos, wordsConsumed)
			}
			pos += wordsConsumed * 4

		case tokenEndNode:
			if maskDepth > 0 {
				f.stampNOP(pos, 1)
				maskDepth--
			}
			if len(path) == 0 {
				return fmt.Errorf("fdt: END_NODE at offset %d without matching BEGIN_NODE", pos)
			}
			path = path[:len(path)-1]
			unitAddrs = unitAddrs[:len(unitAddrs)-1]
			pos += 4

		case tokenProp:
			if pos+12 > len(f.Data) {
				return fmt.Errorf("fdt: truncated property header at offset %d", pos)
			}
			plen := be.Uint32(f.Data[pos+4 : pos+8])
			nameOff := be.Uint32(f.Data[pos+8 : pos+12])
			payloadStart := pos + 12
			if int64(payloadStart)+int64(plen) > int64(len(f.Data)) {
				return fmt.Errorf("fdt: property payload at offset %d exceeds blob", pos)
			}
			name, err := f.getString(nameOff)
			if err != nil {
				return err
			}
			value := f.Data[payloadStart : payloadStart+int(plen)]
			if w.OnProperty != nil {
				w.OnProperty(path, unitAddrs, name, value, pos)
			}

			wordsConsumed := 3 + ceilDiv(int(plen), 4)
			if maskDepth > 0 {
				f.stampNOP(pos, wordsConsumed)
			}
			pos += wordsConsumed * 4

		case tokenNOP:
			pos += 4

		case tokenEnd:
			return nil

		default:
			return fmt.Errorf("fdt: unrecognized token 0x%08x at offset %d", tok, pos)
		}
	}
	return fmt.Errorf("fdt: structure block ended without FDT_END")
}

// MaskProperty overwrites a single property — its FDT_PROP token, length,
// name offset, and payload — with FDT_NOP, regardless of whether the
// enclosing node is itself being masked. tokenOffset is the byte offset a
// PropertyFunc callback received alongside the property.
func (f *FDT) MaskProperty(tokenOffset, payloadLen int) {
	f.stampNOP(tokenOffset, 3+ceilDiv(payloadLen, 4))
}

func (f *FDT) stampNOP(byteOffset, words int) {
	be := binary.BigEndian
	for i := 0; i < words; i++ {
		be.PutUint32(f.Data[byteOffset+i*4:byteOffset+i*4+4], tokenNOP)
	}
}

func (f *FDT) getString(offset uint32) (string, error) {
	start := int(f.header.offDtStrings) + int(offset)
	if start < 0 || start >= len(f.Data) {
		return "", fmt.Errorf("fdt: string offset %d out of bounds", offset)
	}
	end := start
	for end < len(f.Data) && f.Data[end] != 0 {
		end++
	}
	if end >= len(f.Data) {
		return "", fmt.Errorf("fdt: unterminated string at offset %d", offset)
	}
	return string(f.Data[start:end]), nil
}

func splitUnitAddress(name string) (nodeName, unitAddress string) {
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

func pathEquals(path []string, parts ...string) bool {
	if len(path) != len(parts) {
		return false
	}
	for i, p := range parts {
		if path[i] != p {
			return false
		}
	}
	return true
}
