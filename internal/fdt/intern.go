package fdt

// internCapacity bounds the unit-address intern table the extractor uses to
// correlate properties discovered at different depths (a CPU's reg and its
// child interrupt-controller's phandle, or a virtio device's reg and
// interrupts). Fixed size, linear scan, no heap allocation — mirroring the
// source's ArrayVec<16> intern table.
const internCapacity = 16

// addressIntern assigns a stable small integer to each distinct unit-address
// string it sees, first-seen order. The extractor keeps one of these per
// correlated property group (see Design Notes on the two-table decision);
// sharing one table across unrelated node kinds is the aliasing hazard this
// separation avoids.
type addressIntern struct {
	keys [internCapacity]string
	n    int
}

// indexOf returns the stable index for key, interning it if not already
// present. ok is false once the table is full and key is new.
func (a *addressIntern) indexOf(key string) (index int, ok bool) {
	for i := 0; i < a.n; i++ {
		if a.keys[i] == key {
			return i, true
		}
	}
	if a.n >= internCapacity {
		return -1, false
	}
	a.keys[a.n] = key
	a.n++
	return a.n - 1, true
}
