package settings

// dirtySet is a fixed-size bitset indexed by field position.
type dirtySet []uint64

func newDirtySet(n int) dirtySet {
	return make(dirtySet, (n+63)/64)
}

func (d dirtySet) set(i int) {
	d[i/64] |= 1 << (uint(i) % 64)
}

func (d dirtySet) has(i int) bool {
	return d[i/64]&(1<<(uint(i)%64)) != 0
}

func (d dirtySet) reset() {
	for i := range d {
		d[i] = 0
	}
}
