package backend

// PhysReg is a physical register index into the merged register file.
type PhysReg uint16

// PhysRegFile is the merged physical register file shared by both threads,
// with a per-register ready bit tracking whether the producing micro-op has
// completed.
type PhysRegFile struct {
	values []uint64
	ready  []bool
}

// NewPhysRegFile creates a register file with n physical registers. All
// registers start ready, holding zero.
func NewPhysRegFile(n int) *PhysRegFile {
	f := &PhysRegFile{
		values: make([]uint64, n),
		ready:  make([]bool, n),
	}
	for i := range f.ready {
		f.ready[i] = true
	}
	return f
}

// Len returns the number of physical registers.
func (f *PhysRegFile) Len() int {
	return len(f.values)
}

// Read returns the value of a physical register.
func (f *PhysRegFile) Read(reg PhysReg) uint64 {
	return f.values[reg]
}

// Write stores a completed result and marks the register ready.
func (f *PhysRegFile) Write(reg PhysReg, value uint64) {
	f.values[reg] = value
	f.ready[reg] = true
}

// IsReady reports whether the register's producer has completed.
func (f *PhysRegFile) IsReady(reg PhysReg) bool {
	return f.ready[reg]
}

// MarkPending clears the ready bit when the register is allocated as a new
// destination.
func (f *PhysRegFile) MarkPending(reg PhysReg) {
	f.ready[reg] = false
}

// Reset restores power-on state: all registers ready and zero.
func (f *PhysRegFile) Reset() {
	for i := range f.values {
		f.values[i] = 0
		f.ready[i] = true
	}
}

// FreeList tracks unallocated physical registers in FIFO order.
type FreeList struct {
	regs  []PhysReg
	head  int
	count int
}

// NewFreeList creates an empty free list able to hold capacity registers.
func NewFreeList(capacity int) *FreeList {
	return &FreeList{
		regs: make([]PhysReg, capacity),
	}
}

// Len returns the number of free registers.
func (l *FreeList) Len() int {
	return l.count
}

// Push returns a register to the free list.
func (l *FreeList) Push(reg PhysReg) {
	if l.count == len(l.regs) {
		panic("free list overflow: register freed twice")
	}
	tail := (l.head + l.count) % len(l.regs)
	l.regs[tail] = reg
	l.count++
}

// Pop allocates a register from the free list. It returns false when the
// list is exhausted.
func (l *FreeList) Pop() (PhysReg, bool) {
	if l.count == 0 {
		return 0, false
	}
	reg := l.regs[l.head]
	l.head = (l.head + 1) % len(l.regs)
	l.count--
	return reg, true
}

// Clear empties the free list.
func (l *FreeList) Clear() {
	l.head = 0
	l.count = 0
}
