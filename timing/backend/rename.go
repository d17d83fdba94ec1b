package backend

import "github.com/sarchlab/vixensim/uop"

// RenameUnit holds the per-thread rename tables and performs the
// architectural-to-physical mapping for dispatching micro-ops.
//
// Mappings are updated progressively: a micro-op renamed later in the same
// cycle observes the destinations allocated by the micro-ops ahead of it, so
// read-after-write dependencies inside one rename group resolve to the new
// physical registers.
type RenameUnit struct {
	table    [uop.NumThreads][uop.NumArchRegs]PhysReg
	freeList *FreeList
	prf      *PhysRegFile
}

// NewRenameUnit creates a rename unit drawing destinations from freeList.
// The unit starts with the identity reset mapping.
func NewRenameUnit(freeList *FreeList, prf *PhysRegFile) *RenameUnit {
	u := &RenameUnit{
		freeList: freeList,
		prf:      prf,
	}
	u.Reset()
	return u
}

// Reset restores the identity mapping: thread t's architectural register a
// maps to physical register t*NumArchRegs+a. Those low registers are the
// fixed architectural registers and never enter the free list.
func (u *RenameUnit) Reset() {
	for t := 0; t < uop.NumThreads; t++ {
		for a := 0; a < uop.NumArchRegs; a++ {
			u.table[t][a] = PhysReg(t*uop.NumArchRegs + a)
		}
	}
}

// Lookup returns the physical register currently mapped to an architectural
// source register.
func (u *RenameUnit) Lookup(thread uop.ThreadID, arch uint8) PhysReg {
	return u.table[thread][arch]
}

// Rename allocates a fresh destination register for one micro-op. It returns
// the new mapping, the mapping it replaced, and false when the free list is
// exhausted (in which case nothing changes). The table is updated before
// returning, so the next micro-op renamed this cycle sees the new mapping.
func (u *RenameUnit) Rename(thread uop.ThreadID, arch uint8) (newPhys, prevPhys PhysReg, ok bool) {
	newPhys, ok = u.freeList.Pop()
	if !ok {
		return 0, 0, false
	}

	prevPhys = u.table[thread][arch]
	u.table[thread][arch] = newPhys
	u.prf.MarkPending(newPhys)
	return newPhys, prevPhys, true
}

// Restore rolls one destination mapping back to its pre-rename register.
// Used when squashing: entries are restored youngest first so the table
// lands on the newest surviving mapping.
func (u *RenameUnit) Restore(thread uop.ThreadID, arch uint8, phys PhysReg) {
	u.table[thread][arch] = phys
}

// IsFixed reports whether a physical register is one of the fixed
// architectural registers that never return to the free list.
func IsFixed(reg PhysReg) bool {
	return int(reg) < uop.NumThreads*uop.NumArchRegs
}
