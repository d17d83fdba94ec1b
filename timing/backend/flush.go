package backend

import "github.com/sarchlab/vixensim/uop"

// squashYoungerThan invalidates every speculative structure entry of the
// thread with Seq > cutoffSeq: reorder buffer entries, issue queue entries,
// and the rename mappings they installed. Destination registers of squashed
// entries return to the free list unless fixed. Mispredict recovery,
// exception drain, and thread resume all go through this one primitive; the
// other thread is never touched.
func (b *Backend) squashYoungerThan(thread uop.ThreadID, cutoffSeq uint64) int {
	squashed := b.rob.SquashYoungerThan(thread, cutoffSeq)

	// Youngest first, so each restore lands the rename table on the
	// next-older surviving mapping.
	for i := range squashed {
		e := &squashed[i]
		b.rename.Restore(thread, e.Op.Dst, e.PrevPhys)
		if !IsFixed(e.NewPhys) {
			b.freeList.Push(e.NewPhys)
		}
	}

	b.iq.SquashThread(thread, cutoffSeq)
	return len(squashed)
}

// raiseException poisons the thread's un-retired work and stops the thread
// from accepting new micro-ops until ResumeThread. Already-queued micro-ops
// may still issue; their results are discarded when the thread drains.
func (b *Backend) raiseException(thread uop.ThreadID, vector uint16) {
	b.rob.FlagException(thread, vector)
	b.active[thread] = false
}

// ResumeThread drains the faulted thread's remaining entries through the
// squash primitive and reactivates it. It returns the number of entries
// drained.
func (b *Backend) ResumeThread(thread uop.ThreadID) int {
	drained := b.squashYoungerThan(thread, 0)
	b.active[thread] = true
	return drained
}

// ThreadActive reports whether the thread is accepting new micro-ops.
func (b *Backend) ThreadActive(thread uop.ThreadID) bool {
	return b.active[thread]
}
