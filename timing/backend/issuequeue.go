package backend

import "github.com/sarchlab/vixensim/uop"

// IQEntry describes a dispatched micro-op waiting in the issue queue.
type IQEntry struct {
	Op  uop.MicroOp
	ID  ROBID
	Seq uint64

	// Dst is the physical destination register broadcast on completion.
	Dst PhysReg
	// Src1 and Src2 are the resolved physical source registers the entry
	// waits on.
	Src1 PhysReg
	Src2 PhysReg

	Src1Ready bool
	Src2Ready bool
}

// iqSlot is one scheduler slot.
type iqSlot struct {
	IQEntry
	Valid  bool
	Issued bool // selected for a port, waiting for completion
	Age    uint64
}

// IssueQueue is the unified scheduler window shared by both threads.
//
// Entries enter at the lowest free slot and leave when their completion is
// accepted; slot positions never shift. Selection is oldest-first per port,
// with the slot index breaking age ties (entries allocated the same cycle
// share an age stamp).
type IssueQueue struct {
	slots    []iqSlot
	headroom int
	count    int
}

// NewIssueQueue creates a queue of the given capacity. The queue refuses
// allocations once occupancy reaches capacity-headroom.
func NewIssueQueue(capacity, headroom int) *IssueQueue {
	return &IssueQueue{
		slots:    make([]iqSlot, capacity),
		headroom: headroom,
	}
}

// Size returns the queue capacity.
func (q *IssueQueue) Size() int {
	return len(q.slots)
}

// Occupancy returns the number of valid entries, including issued ones that
// have not completed yet.
func (q *IssueQueue) Occupancy() int {
	return q.count
}

// Full reports whether the queue has reached its allocation high-water mark.
func (q *IssueQueue) Full() bool {
	return q.count >= len(q.slots)-q.headroom
}

// Allocate places an entry in the lowest-indexed free slot, stamping it with
// the given age. It returns the slot index, or false when the queue is at
// its high-water mark.
func (q *IssueQueue) Allocate(e IQEntry, age uint64) (int, bool) {
	if q.Full() {
		return 0, false
	}

	for i := range q.slots {
		if q.slots[i].Valid {
			continue
		}
		q.slots[i] = iqSlot{
			IQEntry: e,
			Valid:   true,
			Age:     age,
		}
		q.count++
		return i, true
	}

	panic("issue queue count below high-water mark but no free slot")
}

// Wakeup marks source operands ready for every waiting entry whose source
// matches one of the broadcast destination tags. It returns the number of
// operands woken.
func (q *IssueQueue) Wakeup(tags []PhysReg) int {
	if len(tags) == 0 {
		return 0
	}

	woken := 0
	for i := range q.slots {
		s := &q.slots[i]
		if !s.Valid || s.Issued {
			continue
		}
		for _, tag := range tags {
			if !s.Src1Ready && s.Src1 == tag {
				s.Src1Ready = true
				woken++
			}
			if !s.Src2Ready && s.Src2 == tag {
				s.Src2Ready = true
				woken++
			}
		}
	}
	return woken
}

// Select picks the entry to issue on one port this cycle: the oldest valid,
// unissued entry with both sources ready whose class the port serves. When
// restrict is set, candidates from the preferred thread win the port; the
// other thread is considered only if the preferred thread has no eligible
// candidate. The winner is marked issued so later ports skip it.
func (q *IssueQueue) Select(port Port, preferred uop.ThreadID, restrict bool) (IQEntry, bool) {
	if restrict {
		if e, ok := q.selectFrom(port, preferred, true); ok {
			return e, true
		}
	}
	return q.selectFrom(port, preferred, false)
}

// selectFrom scans for the oldest eligible entry, optionally restricted to
// one thread. Ascending slot order with a strict age comparison makes the
// lowest slot index win age ties.
func (q *IssueQueue) selectFrom(port Port, thread uop.ThreadID, restrict bool) (IQEntry, bool) {
	best := -1
	var bestAge uint64

	for i := range q.slots {
		s := &q.slots[i]
		if !s.Valid || s.Issued {
			continue
		}
		if !s.Src1Ready || !s.Src2Ready {
			continue
		}
		if !port.Serves(s.Op.Class) {
			continue
		}
		if restrict && s.Op.Thread != thread {
			continue
		}
		if best == -1 || s.Age < bestAge {
			best = i
			bestAge = s.Age
		}
	}

	if best == -1 {
		return IQEntry{}, false
	}

	q.slots[best].Issued = true
	return q.slots[best].IQEntry, true
}

// Release frees the slot owned by the given reorder buffer entry once its
// completion is accepted. The sequence number guards against releasing a
// reallocated slot. It returns false when no matching entry is present
// (the entry was squashed).
func (q *IssueQueue) Release(id ROBID, seq uint64) bool {
	for i := range q.slots {
		s := &q.slots[i]
		if s.Valid && s.ID == id && s.Seq == seq {
			*s = iqSlot{}
			q.count--
			return true
		}
	}
	return false
}

// SquashThread invalidates every entry of the thread younger than cutoffSeq,
// issued or not. It returns the number of entries removed.
func (q *IssueQueue) SquashThread(thread uop.ThreadID, cutoffSeq uint64) int {
	removed := 0
	for i := range q.slots {
		s := &q.slots[i]
		if s.Valid && s.Op.Thread == thread && s.Seq > cutoffSeq {
			*s = iqSlot{}
			q.count--
			removed++
		}
	}
	return removed
}

// HasWaiting reports whether the thread has at least one valid entry that
// has not issued, ready or not.
func (q *IssueQueue) HasWaiting(thread uop.ThreadID) bool {
	for i := range q.slots {
		s := &q.slots[i]
		if s.Valid && !s.Issued && s.Op.Thread == thread {
			return true
		}
	}
	return false
}

// HasReadyCandidate reports whether the thread has at least one entry that
// could issue this cycle if selected.
func (q *IssueQueue) HasReadyCandidate(thread uop.ThreadID) bool {
	for i := range q.slots {
		s := &q.slots[i]
		if s.Valid && !s.Issued && s.Op.Thread == thread && s.Src1Ready && s.Src2Ready {
			return true
		}
	}
	return false
}

// Reset empties the queue.
func (q *IssueQueue) Reset() {
	for i := range q.slots {
		q.slots[i] = iqSlot{}
	}
	q.count = 0
}
