package backend

import (
	"fmt"

	"github.com/sarchlab/vixensim/uop"
)

// EntryState tracks the lifecycle of a reorder buffer entry.
type EntryState uint8

// Reorder buffer entry states.
const (
	StateEmpty     EntryState = iota // Slot holds no micro-op
	StateAllocated                   // Dispatched, waiting for its result
	StateReady                       // Result written, waiting to retire
	StateRetired                     // Retired this cycle (slot already reclaimed)
)

// String returns the state's name.
func (s EntryState) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateAllocated:
		return "Allocated"
	case StateReady:
		return "Ready"
	case StateRetired:
		return "Retired"
	}
	return fmt.Sprintf("EntryState(%d)", uint8(s))
}

// ROBID names one reorder buffer entry: the owning thread and the slot index
// inside that thread's buffer.
type ROBID struct {
	Thread uop.ThreadID
	Slot   int
}

// Entry is one reorder buffer slot.
type Entry struct {
	// State is the entry's lifecycle state.
	State EntryState
	// Seq is the per-thread allocation order, starting at 1. Larger is younger.
	Seq uint64
	// Op is the dispatched micro-op.
	Op uop.MicroOp
	// NewPhys is the physical register allocated for the destination.
	NewPhys PhysReg
	// PrevPhys is the physical register the destination mapped to before
	// rename, freed at retirement or restored on squash.
	PrevPhys PhysReg
	// Result is the completed value, valid once State is Ready.
	Result uint64
	// ExcPending marks the entry as poisoned by a thread exception.
	ExcPending bool
	// ExcVector is the exception vector when ExcPending is set.
	ExcVector uint16
}

// robThread is one thread's circular reorder buffer.
type robThread struct {
	entries []Entry
	head    int // oldest live entry
	tail    int // next allocation slot
	count   int
	nextSeq uint64
}

// ROB is the pair of per-thread reorder buffers. Retirement is in allocation
// order within a thread; the threads retire independently.
type ROB struct {
	threads [uop.NumThreads]robThread
	size    int
}

// NewROB creates reorder buffers with sizePerThread entries each.
func NewROB(sizePerThread int) *ROB {
	r := &ROB{size: sizePerThread}
	for t := range r.threads {
		r.threads[t].entries = make([]Entry, sizePerThread)
		r.threads[t].nextSeq = 1
	}
	return r
}

// Size returns the per-thread capacity.
func (r *ROB) Size() int {
	return r.size
}

// Occupancy returns the number of live entries for a thread.
func (r *ROB) Occupancy(thread uop.ThreadID) int {
	return r.threads[thread].count
}

// SlotsFree returns the number of allocatable entries for a thread.
func (r *ROB) SlotsFree(thread uop.ThreadID) int {
	return r.size - r.threads[thread].count
}

// Allocate appends a micro-op at the tail of its thread's buffer. It returns
// false when the buffer is full.
func (r *ROB) Allocate(op uop.MicroOp, newPhys, prevPhys PhysReg) (ROBID, bool) {
	th := &r.threads[op.Thread]
	if th.count == r.size {
		return ROBID{}, false
	}

	slot := th.tail
	th.entries[slot] = Entry{
		State:    StateAllocated,
		Seq:      th.nextSeq,
		Op:       op,
		NewPhys:  newPhys,
		PrevPhys: prevPhys,
	}
	th.nextSeq++
	th.tail = (th.tail + 1) % r.size
	th.count++

	return ROBID{Thread: op.Thread, Slot: slot}, true
}

// Entry returns the slot named by id. The entry may be Empty or belong to a
// younger micro-op than the caller expects; callers must check State and Seq.
func (r *ROB) Entry(id ROBID) *Entry {
	return &r.threads[id.Thread].entries[id.Slot]
}

// MarkReady records a completed result. The entry must be live.
func (r *ROB) MarkReady(id ROBID, result uint64) {
	e := r.Entry(id)
	if e.State != StateAllocated {
		panic(fmt.Sprintf("completion for %v entry in state %v", id, e.State))
	}
	e.State = StateReady
	e.Result = result
}

// RetireHead retires the oldest entry of a thread if it has completed and
// carries no pending exception. The returned copy is in state Retired; the
// slot itself is reclaimed immediately.
func (r *ROB) RetireHead(thread uop.ThreadID) (Entry, bool) {
	th := &r.threads[thread]
	if th.count == 0 {
		return Entry{}, false
	}

	e := &th.entries[th.head]
	if e.State != StateReady || e.ExcPending {
		return Entry{}, false
	}

	retired := *e
	retired.State = StateRetired

	*e = Entry{}
	th.head = (th.head + 1) % r.size
	th.count--

	return retired, true
}

// SquashYoungerThan empties every entry of the thread with Seq > cutoffSeq
// and returns copies of the squashed entries, youngest first, so the caller
// can unwind rename mappings in reverse allocation order. The other thread
// is untouched.
func (r *ROB) SquashYoungerThan(thread uop.ThreadID, cutoffSeq uint64) []Entry {
	th := &r.threads[thread]

	var squashed []Entry
	for th.count > 0 {
		youngest := (th.tail - 1 + r.size) % r.size
		e := &th.entries[youngest]
		if e.Seq <= cutoffSeq {
			break
		}
		squashed = append(squashed, *e)
		*e = Entry{}
		th.tail = youngest
		th.count--
	}
	return squashed
}

// SquashAll empties every live entry of the thread, youngest first.
func (r *ROB) SquashAll(thread uop.ThreadID) []Entry {
	return r.SquashYoungerThan(thread, 0)
}

// FlagException poisons every live entry of the thread so none of them can
// retire. The entries are drained later by ResumeThread's squash.
func (r *ROB) FlagException(thread uop.ThreadID, vector uint16) {
	th := &r.threads[thread]
	for i, n := th.head, 0; n < th.count; i, n = (i+1)%r.size, n+1 {
		th.entries[i].ExcPending = true
		th.entries[i].ExcVector = vector
	}
}

// HeadEntry returns the oldest live entry of a thread, if any.
func (r *ROB) HeadEntry(thread uop.ThreadID) (*Entry, bool) {
	th := &r.threads[thread]
	if th.count == 0 {
		return nil, false
	}
	return &th.entries[th.head], true
}

// NextSeq returns the sequence number the thread's next allocation will use.
func (r *ROB) NextSeq(thread uop.ThreadID) uint64 {
	return r.threads[thread].nextSeq
}

// Reset restores power-on state: both buffers empty, sequence numbers at 1.
func (r *ROB) Reset() {
	for t := range r.threads {
		th := &r.threads[t]
		for i := range th.entries {
			th.entries[i] = Entry{}
		}
		th.head = 0
		th.tail = 0
		th.count = 0
		th.nextSeq = 1
	}
}
