// Package backend models the Vixen Dio Pro out-of-order execution core:
// register rename, per-thread reorder buffers, a unified issue queue with
// per-port select, a completion arbiter, SMT fairness, and flush/exception
// recovery for two hardware threads.
//
// The backend is a synchronous block. The caller advances it one cycle at a
// time with Tick, handing it decoded micro-ops, completion events, branch
// resolutions, and exception requests, and receives the micro-ops issued to
// the execution ports plus this cycle's retirements and redirects.
//
// Every decision in a cycle is made against state committed by the end of
// the previous cycle: completion broadcasts wake dependents one cycle after
// acceptance, and allocation checks compare against occupancies snapshotted
// at the start of the cycle, so retirement and allocation in the same cycle
// never race.
package backend

import "github.com/sarchlab/vixensim/uop"

// BranchResolution reports the outcome of a branch micro-op at the end of
// its execution. Seq guards against resolutions of already-squashed entries.
type BranchResolution struct {
	ID         ROBID
	Seq        uint64
	Mispredict bool
	// Target is the corrected fetch address on a misprediction.
	Target uint64
}

// ExceptionRequest raises an exception on one thread. Seq names the
// faulting micro-op so the external handler can identify it; the backend
// itself poisons the whole thread regardless.
type ExceptionRequest struct {
	Thread uop.ThreadID
	Seq    uint64
	Vector uint16
}

// IssuedOp is one micro-op leaving for an execution port this cycle,
// carrying its operand values read from the physical register file.
type IssuedOp struct {
	Port Port
	Op   uop.MicroOp
	ID   ROBID
	Seq  uint64
	// Dst is the physical destination the completion must write.
	Dst       PhysReg
	Src1Value uint64
	Src2Value uint64
}

// Retirement is one micro-op leaving the machine in program order.
type Retirement struct {
	Thread uop.ThreadID
	Seq    uint64
	Op     uop.MicroOp
	Result uint64
}

// Redirect asks the frontend to restart a thread: at the corrected target
// after a misprediction, or at the handler for an exception.
type Redirect struct {
	Thread      uop.ThreadID
	PC          uint64
	IsException bool
	Vector      uint16
}

// TickInput carries one cycle's stimuli into the backend.
type TickInput struct {
	// Incoming is the rename group from the frontend: micro-ops in program
	// order, at most RenameWidth of which are accepted. Refused micro-ops
	// must be presented again next cycle.
	Incoming []uop.MicroOp
	// Completions are results leaving the execution units this cycle.
	Completions []CompletionEvent
	// BranchResolves are branch outcomes determined this cycle.
	BranchResolves []BranchResolution
	// Exceptions are faults raised this cycle.
	Exceptions []ExceptionRequest
	// PortBusy masks ports whose unit cannot start a micro-op this cycle.
	PortBusy [NumPorts]bool
}

// TickOutput carries one cycle's results out of the backend.
type TickOutput struct {
	// Accepted is how many Incoming micro-ops were renamed and dispatched.
	Accepted int
	// Issued lists the micro-ops sent to execution ports this cycle.
	Issued []IssuedOp
	// Retired lists this cycle's retirements, at most one per thread.
	Retired []Retirement
	// Redirects lists fetch redirects raised this cycle.
	Redirects []Redirect
	// Deferred are completions the arbiter had no capacity for; the
	// execution units must hold them and present them again next cycle.
	Deferred []CompletionEvent
}

// Statistics holds backend performance counters.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Renamed is the number of micro-ops renamed and dispatched.
	Renamed uint64
	// RenameStalls is the number of cycles in which at least one incoming
	// micro-op was refused for lack of resources.
	RenameStalls uint64
	// Issued is the number of micro-ops sent to execution ports.
	Issued uint64
	// IssuedByPort breaks Issued down per port.
	IssuedByPort [NumPorts]uint64
	// ThreadIssued breaks Issued down per thread.
	ThreadIssued [uop.NumThreads]uint64
	// IssueStalls is the number of cycles with waiting micro-ops but no issue.
	IssueStalls uint64
	// ThreadIssueStalls counts, per thread, cycles in which the thread had
	// waiting micro-ops but issued nothing.
	ThreadIssueStalls [uop.NumThreads]uint64
	// Retired counts retirements per thread.
	Retired [uop.NumThreads]uint64
	// Completions is the number of accepted completion events.
	Completions uint64
	// StaleCompletions counts completions dropped because their entry was
	// squashed before they arrived.
	StaleCompletions uint64
	// StaleResolves counts branch resolutions for squashed entries.
	StaleResolves uint64
	// ArbiterDeferrals counts completions pushed to a later cycle by the
	// writeback arbiter.
	ArbiterDeferrals uint64
	// Flushes is the number of mispredict squashes.
	Flushes uint64
	// Exceptions is the number of exception requests honored.
	Exceptions uint64
}

// TotalRetired returns the number of retired micro-ops across both threads.
func (s Statistics) TotalRetired() uint64 {
	var total uint64
	for _, n := range s.Retired {
		total += n
	}
	return total
}

// IPC returns retired micro-ops per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.TotalRetired()) / float64(s.Cycles)
}

// ThreadIPC returns one thread's retired micro-ops per cycle.
func (s Statistics) ThreadIPC(thread uop.ThreadID) float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Retired[thread]) / float64(s.Cycles)
}

// PortUtilization returns the percentage of cycles the port issued.
func (s Statistics) PortUtilization(port Port) float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.IssuedByPort[port]) / float64(s.Cycles) * 100.0
}

// Backend is the out-of-order execution core shared by the two SMT threads.
type Backend struct {
	config Config

	prf      *PhysRegFile
	freeList *FreeList
	rename   *RenameUnit
	rob      *ROB
	iq       *IssueQueue
	arbiter  *Arbiter
	fairness *FairnessController

	// active marks threads accepting new micro-ops. A thread goes inactive
	// when it takes an exception and comes back via ResumeThread.
	active [uop.NumThreads]bool

	// broadcast holds the destination tags accepted by the arbiter last
	// cycle, consumed by wakeup this cycle.
	broadcast []PhysReg

	cycle uint64
	stats Statistics
}

// NewBackend creates a backend in power-on state: identity rename mappings,
// empty buffers, both threads active.
func NewBackend(config Config) *Backend {
	b := &Backend{
		config:   config,
		prf:      NewPhysRegFile(config.NumPhysRegs),
		freeList: NewFreeList(config.NumPhysRegs),
		rob:      NewROB(config.ROBSizePerThread),
		iq:       NewIssueQueue(config.IssueQueueSize, config.IssueQueueHeadroom),
		arbiter:  NewArbiter(config.ArbiterCapacity),
		fairness: NewFairnessController(config.FairnessThreshold),
	}
	b.rename = NewRenameUnit(b.freeList, b.prf)
	b.fillFreeList()
	for t := range b.active {
		b.active[t] = true
	}
	return b
}

// fillFreeList loads every non-fixed physical register onto the free list.
func (b *Backend) fillFreeList() {
	b.freeList.Clear()
	for reg := uop.NumThreads * uop.NumArchRegs; reg < b.config.NumPhysRegs; reg++ {
		b.freeList.Push(PhysReg(reg))
	}
}

// Config returns the structural configuration.
func (b *Backend) Config() Config {
	return b.config
}

// Stats returns the accumulated statistics.
func (b *Backend) Stats() Statistics {
	return b.stats
}

// Cycle returns the number of cycles simulated.
func (b *Backend) Cycle() uint64 {
	return b.cycle
}

// IQOccupancy returns the number of live issue queue entries.
func (b *Backend) IQOccupancy() int {
	return b.iq.Occupancy()
}

// ROBOccupancy returns the number of live reorder buffer entries of a thread.
func (b *Backend) ROBOccupancy(thread uop.ThreadID) int {
	return b.rob.Occupancy(thread)
}

// FreeRegs returns the number of unallocated physical registers.
func (b *Backend) FreeRegs() int {
	return b.freeList.Len()
}

// Fairness returns the SMT fairness controller, for inspection.
func (b *Backend) Fairness() *FairnessController {
	return b.fairness
}

// Reset restores power-on state and zeroes the statistics.
func (b *Backend) Reset() {
	b.prf.Reset()
	b.fillFreeList()
	b.rename.Reset()
	b.rob.Reset()
	b.iq.Reset()
	b.fairness.Reset()
	for t := range b.active {
		b.active[t] = true
	}
	b.broadcast = nil
	b.cycle = 0
	b.stats = Statistics{}
}

// Tick advances the backend one cycle.
//
// Sub-steps run in a fixed order so no structure observes another's
// same-cycle writes: retire from committed state, apply exceptions and
// branch resolutions, arbitrate completions (building next cycle's wakeup
// broadcast), wake dependents from last cycle's broadcast, select and issue
// per port, then rename and dispatch the incoming group against
// start-of-cycle occupancy snapshots. Registers freed by this cycle's
// retirements or squashes become allocatable next cycle.
func (b *Backend) Tick(in TickInput) TickOutput {
	b.cycle++
	b.stats.Cycles++

	var out TickOutput

	// Occupancy snapshots for dispatch.
	var robFree [uop.NumThreads]int
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		robFree[t] = b.rob.SlotsFree(t)
	}
	iqOcc := b.iq.Occupancy()
	freeRegs := b.freeList.Len()

	b.retire(&out)
	b.applyExceptions(in.Exceptions, &out)
	b.applyBranchResolves(in.BranchResolves, &out)
	nextBroadcast := b.arbitrate(in.Completions, &out)
	b.iq.Wakeup(b.broadcast)
	issuedPerThread, hadReady := b.selectAndIssue(in.PortBusy, &out)
	b.dispatch(in.Incoming, robFree, iqOcc, freeRegs, &out)
	b.fairness.Update(issuedPerThread, hadReady)
	b.broadcast = nextBroadcast

	return out
}

// retire pulls at most one completed micro-op per thread off the head of its
// reorder buffer and frees the overwritten physical register.
func (b *Backend) retire(out *TickOutput) {
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		e, ok := b.rob.RetireHead(t)
		if !ok {
			continue
		}
		if !IsFixed(e.PrevPhys) {
			b.freeList.Push(e.PrevPhys)
		}
		out.Retired = append(out.Retired, Retirement{
			Thread: t,
			Seq:    e.Seq,
			Op:     e.Op,
			Result: e.Result,
		})
		b.stats.Retired[t]++
	}
}

// applyExceptions poisons the faulting threads and raises their redirects.
func (b *Backend) applyExceptions(reqs []ExceptionRequest, out *TickOutput) {
	for _, req := range reqs {
		b.raiseException(req.Thread, req.Vector)
		out.Redirects = append(out.Redirects, Redirect{
			Thread:      req.Thread,
			IsException: true,
			Vector:      req.Vector,
		})
		b.stats.Exceptions++
	}
}

// applyBranchResolves squashes mispredicted paths and raises their
// redirects. Resolutions for entries squashed earlier are dropped.
func (b *Backend) applyBranchResolves(resolves []BranchResolution, out *TickOutput) {
	for _, br := range resolves {
		e := b.rob.Entry(br.ID)
		if e.State != StateAllocated || e.Seq != br.Seq {
			b.stats.StaleResolves++
			continue
		}
		if !br.Mispredict {
			continue
		}
		b.squashYoungerThan(br.ID.Thread, br.Seq)
		out.Redirects = append(out.Redirects, Redirect{
			Thread: br.ID.Thread,
			PC:     br.Target,
		})
		b.stats.Flushes++
	}
}

// arbitrate accepts up to ArbiterCapacity completions in port priority
// order, writing results to the register file and reorder buffer, releasing
// issue queue slots, and collecting the destination tags for next cycle's
// wakeup broadcast. The overflow is handed back for the units to retry.
func (b *Backend) arbitrate(completions []CompletionEvent, out *TickOutput) []PhysReg {
	accepted, deferred := b.arbiter.Arbitrate(completions)

	var nextBroadcast []PhysReg
	for _, ev := range accepted {
		e := b.rob.Entry(ev.ID)
		if e.State != StateAllocated || e.Seq != ev.Seq {
			b.stats.StaleCompletions++
			continue
		}
		b.prf.Write(e.NewPhys, ev.Result)
		b.rob.MarkReady(ev.ID, ev.Result)
		b.iq.Release(ev.ID, ev.Seq)
		nextBroadcast = append(nextBroadcast, e.NewPhys)
		b.stats.Completions++
	}

	out.Deferred = deferred
	b.stats.ArbiterDeferrals += uint64(len(deferred))
	return nextBroadcast
}

// selectAndIssue runs per-port select over the issue queue, honoring the
// fairness preference, and reads operand values for the winners.
func (b *Backend) selectAndIssue(portBusy [NumPorts]bool, out *TickOutput) ([uop.NumThreads]int, [uop.NumThreads]bool) {
	var hadWaiting, hadReady [uop.NumThreads]bool
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		hadWaiting[t] = b.iq.HasWaiting(t)
		hadReady[t] = b.active[t] && b.iq.HasReadyCandidate(t)
	}

	preferred, hasPref := b.fairness.Preferred()

	var issuedPerThread [uop.NumThreads]int
	for port := Port(0); port < NumPorts; port++ {
		if portBusy[port] {
			continue
		}
		e, ok := b.iq.Select(port, preferred, hasPref)
		if !ok {
			continue
		}
		out.Issued = append(out.Issued, IssuedOp{
			Port:      port,
			Op:        e.Op,
			ID:        e.ID,
			Seq:       e.Seq,
			Dst:       e.Dst,
			Src1Value: b.prf.Read(e.Src1),
			Src2Value: b.prf.Read(e.Src2),
		})
		issuedPerThread[e.Op.Thread]++
		b.stats.Issued++
		b.stats.IssuedByPort[port]++
		b.stats.ThreadIssued[e.Op.Thread]++
	}

	anyWaiting := false
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		if hadWaiting[t] {
			anyWaiting = true
			if issuedPerThread[t] == 0 {
				b.stats.ThreadIssueStalls[t]++
			}
		}
	}
	if anyWaiting && len(out.Issued) == 0 {
		b.stats.IssueStalls++
	}

	return issuedPerThread, hadReady
}

// dispatch renames and allocates the incoming group in order against the
// start-of-cycle snapshots. The first micro-op that cannot be placed refuses
// itself and everything behind it; micro-ops already placed this cycle keep
// their allocations.
func (b *Backend) dispatch(incoming []uop.MicroOp, robFree [uop.NumThreads]int, iqOcc, freeRegs int, out *TickOutput) {
	iqLimit := b.config.IssueQueueSize - b.config.IssueQueueHeadroom

	allocIQ := 0
	usedRegs := 0
	var allocROB [uop.NumThreads]int

	for i := range incoming {
		if i >= b.config.RenameWidth {
			break
		}
		op := incoming[i]
		t := op.Thread

		if !b.active[t] {
			break
		}
		if robFree[t]-allocROB[t] <= 0 {
			break
		}
		if iqOcc+allocIQ >= iqLimit {
			break
		}
		if freeRegs-usedRegs <= 0 {
			break
		}

		// Sources resolve before the destination is remapped, so a
		// micro-op reading its own destination register sees the old
		// mapping. Later micro-ops in the group see the new one.
		src1 := b.rename.Lookup(t, op.Src1)
		src2 := b.rename.Lookup(t, op.Src2)

		newPhys, prevPhys, ok := b.rename.Rename(t, op.Dst)
		if !ok {
			break
		}

		id, ok := b.rob.Allocate(op, newPhys, prevPhys)
		if !ok {
			b.rename.Restore(t, op.Dst, prevPhys)
			b.freeList.Push(newPhys)
			break
		}
		seq := b.rob.Entry(id).Seq

		_, ok = b.iq.Allocate(IQEntry{
			Op:        op,
			ID:        id,
			Seq:       seq,
			Dst:       newPhys,
			Src1:      src1,
			Src2:      src2,
			Src1Ready: b.prf.IsReady(src1),
			Src2Ready: b.prf.IsReady(src2),
		}, b.cycle)
		if !ok {
			b.squashYoungerThan(t, seq-1)
			break
		}

		allocROB[t]++
		allocIQ++
		usedRegs++
		out.Accepted++
		b.stats.Renamed++
	}

	if out.Accepted < len(incoming) {
		b.stats.RenameStalls++
	}
}
