// Package core assembles the full Vixen Dio Pro machine model: the trace
// stream standing in for the frontend, the out-of-order backend, the
// execution-unit farm, and the data memory service, all advanced in
// lockstep one cycle at a time.
//
// The core also plays the two roles the backend leaves external. It acts
// as the frontend: it feeds rename groups from the trace, holds a thread's
// feed for the pipeline-refill penalty after a redirect, and re-queues
// squashed micro-ops so the thread replays its correct path. And it acts
// as the exception handler: a faulted thread is drained and resumed after
// the refill penalty, with the faulting micro-op consumed.
package core

import (
	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/timing/exec"
	"github.com/sarchlab/vixensim/timing/latency"
	"github.com/sarchlab/vixensim/timing/mem"
	"github.com/sarchlab/vixensim/trace"
	"github.com/sarchlab/vixensim/uop"
)

// defaultBackingSize is the capacity of the flat memory behind the data
// cache when no memory service is supplied.
const defaultBackingSize = 1 << 20

// Statistics aggregates the counters of every component in the core.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// StallCycles counts, per thread, cycles the thread's feed was held:
	// refilling after a mispredict redirect or waiting out a fault.
	StallCycles [uop.NumThreads]uint64
	// Replayed is the number of micro-ops re-queued after a squash or a
	// fault drain.
	Replayed uint64
	// Resumes is the number of times a faulted thread was drained and
	// reactivated.
	Resumes uint64

	Backend backend.Statistics
	Exec    exec.Statistics
	Memory  mem.Statistics
}

// Instructions returns the number of retired micro-ops across both threads.
func (s Statistics) Instructions() uint64 {
	return s.Backend.TotalRetired()
}

// IPC returns retired micro-ops per cycle.
func (s Statistics) IPC() float64 {
	return s.Backend.IPC()
}

// ThreadIPC returns one thread's retired micro-ops per cycle.
func (s Statistics) ThreadIPC(thread uop.ThreadID) float64 {
	return s.Backend.ThreadIPC(thread)
}

// oracleKey names one dispatched branch by thread and sequence number.
type oracleKey struct {
	thread uop.ThreadID
	seq    uint64
}

// branchOutcome is the trace's oracle knowledge of one branch.
type branchOutcome struct {
	target     uint64
	mispredict bool
}

// dispatched is one in-flight micro-op the core remembers so it can replay
// the record if the backend squashes the entry.
type dispatched struct {
	seq uint64
	rec trace.Record
}

// Core is the assembled machine. Create one per trace run.
type Core struct {
	config backend.Config
	table  *latency.Table

	trace   *trace.Trace
	stream  *trace.Stream
	backend *backend.Backend
	units   *exec.Units
	memory  *mem.Service

	// nextSeq mirrors the reorder buffer's per-thread sequence counters so
	// the core can name entries it dispatched. Never rewound.
	nextSeq [uop.NumThreads]uint64

	// shadow lists each thread's dispatched, un-retired records in sequence
	// order. Pruned at retirement, replayed on squash or drain.
	shadow [uop.NumThreads][]dispatched

	// oracle holds the branch outcomes of in-flight branches, keyed by
	// thread and sequence number. An entry is consumed the first time its
	// branch completes and removed when the branch is squashed.
	oracle map[oracleKey]branchOutcome

	// stallUntil is the last cycle the thread's feed stays held after a
	// mispredict redirect.
	stallUntil [uop.NumThreads]uint64

	// faulted, faultSeq and resumeAt track threads waiting out an
	// exception: which micro-op faulted and the last cycle before the
	// drain-and-resume fires.
	faulted  [uop.NumThreads]bool
	faultSeq [uop.NumThreads]uint64
	resumeAt [uop.NumThreads]uint64

	retireHook func(backend.Retirement)

	cycle uint64
	stats Statistics
}

// Option configures a Core.
type Option func(*Core)

// WithBackendConfig overrides the default backend configuration.
func WithBackendConfig(config backend.Config) Option {
	return func(c *Core) { c.config = config }
}

// WithLatencyTable overrides the default latency table.
func WithLatencyTable(table *latency.Table) Option {
	return func(c *Core) { c.table = table }
}

// WithMemoryService overrides the default L1 data memory service.
func WithMemoryService(m *mem.Service) Option {
	return func(c *Core) { c.memory = m }
}

// WithRetireHook installs a callback invoked once per retirement, in
// retirement order.
func WithRetireHook(fn func(backend.Retirement)) Option {
	return func(c *Core) { c.retireHook = fn }
}

// NewCore creates a core over the given trace with default configuration:
// the Vixen Dio Pro backend, default latencies, and an L1 data cache over
// a 1 MiB flat memory.
func NewCore(tr *trace.Trace, opts ...Option) *Core {
	c := &Core{
		config: backend.DefaultConfig(),
		table:  latency.NewTable(),
		trace:  tr,
		oracle: make(map[oracleKey]branchOutcome),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.memory == nil {
		c.memory = mem.NewService(mem.DefaultL1DConfig(), mem.NewStorageBacking(defaultBackingSize))
	}

	c.stream = trace.NewStream(tr)
	c.backend = backend.NewBackend(c.config)
	c.units = exec.NewUnits(c.table, exec.WithMemory(c.memory))
	for t := range c.nextSeq {
		c.nextSeq[t] = 1
	}
	return c
}

// Backend returns the out-of-order backend, for inspection.
func (c *Core) Backend() *backend.Backend {
	return c.backend
}

// Memory returns the data memory service, for inspection.
func (c *Core) Memory() *mem.Service {
	return c.memory
}

// Cycle returns the number of cycles simulated.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// Stats returns the aggregated statistics of every component.
func (c *Core) Stats() Statistics {
	s := c.stats
	s.Cycles = c.cycle
	s.Backend = c.backend.Stats()
	s.Exec = c.units.Stats()
	s.Memory = c.memory.Stats()
	return s
}

// Done reports whether the machine has drained: no trace records left, no
// micro-ops in the execution units, and both reorder buffers empty. A
// faulted thread holds poisoned entries until its resume fires, so the
// core is not done while a fault is pending.
func (c *Core) Done() bool {
	if !c.stream.Done() || c.units.InFlight() > 0 {
		return false
	}
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		if c.backend.ROBOccupancy(t) > 0 {
			return false
		}
	}
	return true
}

// Tick advances the whole machine one cycle.
func (c *Core) Tick() {
	c.cycle++

	completions, faults, portBusy := c.units.Tick()

	c.fireResumes()
	faults = c.recordFaults(faults)
	resolves, cutoff, hasCutoff := c.synthesizeResolves(completions)

	allow := c.feedMask(resolves, faults)
	group := c.stream.NextGroup(c.config.RenameWidth, allow)
	incoming := make([]uop.MicroOp, len(group))
	for i := range group {
		incoming[i] = group[i].Op
	}

	out := c.backend.Tick(backend.TickInput{
		Incoming:       incoming,
		Completions:    completions,
		BranchResolves: resolves,
		Exceptions:     faults,
		PortBusy:       portBusy,
	})

	c.trackAccepted(group, out.Accepted)
	c.requeueRefused(group, out.Accepted)
	c.units.StartAll(out.Issued)
	c.units.HoldDeferred(out.Deferred)
	c.pruneShadow(out.Retired)
	c.applyRedirects(out.Redirects, cutoff, hasCutoff)

	if c.retireHook != nil {
		for _, r := range out.Retired {
			c.retireHook(r)
		}
	}
}

// Run advances the core until the trace drains or maxCycles elapses. A
// maxCycles of zero means no limit. It reports whether the trace drained.
func (c *Core) Run(maxCycles uint64) bool {
	for !c.Done() {
		if maxCycles > 0 && c.cycle >= maxCycles {
			return false
		}
		c.Tick()
	}
	return true
}

// RunCycles advances the core for up to n cycles. It reports whether the
// machine is still running.
func (c *Core) RunCycles(n uint64) bool {
	for i := uint64(0); i < n; i++ {
		if c.Done() {
			return false
		}
		c.Tick()
	}
	return !c.Done()
}

// Reset restores power-on state, rewinds the trace, and zeroes the
// statistics. Data written to the memory backing is kept.
func (c *Core) Reset() {
	c.stream = trace.NewStream(c.trace)
	c.backend.Reset()
	c.units.Reset()
	c.memory.Reset()

	for t := range c.nextSeq {
		c.nextSeq[t] = 1
		c.shadow[t] = nil
		c.stallUntil[t] = 0
		c.faulted[t] = false
		c.faultSeq[t] = 0
		c.resumeAt[t] = 0
	}
	c.oracle = make(map[oracleKey]branchOutcome)
	c.cycle = 0
	c.stats = Statistics{}
}

// fireResumes drains and reactivates faulted threads whose handler delay
// has elapsed. The drained records replay from the trace stream, except
// the faulting micro-op, which the handler consumed.
func (c *Core) fireResumes() {
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		if !c.faulted[t] || c.cycle <= c.resumeAt[t] {
			continue
		}
		c.backend.ResumeThread(t)
		c.replayDrained(t)
		c.faulted[t] = false
		c.stats.Resumes++
	}
}

// recordFaults notes each newly faulting thread and schedules its resume.
// A thread already waiting out a fault cannot fault again; such requests
// are dropped.
func (c *Core) recordFaults(faults []backend.ExceptionRequest) []backend.ExceptionRequest {
	kept := faults[:0]
	for _, f := range faults {
		if c.faulted[f.Thread] {
			continue
		}
		c.faulted[f.Thread] = true
		c.faultSeq[f.Thread] = f.Seq
		c.resumeAt[f.Thread] = c.cycle + c.table.MispredictPenalty()
		kept = append(kept, f)
	}
	return kept
}

// synthesizeResolves turns completions of in-flight branches into branch
// resolutions using the trace's oracle data. Each branch resolves exactly
// once: the oracle entry is consumed here, so a completion redelivered
// after an arbiter deferral does not resolve again. Branches of faulted
// threads are left for the drain.
//
// It also returns, per thread, the oldest mispredicted sequence number of
// the cycle, which bounds the records to replay if the redirect fires.
func (c *Core) synthesizeResolves(
	completions []backend.CompletionEvent,
) ([]backend.BranchResolution, [uop.NumThreads]uint64, [uop.NumThreads]bool) {
	var resolves []backend.BranchResolution
	var cutoff [uop.NumThreads]uint64
	var hasCutoff [uop.NumThreads]bool

	for _, ev := range completions {
		t := ev.ID.Thread
		if c.faulted[t] {
			continue
		}
		outcome, ok := c.oracle[oracleKey{t, ev.Seq}]
		if !ok {
			continue
		}
		delete(c.oracle, oracleKey{t, ev.Seq})

		resolves = append(resolves, backend.BranchResolution{
			ID:         ev.ID,
			Seq:        ev.Seq,
			Mispredict: outcome.mispredict,
			Target:     outcome.target,
		})
		if outcome.mispredict && (!hasCutoff[t] || ev.Seq < cutoff[t]) {
			cutoff[t] = ev.Seq
			hasCutoff[t] = true
		}
	}
	return resolves, cutoff, hasCutoff
}

// feedMask decides which threads may feed micro-ops this cycle. A thread
// is held while it refills after a redirect, while it waits out a fault,
// and on the cycle its mispredict or fault is delivered to the backend.
func (c *Core) feedMask(
	resolves []backend.BranchResolution, faults []backend.ExceptionRequest,
) [uop.NumThreads]bool {
	var allow [uop.NumThreads]bool
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		blocked := c.faulted[t] || c.cycle <= c.stallUntil[t]
		if blocked && (c.faulted[t] || c.stream.Pending(t) > 0) {
			c.stats.StallCycles[t]++
		}
		allow[t] = !blocked
	}
	for _, br := range resolves {
		if br.Mispredict {
			allow[br.ID.Thread] = false
		}
	}
	for _, f := range faults {
		allow[f.Thread] = false
	}
	return allow
}

// trackAccepted mirrors the backend's allocations for the accepted prefix
// of the group: sequence numbers, the shadow list, and oracle entries for
// branches.
func (c *Core) trackAccepted(group []trace.Record, accepted int) {
	for i := 0; i < accepted; i++ {
		rec := group[i]
		t := rec.Op.Thread
		seq := c.nextSeq[t]
		c.nextSeq[t]++

		c.shadow[t] = append(c.shadow[t], dispatched{seq: seq, rec: rec})
		if rec.Op.IsBranch {
			c.oracle[oracleKey{t, seq}] = branchOutcome{
				target:     rec.BranchTarget,
				mispredict: rec.Mispredict,
			}
		}
	}
}

// requeueRefused returns the refused tail of the group to the front of
// each thread's queue, preserving per-thread order.
func (c *Core) requeueRefused(group []trace.Record, accepted int) {
	if accepted >= len(group) {
		return
	}
	var back [uop.NumThreads][]trace.Record
	for _, rec := range group[accepted:] {
		back[rec.Op.Thread] = append(back[rec.Op.Thread], rec)
	}
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		c.stream.PushFront(t, back[t])
	}
}

// pruneShadow drops retired records from the shadow lists. Retired work is
// architectural and never replays.
func (c *Core) pruneShadow(retired []backend.Retirement) {
	for _, r := range retired {
		q := c.shadow[r.Thread]
		for len(q) > 0 && q[0].seq <= r.Seq {
			q = q[1:]
		}
		c.shadow[r.Thread] = q
	}
}

// applyRedirects reacts to the backend's redirects: a mispredict redirect
// replays the squashed records and holds the thread's feed for the refill
// penalty. Exception redirects carry no work here; the resume was already
// scheduled when the fault was recorded.
func (c *Core) applyRedirects(
	redirects []backend.Redirect, cutoff [uop.NumThreads]uint64, hasCutoff [uop.NumThreads]bool,
) {
	for _, r := range redirects {
		if r.IsException {
			continue
		}
		t := r.Thread
		if hasCutoff[t] {
			c.replayYoungerThan(t, cutoff[t])
			hasCutoff[t] = false
		}
		c.stallUntil[t] = c.cycle + c.table.MispredictPenalty()
	}
}

// replayYoungerThan pushes the thread's squashed records back onto the
// trace stream, youngest last, and forgets their oracle entries. The
// records re-dispatch with fresh sequence numbers once the feed resumes.
func (c *Core) replayYoungerThan(thread uop.ThreadID, cutoffSeq uint64) {
	q := c.shadow[thread]
	i := len(q)
	for i > 0 && q[i-1].seq > cutoffSeq {
		i--
	}
	doomed := q[i:]
	if len(doomed) == 0 {
		return
	}

	records := make([]trace.Record, len(doomed))
	for j, d := range doomed {
		records[j] = d.rec
		delete(c.oracle, oracleKey{thread, d.seq})
	}
	c.stream.PushFront(thread, records)
	c.shadow[thread] = q[:i]
	c.stats.Replayed += uint64(len(records))
}

// replayDrained pushes a drained thread's records back onto the trace
// stream, dropping the faulting micro-op.
func (c *Core) replayDrained(thread uop.ThreadID) {
	var records []trace.Record
	for _, d := range c.shadow[thread] {
		delete(c.oracle, oracleKey{thread, d.seq})
		if d.seq == c.faultSeq[thread] {
			continue
		}
		records = append(records, d.rec)
	}
	c.stream.PushFront(thread, records)
	c.shadow[thread] = nil
	c.stats.Replayed += uint64(len(records))
}
