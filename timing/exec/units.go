// Package exec models the execution-unit farm behind the issue ports.
//
// Units are latency and result models, not functional x86 pipelines: a
// micro-op occupies its port's unit for a class-dependent number of cycles
// and completes with a deterministic placeholder result, which is enough to
// drive wakeup, forwarding, and writeback-contention timing in the backend.
// The AGU unit additionally consults the data memory service for load data
// and hit/miss latency.
package exec

import (
	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/timing/latency"
	"github.com/sarchlab/vixensim/timing/mem"
	"github.com/sarchlab/vixensim/uop"
)

// vectorDivideError is the exception vector raised on a divide by zero.
const vectorDivideError uint16 = 0

type inflightOp struct {
	op        backend.IssuedOp
	remaining uint64
	result    uint64
	fault     bool
	vector    uint16
}

// unit is one execution pipeline behind an issue port.
type unit struct {
	port      backend.Port
	pipelined bool

	inflight []inflightOp

	// held are completions the arbiter deferred; they go out again next
	// cycle and keep the unit's writeback stage occupied until then.
	held []backend.CompletionEvent
}

// Statistics holds execution-unit counters.
type Statistics struct {
	// Started counts micro-ops accepted, per port.
	Started [backend.NumPorts]uint64
	// Completed is the number of results handed to the backend.
	Completed uint64
	// Faults is the number of micro-ops that raised an exception.
	Faults uint64
	// Redeliveries counts completions presented again after an arbiter
	// deferral.
	Redeliveries uint64
}

// TotalStarted returns the number of micro-ops accepted across all ports.
func (s Statistics) TotalStarted() uint64 {
	var total uint64
	for _, n := range s.Started {
		total += n
	}
	return total
}

// Units is the execution-unit farm: one unit per issue port, all advanced
// in lockstep with the backend.
type Units struct {
	table  *latency.Table
	memory *mem.Service
	units  [backend.NumPorts]unit
	stats  Statistics
}

// Option configures Units.
type Option func(*Units)

// WithMemory attaches the data memory service the AGU unit consults for
// load data and access latency. Without it, loads and stores complete at
// the bare AGU latency and loads return the access address.
func WithMemory(m *mem.Service) Option {
	return func(u *Units) { u.memory = m }
}

// NewUnits creates one execution unit per issue port, timed by the given
// latency table.
func NewUnits(table *latency.Table, opts ...Option) *Units {
	u := &Units{table: table}
	for p := backend.Port(0); p < backend.NumPorts; p++ {
		u.units[p] = unit{
			port:      p,
			pipelined: table.IsPipelined(p.Class()),
		}
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start accepts a micro-op issued to a port this cycle. The micro-op holds
// the unit for its class latency and then completes with its result.
func (u *Units) Start(op backend.IssuedOp) {
	un := &u.units[op.Port]
	if !un.pipelined && len(un.inflight) > 0 {
		panic("exec: micro-op issued to a busy unpipelined unit")
	}

	lat, result, fault, vector := u.execute(op)
	un.inflight = append(un.inflight, inflightOp{
		op:        op,
		remaining: lat,
		result:    result,
		fault:     fault,
		vector:    vector,
	})
	u.stats.Started[op.Port]++
}

// StartAll accepts every micro-op of an issue group.
func (u *Units) StartAll(ops []backend.IssuedOp) {
	for _, op := range ops {
		u.Start(op)
	}
}

// Tick advances every unit one cycle. It returns the completions leaving
// the units this cycle (finished micro-ops plus redelivered deferrals), the
// exception requests of faulted micro-ops, and the mask of ports that
// cannot accept a micro-op this cycle.
func (u *Units) Tick() ([]backend.CompletionEvent, []backend.ExceptionRequest, [backend.NumPorts]bool) {
	var completions []backend.CompletionEvent
	var faults []backend.ExceptionRequest
	var busy [backend.NumPorts]bool

	for p := range u.units {
		un := &u.units[p]

		redelivered := len(un.held) > 0
		completions = append(completions, un.held...)
		u.stats.Redeliveries += uint64(len(un.held))
		un.held = nil

		kept := un.inflight[:0]
		for _, f := range un.inflight {
			f.remaining--
			if f.remaining > 0 {
				kept = append(kept, f)
				continue
			}
			if f.fault {
				faults = append(faults, backend.ExceptionRequest{
					Thread: f.op.Op.Thread,
					Seq:    f.op.Seq,
					Vector: f.vector,
				})
				u.stats.Faults++
				continue
			}
			completions = append(completions, backend.CompletionEvent{
				Port:   un.port,
				ID:     f.op.ID,
				Seq:    f.op.Seq,
				Result: f.result,
			})
			u.stats.Completed++
		}
		un.inflight = kept

		// A clogged writeback stage blocks the port for the cycle; an
		// unpipelined unit blocks it for the whole run of a micro-op.
		if redelivered || (!un.pipelined && len(un.inflight) > 0) {
			busy[p] = true
		}
	}

	return completions, faults, busy
}

// HoldDeferred takes back completions the arbiter had no capacity for this
// cycle. The owning units keep them and present them again next cycle, so
// no completion is ever dropped.
func (u *Units) HoldDeferred(events []backend.CompletionEvent) {
	for _, ev := range events {
		un := &u.units[ev.Port]
		un.held = append(un.held, ev)
	}
}

// InFlight returns the number of micro-ops executing or awaiting writeback.
func (u *Units) InFlight() int {
	total := 0
	for p := range u.units {
		total += len(u.units[p].inflight) + len(u.units[p].held)
	}
	return total
}

// Stats returns the accumulated statistics.
func (u *Units) Stats() Statistics {
	return u.stats
}

// Reset drops all in-flight work and zeroes the statistics.
func (u *Units) Reset() {
	for p := range u.units {
		u.units[p].inflight = nil
		u.units[p].held = nil
	}
	u.stats = Statistics{}
}

// execute computes the latency and placeholder result of a micro-op. The
// results are deterministic stand-ins (sums, products, memory words), not
// architectural x86 semantics.
func (u *Units) execute(op backend.IssuedOp) (lat uint64, result uint64, fault bool, vector uint16) {
	if op.Op.IsBranch {
		return u.table.BranchLatency(), op.Src1Value + op.Src2Value + op.Op.Imm, false, 0
	}

	switch op.Op.Class {
	case uop.ClassALU:
		return u.table.ClassLatency(uop.ClassALU), op.Src1Value + op.Src2Value + op.Op.Imm, false, 0
	case uop.ClassAGU:
		return u.executeMemory(op)
	case uop.ClassMUL:
		return u.table.ClassLatency(uop.ClassMUL), op.Src1Value * op.Src2Value, false, 0
	case uop.ClassDIV:
		if op.Src2Value == 0 {
			return u.table.ClassLatency(uop.ClassDIV), 0, true, vectorDivideError
		}
		return u.table.ClassLatency(uop.ClassDIV), op.Src1Value / op.Src2Value, false, 0
	case uop.ClassFPU:
		return u.table.ClassLatency(uop.ClassFPU), op.Src1Value ^ op.Src2Value ^ op.Op.Imm, false, 0
	default:
		panic("exec: unknown execution class")
	}
}

// executeMemory runs a load or store through the memory service. The access
// address is base plus displacement; stores write the second operand and
// complete with the address, loads complete with the memory word.
func (u *Units) executeMemory(op backend.IssuedOp) (lat uint64, result uint64, fault bool, vector uint16) {
	addr := op.Src1Value + op.Op.Imm
	lat = u.table.ClassLatency(uop.ClassAGU)

	if u.memory == nil {
		return lat, addr, false, 0
	}

	if op.Op.IsStore {
		access := u.memory.Write(addr, 8, op.Src2Value)
		return lat + access.Latency, addr, false, 0
	}
	access := u.memory.Read(addr, 8)
	return lat + access.Latency, access.Data, false, 0
}
