// Package latency provides execution timing models for cycle-level simulation.
//
// The latency values are Vixen Dio Pro microarchitecture estimates and can be
// configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/vixensim/uop"
)

// Table provides execution latency lookups per micro-op class.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default Vixen timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// ClassLatency returns the execution latency in cycles for a micro-op of the
// given class. For loads and stores this covers address generation only; the
// cache access latency is added by the memory service.
func (t *Table) ClassLatency(class uop.ExecClass) uint64 {
	switch class {
	case uop.ClassALU:
		return t.config.ALULatency
	case uop.ClassAGU:
		return t.config.AGULatency
	case uop.ClassMUL:
		return t.config.MulLatency
	case uop.ClassDIV:
		return t.config.DivLatency
	case uop.ClassFPU:
		return t.config.FPULatency
	}
	return 1
}

// BranchLatency returns the latency for resolving a branch micro-op on an
// ALU port.
func (t *Table) BranchLatency() uint64 {
	return t.config.BranchCheckLatency
}

// MispredictPenalty returns the pipeline refill penalty after a branch
// misprediction.
func (t *Table) MispredictPenalty() uint64 {
	return t.config.BranchMispredictPenalty
}

// IsPipelined returns whether a unit of the given class can accept a new
// micro-op every cycle. The divider is the only unpipelined unit.
func (t *Table) IsPipelined(class uop.ExecClass) bool {
	return class != uop.ClassDIV
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
