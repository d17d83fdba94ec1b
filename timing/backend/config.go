package backend

import (
	"fmt"

	"github.com/sarchlab/vixensim/uop"
)

// Port identifies one of the issue ports feeding the execution units.
type Port uint8

// Issue ports. The declaration order doubles as the completion arbiter's
// priority order: when more completions arrive in one cycle than the arbiter
// accepts, lower-numbered ports win.
const (
	PortALU0 Port = iota
	PortALU1
	PortAGU
	PortMUL
	PortDIV
	PortFPU0
	PortFPU1
	NumPorts
)

// String returns the port's mnemonic name.
func (p Port) String() string {
	switch p {
	case PortALU0:
		return "ALU0"
	case PortALU1:
		return "ALU1"
	case PortAGU:
		return "AGU"
	case PortMUL:
		return "MUL"
	case PortDIV:
		return "DIV"
	case PortFPU0:
		return "FPU0"
	case PortFPU1:
		return "FPU1"
	}
	return fmt.Sprintf("Port(%d)", uint8(p))
}

// Class returns the execution class the port's unit serves.
func (p Port) Class() uop.ExecClass {
	switch p {
	case PortALU0, PortALU1:
		return uop.ClassALU
	case PortAGU:
		return uop.ClassAGU
	case PortMUL:
		return uop.ClassMUL
	case PortDIV:
		return uop.ClassDIV
	case PortFPU0, PortFPU1:
		return uop.ClassFPU
	}
	return uop.ClassALU
}

// Serves reports whether the port can execute micro-ops of the given class.
func (p Port) Serves(class uop.ExecClass) bool {
	return p.Class() == class
}

// Config holds the structural parameters of the out-of-order backend.
type Config struct {
	// NumPhysRegs is the size of the merged physical register file shared
	// by both threads. The low NumThreads*NumArchRegs registers are the
	// fixed architectural registers and are never placed on the free list.
	// Default: 128.
	NumPhysRegs int `json:"num_phys_regs"`

	// ROBSizePerThread is the capacity of each thread's reorder buffer.
	// Default: 64.
	ROBSizePerThread int `json:"rob_size_per_thread"`

	// IssueQueueSize is the capacity of the unified issue queue shared by
	// both threads. Default: 32.
	IssueQueueSize int `json:"issue_queue_size"`

	// IssueQueueHeadroom is the safety margin kept below the issue queue
	// capacity: the queue refuses allocations once occupancy reaches
	// IssueQueueSize-IssueQueueHeadroom, so rename never overcommits
	// in-flight slots. Default: 4.
	IssueQueueHeadroom int `json:"issue_queue_headroom"`

	// RenameWidth is the maximum number of micro-ops renamed and dispatched
	// per cycle. Default: 3.
	RenameWidth int `json:"rename_width"`

	// ArbiterCapacity is the number of completions the writeback arbiter
	// accepts per cycle. With the default of 7 (one per port) nothing is
	// ever deferred; narrower values make losing completions retry on
	// following cycles. Default: 7.
	ArbiterCapacity int `json:"arbiter_capacity"`

	// FairnessThreshold is the issue-count imbalance between the two
	// threads beyond which the scheduler prefers the lagging thread.
	// Default: 4.
	FairnessThreshold int `json:"fairness_threshold"`
}

// DefaultConfig returns the Vixen Dio Pro backend configuration.
func DefaultConfig() Config {
	return Config{
		NumPhysRegs:        128,
		ROBSizePerThread:   64,
		IssueQueueSize:     32,
		IssueQueueHeadroom: 4,
		RenameWidth:        3,
		ArbiterCapacity:    int(NumPorts),
		FairnessThreshold:  4,
	}
}

// Validate checks that the configuration describes a buildable backend.
func (c Config) Validate() error {
	fixed := uop.NumThreads * uop.NumArchRegs
	if c.NumPhysRegs <= fixed {
		return fmt.Errorf("num_phys_regs must be > %d (the fixed architectural registers)", fixed)
	}
	if c.ROBSizePerThread < 1 {
		return fmt.Errorf("rob_size_per_thread must be >= 1")
	}
	if c.IssueQueueSize < 1 {
		return fmt.Errorf("issue_queue_size must be >= 1")
	}
	if c.IssueQueueHeadroom < 0 || c.IssueQueueHeadroom >= c.IssueQueueSize {
		return fmt.Errorf("issue_queue_headroom must be in [0, issue_queue_size)")
	}
	if c.RenameWidth < 1 {
		return fmt.Errorf("rename_width must be >= 1")
	}
	if c.ArbiterCapacity < 1 {
		return fmt.Errorf("arbiter_capacity must be >= 1")
	}
	if c.FairnessThreshold < 0 {
		return fmt.Errorf("fairness_threshold must be >= 0")
	}
	return nil
}
