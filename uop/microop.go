package uop

import "fmt"

// Hardware widths of the modeled machine (one physical core, two SMT
// threads, x86-64 integer register file).
const (
	// NumThreads is the number of hardware threads sharing the backend.
	NumThreads = 2

	// NumArchRegs is the number of architectural registers per thread.
	NumArchRegs = 16
)

// ThreadID identifies one of the SMT hardware threads.
type ThreadID uint8

// ExecClass selects the kind of execution unit a micro-op needs.
type ExecClass uint8

// Execution classes.
const (
	ClassALU ExecClass = iota // Integer arithmetic and logic
	ClassAGU                  // Address generation (loads and stores)
	ClassMUL                  // Integer multiply
	ClassDIV                  // Integer divide
	ClassFPU                  // Floating point
	NumExecClasses
)

// String returns the mnemonic name of the execution class.
func (c ExecClass) String() string {
	switch c {
	case ClassALU:
		return "ALU"
	case ClassAGU:
		return "AGU"
	case ClassMUL:
		return "MUL"
	case ClassDIV:
		return "DIV"
	case ClassFPU:
		return "FPU"
	}
	return fmt.Sprintf("ExecClass(%d)", uint8(c))
}

// ParseExecClass converts a mnemonic name (as used in trace files) to an
// execution class.
func ParseExecClass(s string) (ExecClass, error) {
	switch s {
	case "ALU", "alu":
		return ClassALU, nil
	case "AGU", "agu":
		return ClassAGU, nil
	case "MUL", "mul":
		return ClassMUL, nil
	case "DIV", "div":
		return ClassDIV, nil
	case "FPU", "fpu":
		return ClassFPU, nil
	}
	return 0, fmt.Errorf("unknown execution class %q", s)
}

// MicroOp is one decoded micro-operation as delivered by the frontend.
type MicroOp struct {
	Thread ThreadID  // Originating SMT thread
	Class  ExecClass // Execution unit kind required

	Dst  uint8 // Destination architectural register
	Src1 uint8 // First source architectural register
	Src2 uint8 // Second source architectural register

	Imm uint64 // Immediate operand, if any

	IsBranch bool // Micro-op resolves a branch
	IsStore  bool // Micro-op writes memory

	PC uint64 // Program counter of the parent instruction
}

// Validate reports whether the micro-op's fields are within the modeled
// machine's ranges. Malformed micro-ops must be rejected before they reach
// the backend.
func (op *MicroOp) Validate() error {
	if op.Thread >= NumThreads {
		return fmt.Errorf("thread %d out of range (machine has %d threads)", op.Thread, NumThreads)
	}
	if op.Class >= NumExecClasses {
		return fmt.Errorf("execution class %d out of range", op.Class)
	}
	if op.Dst >= NumArchRegs {
		return fmt.Errorf("destination register %d out of range (machine has %d)", op.Dst, NumArchRegs)
	}
	if op.Src1 >= NumArchRegs {
		return fmt.Errorf("source register %d out of range (machine has %d)", op.Src1, NumArchRegs)
	}
	if op.Src2 >= NumArchRegs {
		return fmt.Errorf("source register %d out of range (machine has %d)", op.Src2, NumArchRegs)
	}
	return nil
}

// String renders the micro-op in a compact debug form.
func (op *MicroOp) String() string {
	flags := ""
	if op.IsBranch {
		flags += "B"
	}
	if op.IsStore {
		flags += "S"
	}
	if flags == "" {
		flags = "-"
	}
	return fmt.Sprintf("T%d %s r%d <- r%d, r%d imm=%d flags=%s pc=0x%x",
		op.Thread, op.Class, op.Dst, op.Src1, op.Src2, op.Imm, flags, op.PC)
}
