package trace

import "github.com/sarchlab/vixensim/uop"

// Builder assembles traces programmatically for tests, benchmarks, and the
// trace generator. Program counters advance by 4 per micro-op within each
// thread.
type Builder struct {
	records []Record
	pc      [uop.NumThreads]uint64
}

// NewBuilder creates an empty builder. Thread program counters start at
// 0x1000.
func NewBuilder() *Builder {
	b := &Builder{}
	for t := range b.pc {
		b.pc[t] = 0x1000
	}
	return b
}

func (b *Builder) add(op uop.MicroOp, target uint64, mispredict bool) *Builder {
	op.PC = b.pc[op.Thread]
	b.pc[op.Thread] += 4
	b.records = append(b.records, Record{
		Op:           op,
		BranchTarget: target,
		Mispredict:   mispredict,
	})
	return b
}

// ALU appends an integer ALU micro-op.
func (b *Builder) ALU(thread uop.ThreadID, dst, src1, src2 uint8, imm uint64) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassALU,
		Dst: dst, Src1: src1, Src2: src2, Imm: imm,
	}, 0, false)
}

// MUL appends an integer multiply micro-op.
func (b *Builder) MUL(thread uop.ThreadID, dst, src1, src2 uint8) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassMUL,
		Dst: dst, Src1: src1, Src2: src2,
	}, 0, false)
}

// DIV appends an integer divide micro-op.
func (b *Builder) DIV(thread uop.ThreadID, dst, src1, src2 uint8) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassDIV,
		Dst: dst, Src1: src1, Src2: src2,
	}, 0, false)
}

// FPU appends a floating-point micro-op.
func (b *Builder) FPU(thread uop.ThreadID, dst, src1, src2 uint8) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassFPU,
		Dst: dst, Src1: src1, Src2: src2,
	}, 0, false)
}

// Load appends a load micro-op reading from base+disp into dst.
func (b *Builder) Load(thread uop.ThreadID, dst, base uint8, disp uint64) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassAGU,
		Dst: dst, Src1: base, Imm: disp,
	}, 0, false)
}

// Store appends a store micro-op writing src to base+disp. The destination
// register is a scratch since stores produce no register value.
func (b *Builder) Store(thread uop.ThreadID, base, src uint8, disp uint64) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassAGU,
		Dst: 15, Src1: base, Src2: src, Imm: disp,
		IsStore: true,
	}, 0, false)
}

// Branch appends a branch micro-op with its resolved target and prediction
// outcome as oracle data.
func (b *Builder) Branch(thread uop.ThreadID, dst, src1 uint8, target uint64, mispredict bool) *Builder {
	return b.add(uop.MicroOp{
		Thread: thread, Class: uop.ClassALU,
		Dst: dst, Src1: src1,
		IsBranch: true,
	}, target, mispredict)
}

// Repeat appends n copies of the block the given function builds. The
// function receives the builder so blocks can mix micro-op kinds.
func (b *Builder) Repeat(n int, block func(*Builder)) *Builder {
	for i := 0; i < n; i++ {
		block(b)
	}
	return b
}

// Count returns the number of micro-ops added so far.
func (b *Builder) Count() int {
	return len(b.records)
}

// Build returns the assembled trace.
func (b *Builder) Build() *Trace {
	return &Trace{Records: b.records}
}
