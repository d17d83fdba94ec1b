// Package uop defines the micro-operation format consumed by the
// out-of-order backend.
//
// The frontend (fetch, decode, trace cache) is outside this model; it is
// represented by traces of already-decoded micro-ops. Each MicroOp names
// its SMT thread, execution class, architectural registers, and the flags
// the backend needs for scheduling and retirement. Result semantics are
// deliberately approximate: the backend models movement of values through
// rename, issue, completion, and retirement, not x86 arithmetic.
//
// Usage:
//
//	op := uop.MicroOp{Thread: 0, Class: uop.ClassALU, Dst: 3, Src1: 1, Src2: 2}
//	if err := op.Validate(); err != nil {
//		log.Fatal(err)
//	}
package uop
