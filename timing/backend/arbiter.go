package backend

import "sort"

// CompletionEvent is one finished micro-op presented for writeback. Seq
// identifies the reorder buffer generation so completions of squashed
// micro-ops can be recognized and dropped.
type CompletionEvent struct {
	Port   Port
	ID     ROBID
	Seq    uint64
	Result uint64
}

// Arbiter compacts the completion events of one cycle into at most capacity
// writeback slots. Events from lower-numbered ports win; the losers are
// returned so the execution units can present them again next cycle, so no
// completion is ever dropped.
type Arbiter struct {
	capacity int
}

// NewArbiter creates an arbiter accepting capacity completions per cycle.
func NewArbiter(capacity int) *Arbiter {
	return &Arbiter{capacity: capacity}
}

// Capacity returns the per-cycle writeback limit.
func (a *Arbiter) Capacity() int {
	return a.capacity
}

// Arbitrate splits one cycle's completion events into the accepted set, in
// port priority order, and the deferred overflow.
func (a *Arbiter) Arbitrate(events []CompletionEvent) (accepted, deferred []CompletionEvent) {
	if len(events) == 0 {
		return nil, nil
	}

	sorted := make([]CompletionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Port < sorted[j].Port
	})

	if len(sorted) <= a.capacity {
		return sorted, nil
	}
	return sorted[:a.capacity], sorted[a.capacity:]
}
