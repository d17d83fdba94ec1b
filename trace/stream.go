package trace

import "github.com/sarchlab/vixensim/uop"

// Stream feeds a trace's micro-ops to the core, keeping per-thread program
// order while interleaving the two threads. Refused or squashed micro-ops
// go back to the front of their thread's queue and come out again.
type Stream struct {
	queues [uop.NumThreads][]Record

	// rr rotates which thread leads the next group.
	rr uop.ThreadID
}

// NewStream creates a stream over the trace, splitting it into per-thread
// queues.
func NewStream(t *Trace) *Stream {
	s := &Stream{}
	for _, rec := range t.Records {
		s.queues[rec.Op.Thread] = append(s.queues[rec.Op.Thread], rec)
	}
	return s
}

// NextGroup pulls up to width records, alternating between the allowed
// threads one record at a time. The leading thread rotates each call so
// neither thread monopolizes the front of the group.
func (s *Stream) NextGroup(width int, allow [uop.NumThreads]bool) []Record {
	var group []Record
	start := s.rr
	s.rr = (s.rr + 1) % uop.NumThreads

	for len(group) < width {
		pulled := false
		for i := uop.ThreadID(0); i < uop.NumThreads && len(group) < width; i++ {
			t := (start + i) % uop.NumThreads
			if !allow[t] || len(s.queues[t]) == 0 {
				continue
			}
			group = append(group, s.queues[t][0])
			s.queues[t] = s.queues[t][1:]
			pulled = true
		}
		if !pulled {
			break
		}
	}
	return group
}

// PushFront returns records to the head of one thread's queue, preserving
// their order. Every record must belong to the given thread.
func (s *Stream) PushFront(thread uop.ThreadID, records []Record) {
	if len(records) == 0 {
		return
	}
	q := make([]Record, 0, len(records)+len(s.queues[thread]))
	q = append(q, records...)
	q = append(q, s.queues[thread]...)
	s.queues[thread] = q
}

// Pending returns the number of records one thread has left.
func (s *Stream) Pending(thread uop.ThreadID) int {
	return len(s.queues[thread])
}

// Done reports whether every thread's queue is empty.
func (s *Stream) Done() bool {
	for t := range s.queues {
		if len(s.queues[t]) > 0 {
			return false
		}
	}
	return true
}
