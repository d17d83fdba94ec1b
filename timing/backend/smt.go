package backend

import "github.com/sarchlab/vixensim/uop"

// FairnessController balances issue bandwidth between the two SMT threads.
//
// It tracks cumulative issue counts; once the imbalance exceeds the
// configured threshold, the lagging thread is preferred in next cycle's
// select. Per-thread deficit counters grow while a thread sits on ready
// work without issuing and shrink as it is serviced.
type FairnessController struct {
	threshold int64

	issued  [uop.NumThreads]uint64
	deficit [uop.NumThreads]uint64

	preferred     uop.ThreadID
	hasPreference bool
}

// NewFairnessController creates a controller with the given imbalance
// threshold.
func NewFairnessController(threshold int) *FairnessController {
	return &FairnessController{threshold: int64(threshold)}
}

// Preferred returns the thread select should favor this cycle, if the
// imbalance has designated one.
func (f *FairnessController) Preferred() (uop.ThreadID, bool) {
	return f.preferred, f.hasPreference
}

// IssuedTotal returns the cumulative issue count of a thread.
func (f *FairnessController) IssuedTotal(thread uop.ThreadID) uint64 {
	return f.issued[thread]
}

// Deficit returns the current starvation counter of a thread.
func (f *FairnessController) Deficit(thread uop.ThreadID) uint64 {
	return f.deficit[thread]
}

// Update records one cycle's issue results and computes the preference for
// the next cycle. hadReady reports, per thread, whether a ready candidate
// was waiting this cycle.
func (f *FairnessController) Update(issuedThisCycle [uop.NumThreads]int, hadReady [uop.NumThreads]bool) {
	for t := range f.issued {
		n := issuedThisCycle[t]
		f.issued[t] += uint64(n)

		switch {
		case n > 0:
			if f.deficit[t] <= uint64(n) {
				f.deficit[t] = 0
			} else {
				f.deficit[t] -= uint64(n)
			}
		case hadReady[t]:
			f.deficit[t]++
		}
	}

	delta := int64(f.issued[0]) - int64(f.issued[1])
	switch {
	case delta > f.threshold:
		f.preferred = 1
		f.hasPreference = true
	case delta < -f.threshold:
		f.preferred = 0
		f.hasPreference = true
	default:
		f.hasPreference = false
	}
}

// Reset clears all counters and the preference.
func (f *FairnessController) Reset() {
	for t := range f.issued {
		f.issued[t] = 0
		f.deficit[t] = 0
	}
	f.preferred = 0
	f.hasPreference = false
}
