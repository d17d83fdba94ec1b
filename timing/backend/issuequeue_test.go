package backend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/uop"
)

func iqEntry(thread uop.ThreadID, class uop.ExecClass, seq uint64) backend.IQEntry {
	return backend.IQEntry{
		Op:        uop.MicroOp{Thread: thread, Class: class},
		ID:        backend.ROBID{Thread: thread, Slot: int(seq % 16)},
		Seq:       seq,
		Dst:       backend.PhysReg(40 + seq),
		Src1:      0,
		Src2:      1,
		Src1Ready: true,
		Src2Ready: true,
	}
}

var _ = Describe("IssueQueue", func() {
	var iq *backend.IssueQueue

	BeforeEach(func() {
		iq = backend.NewIssueQueue(8, 2)
	})

	Describe("Allocation", func() {
		It("should fill the lowest free slot", func() {
			slot, ok := iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)
			Expect(ok).To(BeTrue())
			Expect(slot).To(Equal(0))

			slot, _ = iq.Allocate(iqEntry(0, uop.ClassALU, 2), 1)
			Expect(slot).To(Equal(1))

			// Free slot 0 and reuse it.
			Expect(iq.Release(backend.ROBID{Thread: 0, Slot: 1}, 1)).To(BeTrue())
			slot, _ = iq.Allocate(iqEntry(0, uop.ClassALU, 3), 2)
			Expect(slot).To(Equal(0))
		})

		It("should refuse allocations at the high-water mark", func() {
			for seq := uint64(1); seq <= 6; seq++ {
				_, ok := iq.Allocate(iqEntry(0, uop.ClassALU, seq), 1)
				Expect(ok).To(BeTrue())
			}

			Expect(iq.Full()).To(BeTrue())
			_, ok := iq.Allocate(iqEntry(0, uop.ClassALU, 7), 1)
			Expect(ok).To(BeFalse())
			Expect(iq.Occupancy()).To(Equal(6))
		})
	})

	Describe("Wakeup", func() {
		It("should mark matching source operands ready", func() {
			e := iqEntry(0, uop.ClassALU, 1)
			e.Src1 = 33
			e.Src1Ready = false
			e.Src2 = 34
			e.Src2Ready = false
			iq.Allocate(e, 1)

			Expect(iq.HasReadyCandidate(0)).To(BeFalse())

			Expect(iq.Wakeup([]backend.PhysReg{33})).To(Equal(1))
			Expect(iq.HasReadyCandidate(0)).To(BeFalse())

			Expect(iq.Wakeup([]backend.PhysReg{34})).To(Equal(1))
			Expect(iq.HasReadyCandidate(0)).To(BeTrue())
		})

		It("should ignore tags nothing waits on", func() {
			e := iqEntry(0, uop.ClassALU, 1)
			e.Src1 = 33
			e.Src1Ready = false
			iq.Allocate(e, 1)

			Expect(iq.Wakeup([]backend.PhysReg{99})).To(Equal(0))
		})
	})

	Describe("Select", func() {
		It("should pick the oldest ready entry for the port", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 5)
			iq.Allocate(iqEntry(0, uop.ClassALU, 2), 3)
			iq.Allocate(iqEntry(0, uop.ClassALU, 3), 4)

			e, ok := iq.Select(backend.PortALU0, 0, false)
			Expect(ok).To(BeTrue())
			Expect(e.Seq).To(Equal(uint64(2)))
		})

		It("should break age ties by slot index", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 7)
			iq.Allocate(iqEntry(0, uop.ClassALU, 2), 7)

			e, _ := iq.Select(backend.PortALU0, 0, false)
			Expect(e.Seq).To(Equal(uint64(1)))
		})

		It("should not hand one entry to two ports", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)

			_, ok := iq.Select(backend.PortALU0, 0, false)
			Expect(ok).To(BeTrue())
			_, ok = iq.Select(backend.PortALU1, 0, false)
			Expect(ok).To(BeFalse())
		})

		It("should only consider entries the port serves", func() {
			iq.Allocate(iqEntry(0, uop.ClassMUL, 1), 1)

			_, ok := iq.Select(backend.PortALU0, 0, false)
			Expect(ok).To(BeFalse())

			e, ok := iq.Select(backend.PortMUL, 0, false)
			Expect(ok).To(BeTrue())
			Expect(e.Op.Class).To(Equal(uop.ClassMUL))
		})

		It("should skip entries with pending operands", func() {
			e := iqEntry(0, uop.ClassALU, 1)
			e.Src2Ready = false
			iq.Allocate(e, 1)

			_, ok := iq.Select(backend.PortALU0, 0, false)
			Expect(ok).To(BeFalse())
		})

		It("should favor the preferred thread over an older entry", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)
			iq.Allocate(iqEntry(1, uop.ClassALU, 1), 4)

			e, ok := iq.Select(backend.PortALU0, 1, true)
			Expect(ok).To(BeTrue())
			Expect(e.Op.Thread).To(Equal(uop.ThreadID(1)))
		})

		It("should fall back to the other thread when the preferred one has nothing", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)

			e, ok := iq.Select(backend.PortALU0, 1, true)
			Expect(ok).To(BeTrue())
			Expect(e.Op.Thread).To(Equal(uop.ThreadID(0)))
		})
	})

	Describe("Release", func() {
		It("should free the slot of a completed micro-op", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)
			iq.Select(backend.PortALU0, 0, false)

			ok := iq.Release(backend.ROBID{Thread: 0, Slot: 1}, 1)
			Expect(ok).To(BeTrue())
			Expect(iq.Occupancy()).To(Equal(0))
		})

		It("should refuse a release with a stale sequence number", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)

			ok := iq.Release(backend.ROBID{Thread: 0, Slot: 1}, 99)
			Expect(ok).To(BeFalse())
			Expect(iq.Occupancy()).To(Equal(1))
		})
	})

	Describe("Squash", func() {
		It("should remove the thread's younger entries, issued or not", func() {
			iq.Allocate(iqEntry(0, uop.ClassALU, 1), 1)
			iq.Allocate(iqEntry(0, uop.ClassALU, 2), 1)
			iq.Allocate(iqEntry(0, uop.ClassALU, 3), 2)
			iq.Allocate(iqEntry(1, uop.ClassALU, 2), 2)

			// Issue seq 2 before the squash.
			iq.Select(backend.PortALU0, 0, false)
			iq.Select(backend.PortALU1, 0, false)

			removed := iq.SquashThread(0, 1)
			Expect(removed).To(Equal(2))
			Expect(iq.Occupancy()).To(Equal(2))
			Expect(iq.HasWaiting(1)).To(BeTrue())
		})
	})
})
