package backend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/uop"
)

func robOp(thread uop.ThreadID, dst uint8) uop.MicroOp {
	return uop.MicroOp{Thread: thread, Class: uop.ClassALU, Dst: dst}
}

var _ = Describe("ROB", func() {
	var rob *backend.ROB

	BeforeEach(func() {
		rob = backend.NewROB(4)
	})

	Describe("Allocation", func() {
		It("should hand out sequence numbers starting at 1", func() {
			id1, ok := rob.Allocate(robOp(0, 1), 32, 1)
			Expect(ok).To(BeTrue())
			Expect(rob.Entry(id1).Seq).To(Equal(uint64(1)))

			id2, _ := rob.Allocate(robOp(0, 2), 33, 2)
			Expect(rob.Entry(id2).Seq).To(Equal(uint64(2)))

			Expect(rob.Occupancy(0)).To(Equal(2))
			Expect(rob.SlotsFree(0)).To(Equal(2))
		})

		It("should refuse allocations when the thread's buffer is full", func() {
			for i := 0; i < 4; i++ {
				_, ok := rob.Allocate(robOp(0, uint8(i)), 32, 1)
				Expect(ok).To(BeTrue())
			}

			_, ok := rob.Allocate(robOp(0, 9), 36, 9)
			Expect(ok).To(BeFalse())

			// The other thread's buffer is unaffected.
			_, ok = rob.Allocate(robOp(1, 0), 40, 16)
			Expect(ok).To(BeTrue())
		})

		It("should count the threads' sequence numbers independently", func() {
			rob.Allocate(robOp(0, 1), 32, 1)
			rob.Allocate(robOp(0, 2), 33, 2)
			id, _ := rob.Allocate(robOp(1, 1), 34, 17)
			Expect(rob.Entry(id).Seq).To(Equal(uint64(1)))
		})
	})

	Describe("Retirement", func() {
		It("should retire in allocation order regardless of completion order", func() {
			var ids [3]backend.ROBID
			for i := range ids {
				ids[i], _ = rob.Allocate(robOp(0, uint8(i)), backend.PhysReg(32+i), backend.PhysReg(i))
			}

			// Complete youngest first, oldest last.
			rob.MarkReady(ids[2], 300)
			rob.MarkReady(ids[0], 100)
			rob.MarkReady(ids[1], 200)

			var seqs []uint64
			for {
				e, ok := rob.RetireHead(0)
				if !ok {
					break
				}
				seqs = append(seqs, e.Seq)
			}
			Expect(seqs).To(Equal([]uint64{1, 2, 3}))
		})

		It("should not retire past an incomplete head", func() {
			rob.Allocate(robOp(0, 1), 32, 1)
			id2, _ := rob.Allocate(robOp(0, 2), 33, 2)
			rob.MarkReady(id2, 7)

			_, ok := rob.RetireHead(0)
			Expect(ok).To(BeFalse())
			Expect(rob.Occupancy(0)).To(Equal(2))
		})

		It("should return the retired entry and reclaim its slot", func() {
			id, _ := rob.Allocate(robOp(0, 3), 35, 3)
			rob.MarkReady(id, 99)

			e, ok := rob.RetireHead(0)
			Expect(ok).To(BeTrue())
			Expect(e.State).To(Equal(backend.StateRetired))
			Expect(e.Result).To(Equal(uint64(99)))
			Expect(e.PrevPhys).To(Equal(backend.PhysReg(3)))

			Expect(rob.Occupancy(0)).To(Equal(0))
			Expect(rob.Entry(id).State).To(Equal(backend.StateEmpty))
		})

		It("should panic when marking an unallocated entry ready", func() {
			Expect(func() {
				rob.MarkReady(backend.ROBID{Thread: 0, Slot: 2}, 1)
			}).To(Panic())
		})
	})

	Describe("Squash", func() {
		It("should drop entries younger than the cutoff, youngest first", func() {
			big := backend.NewROB(16)
			for i := 0; i < 9; i++ {
				big.Allocate(robOp(0, uint8(i)), backend.PhysReg(32+i), backend.PhysReg(i))
			}

			squashed := big.SquashYoungerThan(0, 5)
			Expect(squashed).To(HaveLen(4))
			Expect(squashed[0].Seq).To(Equal(uint64(9)))
			Expect(squashed[3].Seq).To(Equal(uint64(6)))
			Expect(big.Occupancy(0)).To(Equal(5))

			// The freed slots are allocatable again immediately.
			id, ok := big.Allocate(robOp(0, 9), 41, 9)
			Expect(ok).To(BeTrue())
			Expect(big.Entry(id).Seq).To(Equal(uint64(10)))
		})

		It("should drop everything with a zero cutoff", func() {
			rob.Allocate(robOp(0, 1), 32, 1)
			rob.Allocate(robOp(0, 2), 33, 2)

			squashed := rob.SquashAll(0)
			Expect(squashed).To(HaveLen(2))
			Expect(rob.Occupancy(0)).To(Equal(0))
		})

		It("should leave the other thread alone", func() {
			rob.Allocate(robOp(0, 1), 32, 1)
			rob.Allocate(robOp(1, 1), 33, 17)

			rob.SquashAll(0)
			Expect(rob.Occupancy(1)).To(Equal(1))
		})
	})

	Describe("Exceptions", func() {
		It("should block retirement of poisoned entries", func() {
			id, _ := rob.Allocate(robOp(0, 1), 32, 1)
			rob.MarkReady(id, 5)
			rob.FlagException(0, 3)

			Expect(rob.Entry(id).ExcPending).To(BeTrue())
			Expect(rob.Entry(id).ExcVector).To(Equal(uint16(3)))

			_, ok := rob.RetireHead(0)
			Expect(ok).To(BeFalse())
		})
	})
})
