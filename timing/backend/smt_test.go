package backend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/uop"
)

var _ = Describe("FairnessController", func() {
	var fc *backend.FairnessController

	BeforeEach(func() {
		fc = backend.NewFairnessController(4)
	})

	It("should express no preference while the imbalance is within the threshold", func() {
		fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})
		fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})

		_, ok := fc.Preferred()
		Expect(ok).To(BeFalse())
	})

	It("should prefer the lagging thread once the imbalance exceeds the threshold", func() {
		for i := 0; i < 3; i++ {
			fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})
		}

		preferred, ok := fc.Preferred()
		Expect(ok).To(BeTrue())
		Expect(preferred).To(Equal(uop.ThreadID(1)))
	})

	It("should prefer thread 0 when it is the one starving", func() {
		for i := 0; i < 3; i++ {
			fc.Update([uop.NumThreads]int{0, 2}, [uop.NumThreads]bool{true, true})
		}

		preferred, ok := fc.Preferred()
		Expect(ok).To(BeTrue())
		Expect(preferred).To(Equal(uop.ThreadID(0)))
	})

	It("should drop the preference once the lagging thread catches up", func() {
		for i := 0; i < 3; i++ {
			fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})
		}
		_, ok := fc.Preferred()
		Expect(ok).To(BeTrue())

		fc.Update([uop.NumThreads]int{0, 2}, [uop.NumThreads]bool{true, true})
		_, ok = fc.Preferred()
		Expect(ok).To(BeFalse())
	})

	It("should grow a thread's deficit while ready work sits unissued", func() {
		fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})
		fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})
		Expect(fc.Deficit(1)).To(Equal(uint64(2)))
		Expect(fc.Deficit(0)).To(Equal(uint64(0)))

		// Issuing pays the deficit down.
		fc.Update([uop.NumThreads]int{0, 1}, [uop.NumThreads]bool{false, true})
		Expect(fc.Deficit(1)).To(Equal(uint64(1)))
	})

	It("should not grow the deficit of an idle thread", func() {
		fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, false})
		Expect(fc.Deficit(1)).To(Equal(uint64(0)))
	})

	It("should track cumulative issue counts", func() {
		fc.Update([uop.NumThreads]int{2, 1}, [uop.NumThreads]bool{true, true})
		fc.Update([uop.NumThreads]int{1, 0}, [uop.NumThreads]bool{true, false})

		Expect(fc.IssuedTotal(0)).To(Equal(uint64(3)))
		Expect(fc.IssuedTotal(1)).To(Equal(uint64(1)))
	})

	It("should clear everything on reset", func() {
		for i := 0; i < 3; i++ {
			fc.Update([uop.NumThreads]int{2, 0}, [uop.NumThreads]bool{true, true})
		}
		fc.Reset()

		_, ok := fc.Preferred()
		Expect(ok).To(BeFalse())
		Expect(fc.IssuedTotal(0)).To(Equal(uint64(0)))
		Expect(fc.Deficit(1)).To(Equal(uint64(0)))
	})
})
