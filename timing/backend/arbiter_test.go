package backend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vixensim/timing/backend"
)

func completion(port backend.Port, seq uint64) backend.CompletionEvent {
	return backend.CompletionEvent{
		Port: port,
		ID:   backend.ROBID{Thread: 0, Slot: int(seq % 16)},
		Seq:  seq,
	}
}

var _ = Describe("Arbiter", func() {
	It("should accept everything under capacity, in port priority order", func() {
		arb := backend.NewArbiter(4)
		events := []backend.CompletionEvent{
			completion(backend.PortFPU1, 1),
			completion(backend.PortALU0, 2),
			completion(backend.PortMUL, 3),
		}

		accepted, deferred := arb.Arbitrate(events)
		Expect(deferred).To(BeEmpty())
		Expect(accepted).To(HaveLen(3))
		Expect(accepted[0].Port).To(Equal(backend.PortALU0))
		Expect(accepted[1].Port).To(Equal(backend.PortMUL))
		Expect(accepted[2].Port).To(Equal(backend.PortFPU1))
	})

	It("should defer the overflow without dropping anything", func() {
		arb := backend.NewArbiter(2)
		events := []backend.CompletionEvent{
			completion(backend.PortDIV, 1),
			completion(backend.PortALU1, 2),
			completion(backend.PortAGU, 3),
			completion(backend.PortALU0, 4),
		}

		accepted, deferred := arb.Arbitrate(events)
		Expect(accepted).To(HaveLen(2))
		Expect(deferred).To(HaveLen(2))
		Expect(accepted[0].Port).To(Equal(backend.PortALU0))
		Expect(accepted[1].Port).To(Equal(backend.PortALU1))
		Expect(deferred[0].Port).To(Equal(backend.PortAGU))
		Expect(deferred[1].Port).To(Equal(backend.PortDIV))
	})

	It("should keep same-port events in arrival order", func() {
		arb := backend.NewArbiter(1)
		events := []backend.CompletionEvent{
			completion(backend.PortALU0, 7),
			completion(backend.PortALU0, 8),
		}

		accepted, deferred := arb.Arbitrate(events)
		Expect(accepted[0].Seq).To(Equal(uint64(7)))
		Expect(deferred[0].Seq).To(Equal(uint64(8)))
	})

	It("should not reorder the caller's slice", func() {
		arb := backend.NewArbiter(1)
		events := []backend.CompletionEvent{
			completion(backend.PortFPU0, 1),
			completion(backend.PortALU0, 2),
		}

		arb.Arbitrate(events)
		Expect(events[0].Port).To(Equal(backend.PortFPU0))
	})

	It("should pass through empty input", func() {
		arb := backend.NewArbiter(3)
		accepted, deferred := arb.Arbitrate(nil)
		Expect(accepted).To(BeEmpty())
		Expect(deferred).To(BeEmpty())
	})
})
