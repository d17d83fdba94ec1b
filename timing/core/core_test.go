package core_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/timing/core"
	"github.com/sarchlab/vixensim/timing/latency"
	"github.com/sarchlab/vixensim/timing/mem"
	"github.com/sarchlab/vixensim/trace"
	"github.com/sarchlab/vixensim/uop"
)

func TestCore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Core Suite")
}

// shortPenaltyTable returns a latency table with a 3-cycle refill penalty
// and a 3-cycle divider, keeping recovery scenarios small.
func shortPenaltyTable() *latency.Table {
	cfg := latency.DefaultTimingConfig()
	cfg.BranchMispredictPenalty = 3
	cfg.DivLatency = 3
	return latency.NewTableWithConfig(cfg)
}

var _ = Describe("Core", func() {
	Describe("Independent micro-ops", func() {
		It("should drain three independent ALU micro-ops in six cycles", func() {
			tr := trace.NewBuilder().
				ALU(0, 1, 0, 0, 1).
				ALU(0, 2, 0, 0, 2).
				ALU(0, 3, 0, 0, 3).
				Build()
			c := core.NewCore(tr)

			Expect(c.Run(0)).To(BeTrue())

			// Dispatch, one cycle on the two ALU ports plus a third issue,
			// then one retirement per cycle.
			stats := c.Stats()
			Expect(stats.Cycles).To(Equal(uint64(6)))
			Expect(stats.Instructions()).To(Equal(uint64(3)))
			Expect(stats.IPC()).To(BeNumerically("~", 0.5, 1e-9))
			Expect(stats.Exec.Started[backend.PortALU0]).To(Equal(uint64(2)))
			Expect(stats.Exec.Started[backend.PortALU1]).To(Equal(uint64(1)))
			Expect(c.Done()).To(BeTrue())
		})
	})

	Describe("Dependency chains", func() {
		It("should space dependent multiplies by latency plus one", func() {
			tr := trace.NewBuilder().
				MUL(0, 1, 0, 0).
				MUL(0, 2, 1, 1).
				MUL(0, 3, 2, 2).
				Build()
			c := core.NewCore(tr)

			Expect(c.Run(0)).To(BeTrue())

			// First issue at cycle 2, then one 4-cycle multiply plus one
			// wakeup cycle per link: 2 + 3*5 = 17.
			Expect(c.Stats().Cycles).To(Equal(uint64(17)))
			Expect(c.Stats().Instructions()).To(Equal(uint64(3)))
		})
	})

	Describe("Branch misprediction", func() {
		var (
			c       *core.Core
			retired []backend.Retirement
		)

		BeforeEach(func() {
			tr := trace.NewBuilder().
				Branch(0, 15, 0, 0x2000, true).
				ALU(0, 1, 0, 0, 1).
				ALU(0, 2, 0, 0, 2).
				ALU(0, 3, 0, 0, 3).
				Build()
			retired = nil
			c = core.NewCore(tr,
				core.WithLatencyTable(shortPenaltyTable()),
				core.WithRetireHook(func(r backend.Retirement) {
					retired = append(retired, r)
				}),
			)
		})

		It("should squash, stall for the penalty, and replay the squashed path", func() {
			Expect(c.Run(0)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Cycles).To(Equal(uint64(12)))
			Expect(stats.Backend.Flushes).To(Equal(uint64(1)))
			Expect(stats.Replayed).To(Equal(uint64(3)))
			Expect(stats.StallCycles[0]).To(Equal(uint64(3)))
			Expect(stats.Instructions()).To(Equal(uint64(4)))

			// The micro-op completing alongside the branch was squashed
			// before its result landed.
			Expect(stats.Backend.StaleCompletions).To(Equal(uint64(1)))

			// Replayed micro-ops execute twice.
			Expect(stats.Exec.TotalStarted()).To(Equal(uint64(5)))
		})

		It("should retire the replayed path in program order", func() {
			Expect(c.Run(0)).To(BeTrue())

			Expect(retired).To(HaveLen(4))
			pcs := make([]uint64, len(retired))
			for i, r := range retired {
				pcs[i] = r.Op.PC
			}
			Expect(pcs).To(Equal([]uint64{0x1000, 0x1004, 0x1008, 0x100c}))

			// The replayed micro-ops carry fresh sequence numbers.
			Expect(retired[0].Seq).To(Equal(uint64(1)))
			Expect(retired[1].Seq).To(Equal(uint64(5)))
			Expect(retired[3].Seq).To(Equal(uint64(7)))
		})

		It("should leave the other thread's feed alone", func() {
			tr := trace.NewBuilder().
				Branch(0, 15, 0, 0x2000, true).
				ALU(0, 1, 0, 0, 1).
				ALU(0, 2, 0, 0, 2).
				ALU(1, 1, 0, 0, 1).
				ALU(1, 2, 0, 0, 2).
				ALU(1, 3, 0, 0, 3).
				ALU(1, 4, 0, 0, 4).
				Build()
			c := core.NewCore(tr, core.WithLatencyTable(shortPenaltyTable()))

			Expect(c.Run(0)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Backend.Flushes).To(Equal(uint64(1)))
			Expect(stats.Backend.Retired[0]).To(Equal(uint64(3)))
			Expect(stats.Backend.Retired[1]).To(Equal(uint64(4)))
			Expect(stats.StallCycles[1]).To(Equal(uint64(0)))
		})
	})

	Describe("Exceptions", func() {
		It("should drain a faulted thread, drop the faulting micro-op, and resume", func() {
			var retired []backend.Retirement
			tr := trace.NewBuilder().
				ALU(0, 1, 0, 0, 8).
				DIV(0, 3, 1, 0). // r0 is always zero: divide fault
				ALU(0, 4, 1, 0, 1).
				Build()
			c := core.NewCore(tr,
				core.WithLatencyTable(shortPenaltyTable()),
				core.WithRetireHook(func(r backend.Retirement) {
					retired = append(retired, r)
				}),
			)

			Expect(c.Run(0)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Cycles).To(Equal(uint64(14)))
			Expect(stats.Backend.Exceptions).To(Equal(uint64(1)))
			Expect(stats.Exec.Faults).To(Equal(uint64(1)))
			Expect(stats.Resumes).To(Equal(uint64(1)))
			Expect(stats.Replayed).To(Equal(uint64(1)))
			Expect(stats.StallCycles[0]).To(Equal(uint64(4)))

			// The divide never retires; the dependent micro-op replays
			// after the drain and sees the committed value of r1.
			Expect(stats.Instructions()).To(Equal(uint64(2)))
			Expect(retired).To(HaveLen(2))
			Expect(retired[0].Op.PC).To(Equal(uint64(0x1000)))
			Expect(retired[0].Result).To(Equal(uint64(8)))
			Expect(retired[1].Op.PC).To(Equal(uint64(0x1008)))
			Expect(retired[1].Result).To(Equal(uint64(9)))
		})
	})

	Describe("SMT", func() {
		It("should run two balanced threads side by side", func() {
			b := trace.NewBuilder()
			for i := uint8(1); i <= 6; i++ {
				b.ALU(0, i, 0, 0, uint64(i))
			}
			for i := uint8(1); i <= 6; i++ {
				b.ALU(1, i, 0, 0, uint64(i))
			}
			c := core.NewCore(b.Build())

			Expect(c.Run(0)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Cycles).To(Equal(uint64(9)))
			Expect(stats.Backend.Retired).To(Equal([uop.NumThreads]uint64{6, 6}))
			Expect(stats.Backend.ThreadIssued).To(Equal([uop.NumThreads]uint64{6, 6}))
			Expect(stats.StallCycles).To(Equal([uop.NumThreads]uint64{0, 0}))
		})
	})

	Describe("Memory micro-ops", func() {
		It("should carry a stored value to a later load", func() {
			var retired []backend.Retirement
			tr := trace.NewBuilder().
				ALU(0, 2, 0, 0, 0x77). // store data
				ALU(0, 1, 0, 0, 1).
				MUL(0, 5, 1, 1). // load base arrives late
				Store(0, 0, 2, 0x100).
				Load(0, 3, 5, 0xFF).
				Build()
			svc := mem.NewService(mem.Config{
				Size:          4 * 1024,
				Associativity: 4,
				BlockSize:     64,
				HitLatency:    2,
				MissLatency:   6,
			}, mem.NewStorageBacking(1<<16))
			c := core.NewCore(tr,
				core.WithMemoryService(svc),
				core.WithRetireHook(func(r backend.Retirement) {
					retired = append(retired, r)
				}),
			)

			Expect(c.Run(0)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Cycles).To(Equal(uint64(14)))
			Expect(stats.Memory.Writes).To(Equal(uint64(1)))
			Expect(stats.Memory.Reads).To(Equal(uint64(1)))
			Expect(stats.Memory.Hits).To(Equal(uint64(1)))
			Expect(stats.Memory.Misses).To(Equal(uint64(1)))

			// The load's result is the stored word.
			Expect(retired).To(HaveLen(5))
			Expect(retired[4].Op.Class).To(Equal(uop.ClassAGU))
			Expect(retired[4].Result).To(Equal(uint64(0x77)))
		})
	})

	Describe("Dispatch backpressure", func() {
		It("should bounce refused micro-ops and still drain the trace", func() {
			b := trace.NewBuilder()
			for i := 0; i < 6; i++ {
				b.ALU(0, uint8(1+i%4), 0, 0, uint64(i))
			}
			cfg := backend.DefaultConfig()
			cfg.ROBSizePerThread = 2
			c := core.NewCore(b.Build(), core.WithBackendConfig(cfg))

			Expect(c.Run(0)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Instructions()).To(Equal(uint64(6)))
			Expect(stats.Backend.RenameStalls).To(BeNumerically(">", 0))
		})
	})

	Describe("Run control", func() {
		It("should stop at the cycle limit and pick up where it left", func() {
			tr := trace.NewBuilder().
				MUL(0, 1, 0, 0).
				MUL(0, 2, 1, 1).
				MUL(0, 3, 2, 2).
				Build()
			c := core.NewCore(tr)

			Expect(c.Run(5)).To(BeFalse())
			Expect(c.Cycle()).To(Equal(uint64(5)))
			Expect(c.Done()).To(BeFalse())

			Expect(c.Run(0)).To(BeTrue())
			Expect(c.Cycle()).To(Equal(uint64(17)))
		})

		It("should report running state through RunCycles", func() {
			tr := trace.NewBuilder().ALU(0, 1, 0, 0, 1).Build()
			c := core.NewCore(tr)

			Expect(c.RunCycles(1)).To(BeTrue())
			Expect(c.RunCycles(100)).To(BeFalse())
			Expect(c.Done()).To(BeTrue())
		})
	})

	Describe("Reset", func() {
		It("should replay the same trace to the same cycle count", func() {
			tr := trace.NewBuilder().
				MUL(0, 1, 0, 0).
				MUL(0, 2, 1, 1).
				MUL(0, 3, 2, 2).
				Build()
			c := core.NewCore(tr)

			Expect(c.Run(0)).To(BeTrue())
			first := c.Stats().Cycles

			c.Reset()
			Expect(c.Cycle()).To(Equal(uint64(0)))
			Expect(c.Done()).To(BeFalse())

			Expect(c.Run(0)).To(BeTrue())
			Expect(c.Stats().Cycles).To(Equal(first))
		})
	})

	Describe("Defaults", func() {
		It("should come up with the stock configuration", func() {
			c := core.NewCore(trace.NewBuilder().Build())
			Expect(c.Backend().Config()).To(Equal(backend.DefaultConfig()))
			Expect(c.Memory()).NotTo(BeNil())
			Expect(c.Done()).To(BeTrue())
		})
	})
})
