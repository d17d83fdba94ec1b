// Package benchmarks provides ready-made micro-op workloads and a timing
// harness for measuring vixensim throughput.
package benchmarks

import (
	"github.com/sarchlab/vixensim/trace"
)

// GetMicrobenchmarks returns the single-thread workloads, each isolating
// one backend bottleneck.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		aluThroughput(),
		dependencyChain(),
		mulDivPressure(),
		loadStream(),
		mispredictStorm(),
	}
}

// GetSMTBenchmarks returns the two-thread workloads.
func GetSMTBenchmarks() []Benchmark {
	return []Benchmark{
		smtImbalance(),
		fullMix(),
	}
}

// GetAllBenchmarks returns every built-in workload.
func GetAllBenchmarks() []Benchmark {
	return append(GetMicrobenchmarks(), GetSMTBenchmarks()...)
}

// aluThroughput streams independent ALU micro-ops on one thread. Both ALU
// ports stay fed, so throughput pins at the single-thread retire bandwidth
// of one micro-op per cycle.
func aluThroughput() Benchmark {
	return Benchmark{
		Name:        "alu_throughput",
		Description: "independent ALU stream bounded by single-thread retire bandwidth",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			i := 0
			b.Repeat(300, func(b *trace.Builder) {
				b.ALU(0, uint8(1+i%8), 0, 0, uint64(i))
				i++
			})
			return b.Build()
		},
		MinIPC: 0.90,
		MaxIPC: 1.00,
	}
}

// dependencyChain strings every ALU micro-op off the previous one. Each
// link waits for the one-cycle wakeup after its producer completes, so the
// sustained rate is one micro-op every two cycles.
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "serial ALU chain exposing the wakeup-to-issue latency",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			b.Repeat(200, func(b *trace.Builder) {
				b.ALU(0, 1, 1, 0, 1)
			})
			return b.Build()
		},
		MinIPC: 0.45,
		MaxIPC: 0.52,
	}
}

// mulDivPressure interleaves independent divides with multiplies. The
// divider is unpipelined, so every divide holds its port for the full
// latency and the stream crawls behind it while the multiplies overlap.
func mulDivPressure() Benchmark {
	return Benchmark{
		Name:        "muldiv_pressure",
		Description: "unpipelined divider serializing a multiply-heavy stream",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			b.ALU(0, 1, 0, 0, 4) // keep every divisor nonzero
			i := 0
			b.Repeat(30, func(b *trace.Builder) {
				b.DIV(0, uint8(3+i%6), 2, 1)
				b.MUL(0, 9, 1, 1)
				b.MUL(0, 10, 1, 1)
				i++
			})
			return b.Build()
		},
		MinIPC: 0.10,
		MaxIPC: 0.25,
	}
}

// loadStream walks one block per load through 16 KiB (cold misses), rereads
// the resident half (hits), then finishes with store-then-reload pairs that
// exercise store forwarding. The single AGU port holds issue at one access
// per cycle, so throughput stays near the retire bound while the cache
// counters separate this run from a pure ALU stream.
func loadStream() Benchmark {
	return Benchmark{
		Name:        "load_stream",
		Description: "strided loads through the data cache plus store-forward pairs",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			for i := 0; i < 256; i++ {
				b.Load(0, uint8(1+i%8), 0, uint64(i*64))
			}
			for i := 0; i < 128; i++ {
				b.Load(0, uint8(1+i%8), 0, uint64(8192+i*64))
			}
			for i := 0; i < 16; i++ {
				disp := uint64(0x8000 + i*64)
				b.Store(0, 0, 1, disp)
				b.Load(0, 2, 0, disp)
			}
			return b.Build()
		},
		MinIPC: 0.80,
		MaxIPC: 1.00,
	}
}

// mispredictStorm makes every fifth micro-op a mispredicted branch. Each
// one squashes the block behind it, charges the full refill penalty, and
// replays the block, so throughput collapses to a few micro-ops per
// penalty window.
func mispredictStorm() Benchmark {
	return Benchmark{
		Name:        "mispredict_storm",
		Description: "back-to-back mispredicted branches paying the refill penalty",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			i := 0
			b.Repeat(16, func(b *trace.Builder) {
				b.Branch(0, 9, 0, uint64(0x4000+i*0x40), true)
				b.ALU(0, 1, 0, 0, 1)
				b.ALU(0, 2, 0, 0, 2)
				b.ALU(0, 3, 0, 0, 3)
				b.ALU(0, 4, 0, 0, 4)
				i++
			})
			return b.Build()
		},
		MinIPC: 0.10,
		MaxIPC: 0.30,
	}
}

// smtImbalance pairs a divide-chained thread against an ALU-streaming one.
// Thread 0 trickles one divide every twenty-odd cycles while thread 1 runs
// at its retire bound; the combined rate lands well below the two-thread
// peak but far above the slow thread alone.
func smtImbalance() Benchmark {
	return Benchmark{
		Name:        "smt_imbalance",
		Description: "divide-bound thread sharing the core with an ALU-bound thread",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			b.ALU(0, 1, 0, 0, 4)
			b.Repeat(20, func(b *trace.Builder) {
				b.DIV(0, 2, 2, 1)
			})
			b.Repeat(300, func(b *trace.Builder) {
				b.ALU(1, 3, 0, 0, 7)
			})
			return b.Build()
		},
		MinIPC: 0.60,
		MaxIPC: 0.90,
	}
}

// fullMix runs both threads through every micro-op class, with loads,
// stores, and periodic mispredicted branches. It is a smoke workload for
// the whole machine rather than a bound on any one structure, so the band
// is the full two-thread range.
func fullMix() Benchmark {
	return Benchmark{
		Name:        "full_mix",
		Description: "two threads mixing ALU, MUL, FPU, memory, and branches",
		Build: func() *trace.Trace {
			b := trace.NewBuilder()
			i := 0
			b.Repeat(12, func(b *trace.Builder) {
				b.ALU(0, 1, 1, 0, 1)
				b.MUL(0, 2, 1, 1)
				b.Load(0, 3, 0, uint64(i*64))
				b.Store(0, 0, 2, uint64(0x2000+i*64))
				if i%4 == 3 {
					b.Branch(0, 9, 1, uint64(0x6000+i*0x10), true)
				}
				i++
			})
			j := 0
			b.Repeat(16, func(b *trace.Builder) {
				b.ALU(1, 1, 0, 0, uint64(j))
				b.ALU(1, 2, 0, 0, uint64(j+1))
				b.ALU(1, 3, 1, 2, 0)
				b.FPU(1, 4, 3, 3)
				b.Load(1, 5, 0, uint64(j%4*64))
				j++
			})
			return b.Build()
		},
		MinIPC: 0.20,
		MaxIPC: 2.00,
	}
}
