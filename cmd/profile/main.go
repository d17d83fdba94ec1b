// Package main provides a profiling wrapper for vixensim to identify
// simulator performance bottlenecks. It synthesizes a large mixed workload
// and runs it on one core while collecting pprof data.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/vixensim/timing/core"
	"github.com/sarchlab/vixensim/trace"
	"github.com/sarchlab/vixensim/uop"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	opCount    = flag.Int("ops", 500000, "micro-ops in the synthetic workload")
	maxCycles  = flag.Uint64("cycles", 0, "max cycles to simulate (0 = unlimited)")
	duration   = flag.Duration("duration", 60*time.Second, "max duration to run (for profiling)")
	seed       = flag.Int64("seed", 1, "workload generator seed")
)

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	tr := buildWorkload(*opCount, *seed)
	fmt.Printf("Workload: %d micro-ops (thread0 %d, thread1 %d)\n",
		tr.Count(), tr.CountThread(0), tr.CountThread(1))

	// Stop a runaway run so profiles stay bounded.
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping\n", *duration)
		os.Exit(2)
	}()

	c := core.NewCore(tr)

	start := time.Now()
	drained := c.Run(*maxCycles)
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	stats := c.Stats()
	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Drained: %v\n", drained)
	fmt.Printf("Cycles simulated: %d\n", stats.Cycles)
	fmt.Printf("Micro-ops retired: %d\n", stats.Instructions())
	fmt.Printf("IPC: %.3f\n", stats.IPC())
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("Cycles/second: %.0f\n", float64(stats.Cycles)/elapsed.Seconds())
		fmt.Printf("Micro-ops/second: %.0f\n", float64(stats.Instructions())/elapsed.Seconds())
	}
}

// buildWorkload synthesizes a two-thread mix of every micro-op kind. The
// distribution leans on ALU work with enough memory traffic, divides, and
// mispredicted branches to keep every simulator path hot.
func buildWorkload(n int, seed int64) *trace.Trace {
	rng := rand.New(rand.NewSource(seed))
	b := trace.NewBuilder()

	// r7 holds a nonzero divisor on both threads for the divide mix.
	b.ALU(0, 7, 0, 0, 13)
	b.ALU(1, 7, 0, 0, 13)

	for i := 0; i < n-2; i++ {
		thread := uop.ThreadID(i & 1)
		dst := uint8(1 + rng.Intn(6))
		src := uint8(1 + rng.Intn(6))

		switch k := rng.Intn(100); {
		case k < 55:
			b.ALU(thread, dst, src, 0, uint64(rng.Intn(1024)))
		case k < 70:
			b.MUL(thread, dst, src, 7)
		case k < 72:
			b.DIV(thread, dst, src, 7)
		case k < 80:
			b.FPU(thread, dst, src, src)
		case k < 90:
			b.Load(thread, dst, 0, uint64(rng.Intn(1<<19)))
		case k < 96:
			b.Store(thread, 0, src, uint64(rng.Intn(1<<19)))
		default:
			mispredict := rng.Intn(8) == 0
			b.Branch(thread, 9, src, uint64(0x40000+rng.Intn(1<<16)), mispredict)
		}
	}

	return b.Build()
}
