// Package main sweeps the core's structural parameters across the built-in
// workloads and prints an IPC table. It is the quick way to see how much
// issue queue, reorder buffer, or writeback bandwidth a workload actually
// needs before committing a configuration change.
//
// Usage:
//
//	go run ./scripts [-bench name] [-knob iq|rob|arbiter]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/vixensim/benchmarks"
	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/timing/core"
)

var (
	benchName = flag.String("bench", "", "sweep a single workload (default: all)")
	knob      = flag.String("knob", "iq", "parameter to sweep: iq, rob, or arbiter")
)

// sweepPoints lists the values tried for each knob.
var sweepPoints = map[string][]int{
	"iq":      {8, 12, 16, 24, 32, 48},
	"rob":     {8, 16, 32, 64, 128},
	"arbiter": {1, 2, 3, 4, 7},
}

func main() {
	flag.Parse()

	points, ok := sweepPoints[*knob]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown knob %q (want iq, rob, or arbiter)\n", *knob)
		os.Exit(1)
	}

	workloads := benchmarks.GetAllBenchmarks()
	if *benchName != "" {
		workloads = nil
		for _, b := range benchmarks.GetAllBenchmarks() {
			if b.Name == *benchName {
				workloads = []benchmarks.Benchmark{b}
				break
			}
		}
		if len(workloads) == 0 {
			fmt.Fprintf(os.Stderr, "Unknown workload %q\n", *benchName)
			os.Exit(1)
		}
	}

	fmt.Printf("IPC by %s size\n\n", *knob)
	fmt.Printf("%-18s", "workload")
	for _, p := range points {
		fmt.Printf(" %8d", p)
	}
	fmt.Println()

	for _, w := range workloads {
		fmt.Printf("%-18s", w.Name)
		for _, p := range points {
			fmt.Printf(" %8.3f", measure(w, *knob, p))
		}
		fmt.Println()
	}
}

// measure runs one workload under one configuration point and returns the
// achieved IPC. A configuration the backend rejects scores zero.
func measure(w benchmarks.Benchmark, knob string, point int) float64 {
	config := backend.DefaultConfig()
	switch knob {
	case "iq":
		config.IssueQueueSize = point
		if config.IssueQueueHeadroom >= point {
			config.IssueQueueHeadroom = point - 1
		}
	case "rob":
		config.ROBSizePerThread = point
	case "arbiter":
		config.ArbiterCapacity = point
	}
	if err := config.Validate(); err != nil {
		return 0
	}

	c := core.NewCore(w.Build(), core.WithBackendConfig(config))
	c.Run(1 << 24)
	return c.Stats().IPC()
}
