// Command tracegen writes the built-in benchmark workloads out as trace
// files so they can be inspected, edited, and fed back to vixensim.
//
// Usage:
//
//	go run ./cmd/tracegen [-out dir] [name ...]
//
// With no names, every built-in workload is written. Use -list to see the
// available names.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sarchlab/vixensim/benchmarks"
)

var (
	outDir   = flag.String("out", "traces", "directory to write trace files into")
	listOnly = flag.Bool("list", false, "list available workloads and exit")
)

func main() {
	flag.Parse()

	all := benchmarks.GetAllBenchmarks()

	if *listOnly {
		for _, b := range all {
			fmt.Printf("%-18s %s\n", b.Name, b.Description)
		}
		return
	}

	selected := all
	if flag.NArg() > 0 {
		byName := make(map[string]benchmarks.Benchmark, len(all))
		for _, b := range all {
			byName[b.Name] = b
		}

		selected = make([]benchmarks.Benchmark, 0, flag.NArg())
		for _, name := range flag.Args() {
			b, ok := byName[name]
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown workload %q (use -list)\n", name)
				os.Exit(1)
			}
			selected = append(selected, b)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	for _, b := range selected {
		tr := b.Build()
		path := filepath.Join(*outDir, b.Name+".trace")
		if err := tr.Save(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d micro-ops)\n", path, tr.Count())
	}
}
