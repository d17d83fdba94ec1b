// Package main provides the entry point for vixensim.
// Vixensim is a cycle-level model of the Vixen Dio Pro out-of-order core.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/timing/core"
	"github.com/sarchlab/vixensim/timing/latency"
	"github.com/sarchlab/vixensim/trace"
	"github.com/sarchlab/vixensim/uop"
)

var (
	maxCycles  = flag.Uint64("cycles", 0, "Stop after this many cycles (0 = run to completion)")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	robSize    = flag.Int("rob", 0, "Override reorder buffer entries per thread")
	iqSize     = flag.Int("iq", 0, "Override issue queue size")
	arbiterCap = flag.Int("arbiter", 0, "Override writeback arbiter capacity")
	jsonOut    = flag.Bool("json", false, "Emit the report as JSON")
	verbose    = flag.Bool("v", false, "Verbose output (log every retirement)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: vixensim [options] <trace file>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	tracePath := flag.Arg(0)
	tr, err := trace.Load(tracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trace: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", tracePath)
		fmt.Printf("Micro-ops: %d (thread0 %d, thread1 %d)\n",
			tr.Count(), tr.CountThread(0), tr.CountThread(1))
	}

	table, err := loadTable(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
		os.Exit(1)
	}

	config := buildConfig()
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	opts := []core.Option{
		core.WithBackendConfig(config),
		core.WithLatencyTable(table),
	}
	if *verbose {
		opts = append(opts, core.WithRetireHook(func(r backend.Retirement) {
			fmt.Printf("retire t%d seq=%-6d pc=0x%-8x %-4s result=%d\n",
				r.Thread, r.Seq, r.Op.PC, r.Op.Class, r.Result)
		}))
	}

	c := core.NewCore(tr, opts...)
	drained := c.Run(*maxCycles)
	stats := c.Stats()

	if *jsonOut {
		printJSON(tracePath, drained, stats)
	} else {
		printReport(tracePath, drained, stats)
	}

	if !drained {
		os.Exit(2)
	}
}

// loadTable builds the latency table, from a JSON file when one is named.
func loadTable(path string) (*latency.Table, error) {
	if path == "" {
		return latency.NewTable(), nil
	}
	config, err := latency.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return latency.NewTableWithConfig(config), nil
}

// buildConfig starts from the default backend configuration and applies the
// structural override flags.
func buildConfig() backend.Config {
	config := backend.DefaultConfig()
	if *robSize > 0 {
		config.ROBSizePerThread = *robSize
	}
	if *iqSize > 0 {
		config.IssueQueueSize = *iqSize
	}
	if *arbiterCap > 0 {
		config.ArbiterCapacity = *arbiterCap
	}
	return config
}

// printReport writes the human-readable run report.
func printReport(tracePath string, drained bool, stats core.Statistics) {
	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1
	}

	fmt.Printf("\n")
	fmt.Printf("Trace: %s\n", tracePath)
	if !drained {
		fmt.Printf("Stopped at cycle limit before the trace drained.\n")
	}
	fmt.Printf("Total Micro-ops Retired: %d\n", stats.Instructions())
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("IPC: %.3f (thread0 %.3f, thread1 %.3f)\n",
		stats.IPC(), stats.ThreadIPC(0), stats.ThreadIPC(1))

	fmt.Printf("\n")
	fmt.Printf("Port Utilization:\n")
	for p := backend.Port(0); p < backend.NumPorts; p++ {
		issued := stats.Backend.IssuedByPort[p]
		fmt.Printf("  %-5s %6d issued (%5.1f%%)\n",
			p.String()+":", issued, 100.0*float64(issued)/float64(totalCycles))
	}

	fmt.Printf("\n")
	fmt.Printf("Stalls:\n")
	fmt.Printf("  Rename refusals: %d cycles (%5.1f%%)\n",
		stats.Backend.RenameStalls, 100.0*float64(stats.Backend.RenameStalls)/float64(totalCycles))
	fmt.Printf("  Empty issue:     %d cycles (%5.1f%%)\n",
		stats.Backend.IssueStalls, 100.0*float64(stats.Backend.IssueStalls)/float64(totalCycles))
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		fmt.Printf("  Thread %d feed:   %d cycles (%5.1f%%)\n",
			t, stats.StallCycles[t], 100.0*float64(stats.StallCycles[t])/float64(totalCycles))
	}

	if stats.Backend.Flushes > 0 || stats.Backend.Exceptions > 0 {
		fmt.Printf("\n")
		fmt.Printf("Speculation:\n")
		fmt.Printf("  Flushes:           %d\n", stats.Backend.Flushes)
		fmt.Printf("  Replayed:          %d\n", stats.Replayed)
		fmt.Printf("  Stale completions: %d\n", stats.Backend.StaleCompletions)
		fmt.Printf("  Exceptions:        %d\n", stats.Backend.Exceptions)
		fmt.Printf("  Resumes:           %d\n", stats.Resumes)
	}

	if stats.Backend.ArbiterDeferrals > 0 {
		fmt.Printf("\n")
		fmt.Printf("Writeback arbiter deferrals: %d\n", stats.Backend.ArbiterDeferrals)
	}

	if stats.Memory.Reads > 0 || stats.Memory.Writes > 0 {
		fmt.Printf("\n")
		fmt.Printf("D-Cache:\n")
		fmt.Printf("  Reads:  %d\n", stats.Memory.Reads)
		fmt.Printf("  Writes: %d\n", stats.Memory.Writes)
		fmt.Printf("  Hits:   %d\n", stats.Memory.Hits)
		fmt.Printf("  Misses: %d\n", stats.Memory.Misses)
		fmt.Printf("  Hit rate: %.1f%%\n", stats.Memory.HitRate())
	}
}

// jsonReport is the machine-readable run report.
type jsonReport struct {
	Trace            string                 `json:"trace"`
	Drained          bool                   `json:"drained"`
	Cycles           uint64                 `json:"cycles"`
	Retired          uint64                 `json:"retired"`
	IPC              float64                `json:"ipc"`
	Thread0IPC       float64                `json:"thread0_ipc"`
	Thread1IPC       float64                `json:"thread1_ipc"`
	RenameStalls     uint64                 `json:"rename_stalls"`
	IssueStalls      uint64                 `json:"issue_stalls"`
	StallCycles      [uop.NumThreads]uint64 `json:"stall_cycles"`
	Flushes          uint64                 `json:"flushes"`
	Replayed         uint64                 `json:"replayed"`
	Exceptions       uint64                 `json:"exceptions"`
	Resumes          uint64                 `json:"resumes"`
	ArbiterDeferrals uint64                 `json:"arbiter_deferrals"`
	CacheHitRate     float64                `json:"cache_hit_rate"`
	PortIssued       map[string]uint64      `json:"port_issued"`
}

func printJSON(tracePath string, drained bool, stats core.Statistics) {
	report := jsonReport{
		Trace:            tracePath,
		Drained:          drained,
		Cycles:           stats.Cycles,
		Retired:          stats.Instructions(),
		IPC:              stats.IPC(),
		Thread0IPC:       stats.ThreadIPC(0),
		Thread1IPC:       stats.ThreadIPC(1),
		RenameStalls:     stats.Backend.RenameStalls,
		IssueStalls:      stats.Backend.IssueStalls,
		StallCycles:      stats.StallCycles,
		Flushes:          stats.Backend.Flushes,
		Replayed:         stats.Replayed,
		Exceptions:       stats.Backend.Exceptions,
		Resumes:          stats.Resumes,
		ArbiterDeferrals: stats.Backend.ArbiterDeferrals,
		CacheHitRate:     stats.Memory.HitRate(),
		PortIssued:       make(map[string]uint64, int(backend.NumPorts)),
	}
	for p := backend.Port(0); p < backend.NumPorts; p++ {
		report.PortIssued[p.String()] = stats.Backend.IssuedByPort[p]
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
		os.Exit(1)
	}
}
