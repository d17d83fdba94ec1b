package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/vixensim/timing/backend"
	"github.com/sarchlab/vixensim/timing/core"
	"github.com/sarchlab/vixensim/timing/latency"
	"github.com/sarchlab/vixensim/trace"
	"github.com/sarchlab/vixensim/uop"
)

// reportVersion tags JSON reports so archived runs can be compared.
const reportVersion = "1.0.0"

// Benchmark is one self-contained workload with the throughput band the
// default Vixen Dio Pro configuration should land in.
type Benchmark struct {
	// Name identifies the benchmark in reports.
	Name string

	// Description says what the workload stresses.
	Description string

	// Build assembles the micro-op trace. It is called once per run so
	// repeated runs never share state.
	Build func() *trace.Trace

	// MinIPC and MaxIPC bound the throughput the core should sustain.
	// A drained run outside the band is reported as failed.
	MinIPC float64
	MaxIPC float64
}

// BenchmarkResult holds the measurements from one benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Description explains what the benchmark measures.
	Description string `json:"description"`

	// MicroOps is the size of the workload trace.
	MicroOps int `json:"micro_ops"`

	// SimulatedCycles is the total cycle count for the run.
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// Retired is the number of retired micro-ops across both threads.
	Retired uint64 `json:"retired"`

	// IPC is retired micro-ops per cycle.
	IPC float64 `json:"ipc"`

	// Thread0IPC and Thread1IPC break IPC down per hardware thread.
	Thread0IPC float64 `json:"thread0_ipc"`
	Thread1IPC float64 `json:"thread1_ipc"`

	// RenameStalls is cycles in which rename refused at least one micro-op.
	RenameStalls uint64 `json:"rename_stalls"`

	// IssueStalls is cycles with waiting micro-ops but no issue.
	IssueStalls uint64 `json:"issue_stalls"`

	// StallCycles is feed-hold cycles across both threads: refill after a
	// mispredict plus fault handling delays.
	StallCycles uint64 `json:"stall_cycles"`

	// Flushes is the number of mispredict squashes.
	Flushes uint64 `json:"flushes"`

	// Exceptions is the number of faults delivered.
	Exceptions uint64 `json:"exceptions"`

	// Replayed is the number of micro-ops re-dispatched after a squash.
	Replayed uint64 `json:"replayed"`

	// Data cache traffic for the run.
	CacheReads  uint64 `json:"cache_reads,omitempty"`
	CacheWrites uint64 `json:"cache_writes,omitempty"`
	CacheHits   uint64 `json:"cache_hits,omitempty"`
	CacheMisses uint64 `json:"cache_misses,omitempty"`

	// Drained reports whether the trace finished within the cycle limit.
	Drained bool `json:"drained"`

	// Pass reports whether the run drained with IPC inside the expected
	// band.
	Pass bool `json:"pass"`

	// WallTime is the host time the simulation took.
	WallTime time.Duration `json:"wall_time_ns"`
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Backend is the core's structural configuration.
	Backend backend.Config

	// Table supplies execution and memory latencies.
	Table *latency.Table

	// MaxCycles aborts a run that fails to drain. Zero means no limit.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout).
	Output io.Writer

	// Verbose prints a one-line result after each run.
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Backend:   backend.DefaultConfig(),
		Table:     latency.NewTable(),
		MaxCycles: 1 << 22,
		Output:    os.Stdout,
		Verbose:   false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness. Zero-valued config fields
// fall back to the defaults.
func NewHarness(config HarnessConfig) *Harness {
	if config.Backend == (backend.Config{}) {
		config.Backend = backend.DefaultConfig()
	}
	if config.Table == nil {
		config.Table = latency.NewTable()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// runBenchmark builds the workload, runs it on a fresh core, and collects
// the statistics.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	tr := bench.Build()
	c := core.NewCore(tr,
		core.WithBackendConfig(h.config.Backend),
		core.WithLatencyTable(h.config.Table),
	)

	start := time.Now()
	drained := c.Run(h.config.MaxCycles)
	wallTime := time.Since(start)

	stats := c.Stats()
	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		MicroOps:        len(tr.Records),
		SimulatedCycles: stats.Cycles,
		Retired:         stats.Instructions(),
		IPC:             stats.IPC(),
		Thread0IPC:      stats.ThreadIPC(0),
		Thread1IPC:      stats.ThreadIPC(1),
		RenameStalls:    stats.Backend.RenameStalls,
		IssueStalls:     stats.Backend.IssueStalls,
		Flushes:         stats.Backend.Flushes,
		Exceptions:      stats.Backend.Exceptions,
		Replayed:        stats.Replayed,
		CacheReads:      stats.Memory.Reads,
		CacheWrites:     stats.Memory.Writes,
		CacheHits:       stats.Memory.Hits,
		CacheMisses:     stats.Memory.Misses,
		Drained:         drained,
		WallTime:        wallTime,
	}
	for t := uop.ThreadID(0); t < uop.NumThreads; t++ {
		result.StallCycles += stats.StallCycles[t]
	}
	result.Pass = drained && result.IPC >= bench.MinIPC && result.IPC <= bench.MaxIPC

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "%-18s cycles=%-8d ipc=%.3f band=[%.2f, %.2f] %s\n",
			bench.Name, result.SimulatedCycles, result.IPC,
			bench.MinIPC, bench.MaxIPC, passLabel(result.Pass))
	}

	return result
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Vixen Dio Pro Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Micro-ops: %d\n", r.MicroOps)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles: %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Retired:          %d\n", r.Retired)
		_, _ = fmt.Fprintf(h.config.Output, "  IPC:              %.3f (thread0 %.3f, thread1 %.3f)\n",
			r.IPC, r.Thread0IPC, r.Thread1IPC)
		_, _ = fmt.Fprintf(h.config.Output, "  Rename Stalls:    %d\n", r.RenameStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Issue Stalls:     %d\n", r.IssueStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Feed Stalls:      %d\n", r.StallCycles)

		if r.Flushes > 0 || r.Replayed > 0 || r.Exceptions > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Speculation ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Flushes:    %d\n", r.Flushes)
			_, _ = fmt.Fprintf(h.config.Output, "  Replayed:   %d\n", r.Replayed)
			_, _ = fmt.Fprintf(h.config.Output, "  Exceptions: %d\n", r.Exceptions)
		}

		if r.CacheReads > 0 || r.CacheWrites > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Reads:  %d\n", r.CacheReads)
			_, _ = fmt.Fprintf(h.config.Output, "  Writes: %d\n", r.CacheWrites)
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.CacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Result: %s\n", passLabel(r.Pass))
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results as CSV for spreadsheet import.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,micro_ops,cycles,retired,ipc,rename_stalls,issue_stalls,stall_cycles,flushes,exceptions,replayed,cache_hits,cache_misses,pass")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.MicroOps,
			r.SimulatedCycles,
			r.Retired,
			r.IPC,
			r.RenameStalls,
			r.IssueStalls,
			r.StallCycles,
			r.Flushes,
			r.Exceptions,
			r.Replayed,
			r.CacheHits,
			r.CacheMisses,
			r.Pass,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the core configuration used
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the core configuration the run used.
type BenchmarkConfig struct {
	Backend           backend.Config `json:"backend"`
	MispredictPenalty uint64         `json:"mispredict_penalty"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks inside their IPC band
	Passed int `json:"passed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalRetired is the sum of all retired micro-ops
	TotalRetired uint64 `json:"total_retired"`

	// AverageIPC is total retired micro-ops over total cycles
	AverageIPC float64 `json:"average_ipc"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated
// comparison between runs.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalRetired uint64
	var totalWallTime time.Duration
	passed := 0
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalRetired += r.Retired
		totalWallTime += r.WallTime
		if r.Pass {
			passed++
		}
	}

	avgIPC := float64(0)
	if totalCycles > 0 {
		avgIPC = float64(totalRetired) / float64(totalCycles)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   reportVersion,
			Config: BenchmarkConfig{
				Backend:           h.config.Backend,
				MispredictPenalty: h.config.Table.MispredictPenalty(),
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks: len(results),
			Passed:          passed,
			TotalCycles:     totalCycles,
			TotalRetired:    totalRetired,
			AverageIPC:      avgIPC,
			TotalWallTime:   totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
