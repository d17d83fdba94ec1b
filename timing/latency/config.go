package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for the modeled execution units and
// memory levels. Values are Vixen Dio Pro microarchitecture estimates.
type TimingConfig struct {
	// ALULatency is the execution latency for integer ALU operations.
	// Default: 1 cycle (the Vixen runs simple ALU ops on fast clusters).
	ALULatency uint64 `json:"alu_latency"`

	// AGULatency is the address-generation latency for loads and stores,
	// not counting the cache access itself. Default: 1 cycle.
	AGULatency uint64 `json:"agu_latency"`

	// MulLatency is the latency for integer multiply operations.
	// Default: 4 cycles.
	MulLatency uint64 `json:"mul_latency"`

	// DivLatency is the latency for integer divide operations. The divider
	// is unpipelined; it stays busy for the full latency. Default: 20 cycles.
	DivLatency uint64 `json:"div_latency"`

	// FPULatency is the latency for floating-point operations.
	// Default: 5 cycles.
	FPULatency uint64 `json:"fpu_latency"`

	// BranchCheckLatency is the latency for resolving a branch condition on
	// the ALU ports. Default: 1 cycle.
	BranchCheckLatency uint64 `json:"branch_check_latency"`

	// BranchMispredictPenalty is the cycles lost refilling the pipeline
	// after a misprediction. Default: 20 cycles (20-stage pipeline).
	BranchMispredictPenalty uint64 `json:"branch_mispredict_penalty"`

	// L1HitLatency is the L1 data cache hit latency. Default: 2 cycles.
	L1HitLatency uint64 `json:"l1_hit_latency"`

	// L2HitLatency is the L2 cache hit latency. Default: 18 cycles.
	L2HitLatency uint64 `json:"l2_hit_latency"`

	// MemoryLatency is the main memory access latency. Default: 200 cycles.
	MemoryLatency uint64 `json:"memory_latency"`
}

// DefaultTimingConfig returns a TimingConfig with Vixen Dio Pro default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:              1,
		AGULatency:              1,
		MulLatency:              4,
		DivLatency:              20,
		FPULatency:              5,
		BranchCheckLatency:      1,
		BranchMispredictPenalty: 20,
		L1HitLatency:            2,
		L2HitLatency:            18,
		MemoryLatency:           200,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.AGULatency == 0 {
		return fmt.Errorf("agu_latency must be > 0")
	}
	if c.MulLatency == 0 {
		return fmt.Errorf("mul_latency must be > 0")
	}
	if c.DivLatency == 0 {
		return fmt.Errorf("div_latency must be > 0")
	}
	if c.FPULatency == 0 {
		return fmt.Errorf("fpu_latency must be > 0")
	}
	if c.BranchCheckLatency == 0 {
		return fmt.Errorf("branch_check_latency must be > 0")
	}
	if c.L1HitLatency == 0 {
		return fmt.Errorf("l1_hit_latency must be > 0")
	}
	if c.L2HitLatency < c.L1HitLatency {
		return fmt.Errorf("l2_hit_latency must be >= l1_hit_latency")
	}
	if c.MemoryLatency < c.L2HitLatency {
		return fmt.Errorf("memory_latency must be >= l2_hit_latency")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	return &TimingConfig{
		ALULatency:              c.ALULatency,
		AGULatency:              c.AGULatency,
		MulLatency:              c.MulLatency,
		DivLatency:              c.DivLatency,
		FPULatency:              c.FPULatency,
		BranchCheckLatency:      c.BranchCheckLatency,
		BranchMispredictPenalty: c.BranchMispredictPenalty,
		L1HitLatency:            c.L1HitLatency,
		L2HitLatency:            c.L2HitLatency,
		MemoryLatency:           c.MemoryLatency,
	}
}
