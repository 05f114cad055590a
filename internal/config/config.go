package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config represents the complete configuration for a compiler session.
type Config struct {
	LogLevel string `json:"log_level"`

	// ScratchDir is the session-scratch root used to name intermediate
	// destinations (see PARTITION.Destination layout).
	ScratchDir string `json:"scratch_dir"`

	Compiler CompilerConfig `json:"compiler"`
}

// CompilerConfig holds the knobs enumerated in the "Configuration
// recognized" section: partition-pruning strictness, group-by strategy
// selection, the HASH aggregator's memory budget and result compression.
type CompilerConfig struct {
	// PartitionPruner is "strict" or "nonstrict". In strict mode a
	// partitioned table reached without any partition predicate is
	// rejected (semerr.NoPartitionPredicate).
	PartitionPruner string `json:"hive_partition_pruner"`

	// MapSideAggregate selects the 4-MR map-side-hash group-by strategy
	// over the 2-MR strategy when both are otherwise applicable.
	MapSideAggregate bool `json:"hive_map_side_aggregate"`

	// MapAggrHashMemory is the fraction (0,1] of max heap the HASH
	// aggregator's capacity estimate is allowed to use.
	MapAggrHashMemory float64 `json:"hive_map_aggr_hash_memory"`

	// CompressResult is propagated to FileSink descriptors.
	CompressResult bool `json:"compress_result"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		ScratchDir: "/tmp/hiveql-compiler/scratch",
		Compiler: CompilerConfig{
			PartitionPruner:   "nonstrict",
			MapSideAggregate:  true,
			MapAggrHashMemory: 0.5,
			CompressResult:    false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file, applying defaults for
// anything the file does not specify.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	switch c.Compiler.PartitionPruner {
	case "strict", "nonstrict":
	default:
		return fmt.Errorf("invalid hive_partition_pruner: %s", c.Compiler.PartitionPruner)
	}

	if c.Compiler.MapAggrHashMemory <= 0 || c.Compiler.MapAggrHashMemory > 1 {
		return fmt.Errorf("hive_map_aggr_hash_memory must be in (0,1], got %v", c.Compiler.MapAggrHashMemory)
	}

	if c.ScratchDir == "" {
		return fmt.Errorf("scratch_dir must not be empty")
	}

	return nil
}

// IsStrictPartitionPruning reports whether HIVEPARTITIONPRUNER is "strict".
func (c *Config) IsStrictPartitionPruning() bool {
	return c.Compiler.PartitionPruner == "strict"
}
