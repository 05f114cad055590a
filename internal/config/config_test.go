package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nonstrict", cfg.Compiler.PartitionPruner)
	assert.True(t, cfg.Compiler.MapSideAggregate)
	assert.False(t, cfg.IsStrictPartitionPruning())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	contents := `{"compiler": {"hive_partition_pruner": "strict", "hive_map_aggr_hash_memory": 0.25}}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsStrictPartitionPruning())
	assert.Equal(t, 0.25, cfg.Compiler.MapAggrHashMemory)
	// Unspecified fields keep their defaults.
	assert.True(t, cfg.Compiler.MapSideAggregate)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compiler.PartitionPruner = "loose"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Compiler.MapAggrHashMemory = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}
