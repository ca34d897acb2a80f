// Package config loads the engine's startup configuration from a TOML
// file. Every field has a default matching the spec's compile-time
// constants, so a missing or partial config file is never an error.
package config

import (
	"os"

	"github.com/pelletier/go-toml"

	"github.com/corvusdb/corvus/storage/disk"
)

// ReplacerPolicy selects which eviction policy the buffer pool uses.
type ReplacerPolicy string

const (
	ReplacerLRU   ReplacerPolicy = "lru"
	ReplacerClock ReplacerPolicy = "clock"
)

// EngineConfig controls the knobs the spec leaves to the process
// embedding this core: buffer pool size, eviction policy, and where
// data files live. PageSize is fixed by the wire format: pages are
// always disk.PageSize bytes, and nothing in the core reads this field.
type EngineConfig struct {
	PageSize       int            `toml:"page_size"`
	PoolSize       int            `toml:"pool_size"`
	ReplacerPolicy ReplacerPolicy `toml:"replacer_policy"`
	DataDir        string         `toml:"data_dir"`
	LRUHistoryK    int            `toml:"lru_history_k"`
}

// Default returns the configuration used when no TOML file is supplied.
func Default() EngineConfig {
	return EngineConfig{
		PageSize:       disk.PageSize,
		PoolSize:       64,
		ReplacerPolicy: ReplacerLRU,
		DataDir:        ".",
		LRUHistoryK:    2,
	}
}

// Load reads path and overlays it onto Default(). A missing field keeps
// its default; a missing file is not an error, since the spec treats
// every knob here as optional.
func Load(path string) (EngineConfig, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	tree, err := toml.LoadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := tree.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
