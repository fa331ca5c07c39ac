package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// fileConfig is the subset of engine/host tuning a petridish.hujson config
// file can override. Every field is a pointer so the loader can tell
// "absent" apart from "zero".
type fileConfig struct {
	PatternCapacity    *int     `json:"pattern_capacity,omitempty"`
	FeedRate           *int     `json:"feed_rate,omitempty"`
	PairThreshold      *int     `json:"pair_threshold,omitempty"`
	MaxCycles          *int     `json:"max_cycles,omitempty"`
	BrainPath          *string  `json:"brain_path,omitempty"`
	BoredomThreshold   *float64 `json:"boredom_threshold,omitempty"`
	CuriosityThreshold *float64 `json:"curiosity_threshold,omitempty"`
	WindowFraction     *float64 `json:"window_fraction,omitempty"`
	MemoryLimit        *int     `json:"memory_limit,omitempty"`
}

// loadFileConfig reads a JSON-with-comments config file the same way the
// sibling repo loads its own commented JSON config: hujson.Standardize
// first, then ordinary encoding/json. A missing file is not an error; it
// simply yields a zero-value (all-absent) fileConfig, so the CLI's own
// flags and the engine's compiled-in defaults are free to fill every
// field in.
func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is an explicit user-supplied flag
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("petridish: reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("petridish: parsing config %s: invalid JSONC: %w", path, err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("petridish: parsing config %s: invalid JSON: %w", path, err)
	}
	return cfg, nil
}

// merge writes file's set fields into cli in place, skipping every field
// whose flag is named in explicitlySet. Precedence (highest wins): CLI flag
// explicitly set by the user, then config file, then the caller's
// starting defaults already baked into cli.
func (file fileConfig) merge(cli *cliConfig, explicitlySet map[string]bool) {
	if file.PatternCapacity != nil && !explicitlySet["pattern-capacity"] {
		cli.PatternCapacity = *file.PatternCapacity
	}
	if file.FeedRate != nil && !explicitlySet["feed-rate"] {
		cli.FeedRate = *file.FeedRate
	}
	if file.PairThreshold != nil && !explicitlySet["pair-threshold"] {
		cli.PairThreshold = *file.PairThreshold
	}
	if file.MaxCycles != nil && !explicitlySet["max-cycles"] {
		cli.MaxCycles = *file.MaxCycles
	}
	if file.BrainPath != nil && !explicitlySet["brain-path"] {
		cli.BrainPath = *file.BrainPath
	}
	if file.BoredomThreshold != nil && !explicitlySet["boredom-threshold"] {
		cli.BoredomThreshold = *file.BoredomThreshold
	}
	if file.CuriosityThreshold != nil && !explicitlySet["curiosity-threshold"] {
		cli.CuriosityThreshold = *file.CuriosityThreshold
	}
	if file.WindowFraction != nil && !explicitlySet["window-fraction"] {
		cli.WindowFraction = *file.WindowFraction
	}
	if file.MemoryLimit != nil && !explicitlySet["memory-limit"] {
		cli.MemoryLimit = *file.MemoryLimit
	}
}
