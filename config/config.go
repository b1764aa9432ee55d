// Package config parses the two TOML documents described in spec §6:
// the runtime configuration passed to the builder at construction, and
// the octree description used as an alternative entry point.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// SortStrategy names a sorting strategy, per spec §6's `sorting` enum.
// Validate accepts the four values below; pointsort.Sorter does not read
// the value and always performs its bounded-run external merge.
type SortStrategy string

const (
	SortHeap        SortStrategy = "heap"
	SortPartialSort SortStrategy = "partial_sort"
	SortFullSort    SortStrategy = "full_sort"
	SortExternal    SortStrategy = "external"
)

// RuntimeConfig is the single configuration value passed to the
// hierarchy builder at construction (spec §6).
type RuntimeConfig struct {
	NThreads      uint32       `toml:"n_threads"`
	LoadPerThread uint64       `toml:"load_per_thread"`
	RAMQuota      uint64       `toml:"ram_quota"`
	GPUQuota      uint64       `toml:"gpu_quota"`
	Sorting       SortStrategy `toml:"sorting"`
	MaxLevel      uint8        `toml:"max_level"`
}

// defaults per spec §6.
const (
	DefaultLoadPerThread uint64 = 1024
	DefaultRAMQuota      uint64 = 6 << 30 // 6 GiB
	DefaultGPUQuota      uint64 = 1 << 30 // 1 GiB
)

// Defaulted returns a copy of c with zero fields replaced by spec §6's
// defaults.
func (c RuntimeConfig) Defaulted() RuntimeConfig {
	if c.LoadPerThread == 0 {
		c.LoadPerThread = DefaultLoadPerThread
	}
	if c.RAMQuota == 0 {
		c.RAMQuota = DefaultRAMQuota
	}
	if c.GPUQuota == 0 {
		c.GPUQuota = DefaultGPUQuota
	}
	if c.Sorting == "" {
		c.Sorting = SortExternal
	}
	return c
}

// Validate reports a non-nil error if c cannot drive a build.
func (c RuntimeConfig) Validate() error {
	if c.NThreads == 0 {
		return fmt.Errorf("config: n_threads must be nonzero")
	}
	switch c.Sorting {
	case SortHeap, SortPartialSort, SortFullSort, SortExternal:
	default:
		return fmt.Errorf("config: unknown sorting strategy %q", c.Sorting)
	}
	return nil
}

// Vec3 is a TOML-friendly 3-vector, matching the `{x,y,z}` field groups
// in the octree description document (spec §6).
type Vec3 struct {
	X float32 `toml:"x"`
	Y float32 `toml:"y"`
	Z float32 `toml:"z"`
}

// OctreeDescription is the alternative entry point document (spec §6):
// pre-sorted points plus paths to the supporting stores.
// LoadOctreeDescription parses it; the omicron commands do not read it,
// and a build always starts from prescan and sort.
type OctreeDescription struct {
	Size   Vec3   `toml:"size"`
	Origin Vec3   `toml:"origin"`
	Depth  int    `toml:"depth"`
	Points string `toml:"points"`
	DB     string `toml:"database"`
	Nodes  string `toml:"nodes"`
}

// LoadRuntimeConfig parses a RuntimeConfig from a TOML file at path,
// applying spec §6 defaults to unset fields.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	var c RuntimeConfig
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: decode runtime config: %w", err)
	}
	c = c.Defaulted()
	if err := c.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return c, nil
}

// LoadOctreeDescription parses an OctreeDescription from a TOML file
// at path.
func LoadOctreeDescription(path string) (OctreeDescription, error) {
	var d OctreeDescription
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return OctreeDescription{}, fmt.Errorf("config: decode octree description: %w", err)
	}
	return d, nil
}
