package gc

import (
	"fmt"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// Default tunables.
const (
	DefaultMemorySpaceSize      = 1024 * 1024
	DefaultLargeObjectThreshold = 4096
	DefaultTenuredThreshold     = 16
)

// Config carries the heap tunables. Sizes are strings in go-bytesize
// notation ("1MB", "64KB", "4096B"); zero values select the defaults, so
// the zero Config is valid.
type Config struct {
	// MemorySpaceSize is the capacity of each region (eden, each survivor
	// half, tenured), overflow chain links included.
	MemorySpaceSize string `yaml:"memory_space_size"`

	// LargeObjectThreshold is the object size, header included, above which
	// allocations go to the non-moving large-object space.
	LargeObjectThreshold string `yaml:"large_object_threshold"`

	// TenuredThreshold is the number of minor collections an object must
	// survive before it is promoted to the tenured region.
	TenuredThreshold int `yaml:"tenured_threshold"`
}

// ParseConfig reads a YAML configuration document.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("gc: parsing config: %w", err)
	}
	if _, err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type heapParams struct {
	memorySpaceSize      uintptr
	largeObjectThreshold uintptr
	tenuredThreshold     uint8
}

func (cfg Config) resolve() (heapParams, error) {
	p := heapParams{
		memorySpaceSize:      DefaultMemorySpaceSize,
		largeObjectThreshold: DefaultLargeObjectThreshold,
		tenuredThreshold:     DefaultTenuredThreshold,
	}
	if cfg.MemorySpaceSize != "" {
		size, err := bytesize.Parse(cfg.MemorySpaceSize)
		if err != nil {
			return p, fmt.Errorf("gc: invalid memory_space_size: %w", err)
		}
		p.memorySpaceSize = uintptr(size)
	}
	if cfg.LargeObjectThreshold != "" {
		size, err := bytesize.Parse(cfg.LargeObjectThreshold)
		if err != nil {
			return p, fmt.Errorf("gc: invalid large_object_threshold: %w", err)
		}
		p.largeObjectThreshold = uintptr(size)
	}
	if cfg.TenuredThreshold != 0 {
		if cfg.TenuredThreshold < 0 || cfg.TenuredThreshold > 255 {
			return p, fmt.Errorf("gc: tenured_threshold %d out of range", cfg.TenuredThreshold)
		}
		p.tenuredThreshold = uint8(cfg.TenuredThreshold)
	}

	if p.largeObjectThreshold < headerSize {
		return p, fmt.Errorf("gc: large_object_threshold %d is smaller than the object header", p.largeObjectThreshold)
	}
	// Every non-large object must fit a region alongside the region header.
	if p.memorySpaceSize < spaceHeaderSize+2*p.largeObjectThreshold {
		return p, fmt.Errorf("gc: memory_space_size %d is too small for the large object threshold %d",
			p.memorySpaceSize, p.largeObjectThreshold)
	}
	return p, nil
}
