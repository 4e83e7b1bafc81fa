package symbolizer

import (
	"flag"
	"fmt"
	"runtime"
)

type Config struct {
	// CacheSize bounds the (module, descriptor) normalization cache.
	CacheSize int `yaml:"cache_size,omitempty"`
	// MaxInlineDepth bounds inline chain expansion. Zero leaves chains
	// bounded by cycle detection only.
	MaxInlineDepth int `yaml:"max_inline_depth,omitempty"`
	// MaxConcurrent caps the number of samples resolved in parallel.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&cfg.CacheSize, "symbolizer.cache-size", 64<<10, "Number of canonical types kept in the normalization cache.")
	f.IntVar(&cfg.MaxInlineDepth, "symbolizer.max-inline-depth", 128, "Upper bound on the length of one expanded inline chain. 0 bounds by cycle detection only.")
	f.IntVar(&cfg.MaxConcurrent, "symbolizer.max-concurrent", runtime.GOMAXPROCS(0), "How many samples may be resolved concurrently.")
}

func (cfg *Config) Validate() error {
	if cfg.MaxInlineDepth < 0 {
		return fmt.Errorf("invalid max-inline-depth value, must not be negative")
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64 << 10
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.GOMAXPROCS(0)
	}
}
