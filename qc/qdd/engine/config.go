package engine

import (
	"fmt"
	"strings"

	"github.com/itsubaki/q"
	"github.com/kegliz/qplay/internal/qmath"
	"github.com/kegliz/qplay/qc/qdd/normalize"
	"github.com/kegliz/qplay/qc/qdd/weight"
	"github.com/spf13/viper"
)

// Config holds every named option from spec.md sec6's configuration
// table. Defaults mirror qc/simulator/simulator.go's SimulatorOptions
// defaulting style (zero-value means "pick a sane default").
type Config struct {
	NodeTableSize    int               `mapstructure:"node_table_size"`
	WeightTableSize  int               `mapstructure:"weight_table_size"`
	OpCacheSize      int               `mapstructure:"op_cache_size"`
	Tolerance        float64           `mapstructure:"tolerance"`
	Normalisation    normalize.Scheme  `mapstructure:"normalisation"`
	WeightBackend    weight.Backend    `mapstructure:"weight_backend"`
	GCThreshold      float64           `mapstructure:"gc_threshold"`
	CacheGranularity int               `mapstructure:"cache_granularity"`
	Workers          int               `mapstructure:"workers"`
	GateRingSize     int               `mapstructure:"gate_ring_size"`
	SelfTest         bool              `mapstructure:"self_test"`
	Seed             int64             `mapstructure:"seed"`
	Debug            bool              `mapstructure:"debug"`
}

// DefaultConfig returns the configuration used when no file/env override
// is present, matching spec.md sec4/6's stated defaults (tolerance
// 1e-14, gc_threshold 0.25-0.5, cache_granularity 1 = probe every
// level).
func DefaultConfig() Config {
	return Config{
		NodeTableSize:    1 << 20,
		WeightTableSize:  1 << 20,
		OpCacheSize:      1 << 18,
		Tolerance:        1e-14,
		Normalisation:    normalize.Largest,
		WeightBackend:    weight.ComplexMap,
		GCThreshold:      0.5,
		CacheGranularity: 1,
		Workers:          0, // 0 => runtime.NumCPU(), resolved in pool.go
		GateRingSize:     4096,
		SelfTest:         false,
		Seed:             0,
		Debug:            false,
	}
}

// LoadConfig reads configuration from path (if non-empty) and from
// environment variables prefixed QDD_ (e.g. QDD_TOLERANCE), layered over
// DefaultConfig. Grounded on the teacher's declared-but-previously-unwired
// spf13/viper dependency: this is the first concrete consumer.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("QDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("qdd: loading config %q: %w", path, err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("qdd: unmarshalling config: %w", err)
	}
	return out, nil
}

// QuantumSeed draws a fresh int64 seed off a one-shot itsubaki/q
// simulator instead of a wall-clock source, for callers who want a new
// measurement seed per process start rather than New's deterministic
// fallback (used so unit tests stay reproducible when Seed is left at
// its zero value).
func QuantumSeed() int64 {
	return qmath.QRand{Q: q.New()}.RandomSeed()
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("node_table_size", cfg.NodeTableSize)
	v.SetDefault("weight_table_size", cfg.WeightTableSize)
	v.SetDefault("op_cache_size", cfg.OpCacheSize)
	v.SetDefault("tolerance", cfg.Tolerance)
	v.SetDefault("normalisation", string(cfg.Normalisation))
	v.SetDefault("weight_backend", string(cfg.WeightBackend))
	v.SetDefault("gc_threshold", cfg.GCThreshold)
	v.SetDefault("cache_granularity", cfg.CacheGranularity)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("gate_ring_size", cfg.GateRingSize)
	v.SetDefault("self_test", cfg.SelfTest)
	v.SetDefault("seed", cfg.Seed)
	v.SetDefault("debug", cfg.Debug)
}
