// Package config provides the unified configuration system for strata.
// It defines a single Config structure shared by the CLI commands and the
// conversion pipeline, ensuring the same thresholds and knobs are applied
// whether a component is driven from the command line or embedded as a library.
//
// The configuration is organized into logical sections:
//   - Inference: sampling size and strategy for schema scanning
//   - Conversion: chunk sizing, strategy thresholds, worker pool settings
//   - Output: target directory and formats
//   - Logging: level and encoding
//   - Observability: tracing and metrics toggles
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Conversion.Workers = 8
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Sampling strategies for schema inference.
const (
	// SampleFirst scans the first N records of the stream.
	SampleFirst = "first"
	// SampleRandom draws a uniform random sample of N records (reservoir sampling).
	SampleRandom = "random"
)

// Config is the single configuration structure used across strata.
type Config struct {
	Inference     InferenceConfig     `yaml:"inference" json:"inference" mapstructure:"inference"`
	Conversion    ConversionConfig    `yaml:"conversion" json:"conversion" mapstructure:"conversion"`
	Output        OutputConfig        `yaml:"output" json:"output" mapstructure:"output"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// InferenceConfig controls schema scanning.
type InferenceConfig struct {
	// SampleSize limits how many records are observed per file (0 = all records)
	SampleSize int `yaml:"sample_size" json:"sample_size" mapstructure:"sample_size"`
	// Strategy selects the sampling strategy: first or random
	Strategy string `yaml:"strategy" json:"strategy" mapstructure:"strategy"`
	// Seed makes random sampling reproducible (0 = time-based)
	Seed int64 `yaml:"seed" json:"seed" mapstructure:"seed"`
}

// ConversionConfig controls the chunked conversion pipeline.
type ConversionConfig struct {
	// ChunkSize is the number of records per chunk
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
	// EagerThresholdBytes (T1): files at or below this size are converted in one batch
	EagerThresholdBytes int64 `yaml:"eager_threshold_bytes" json:"eager_threshold_bytes" mapstructure:"eager_threshold_bytes"`
	// ParallelThresholdBytes (T2): files above this size use the worker pool
	ParallelThresholdBytes int64 `yaml:"parallel_threshold_bytes" json:"parallel_threshold_bytes" mapstructure:"parallel_threshold_bytes"`
	// HardStreamingBytes (T3): above this size a file whose dialect cannot be
	// streamed fails instead of degrading to the eager path
	HardStreamingBytes int64 `yaml:"hard_streaming_bytes" json:"hard_streaming_bytes" mapstructure:"hard_streaming_bytes"`
	// Workers is the worker pool size for parallel batch assembly
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// GroupFactor sizes each submission group at GroupFactor*Workers chunks
	GroupFactor int `yaml:"group_factor" json:"group_factor" mapstructure:"group_factor"`
	// ReclaimEvery forces memory reclamation after this many chunks (0 = never)
	ReclaimEvery int `yaml:"reclaim_every" json:"reclaim_every" mapstructure:"reclaim_every"`
	// Compression is the codec name passed to the columnar writer (snappy, zstd, gzip, none)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
}

// OutputConfig controls where and how artifacts are written.
type OutputConfig struct {
	// Directory receives one artifact per input file per format
	Directory string `yaml:"directory" json:"directory" mapstructure:"directory"`
	// Formats lists the target formats (parquet, arrow, avro, csv)
	Formats []string `yaml:"formats" json:"formats" mapstructure:"formats"`
	// Overwrite allows replacing existing artifacts
	Overwrite bool `yaml:"overwrite" json:"overwrite" mapstructure:"overwrite"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
}

// ObservabilityConfig controls tracing and metrics.
type ObservabilityConfig struct {
	// EnableTracing activates the stdout trace exporter
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// EnableMetrics activates prometheus counters
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
}

// Default returns a Config with production-ready values.
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{
			SampleSize: 0, // all records
			Strategy:   SampleFirst,
			Seed:       0,
		},
		Conversion: ConversionConfig{
			ChunkSize:              1000,
			EagerThresholdBytes:    50 * 1024 * 1024,  // 50MB
			ParallelThresholdBytes: 500 * 1024 * 1024, // 500MB
			HardStreamingBytes:     100 * 1024 * 1024, // 100MB
			Workers:                maxInt(1, runtime.NumCPU()-1),
			GroupFactor:            2,
			ReclaimEvery:           50,
			Compression:            "snappy",
		},
		Output: OutputConfig{
			Directory: "output",
			Formats:   []string{"parquet"},
			Overwrite: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			EnableTracing: false,
			EnableMetrics: false,
		},
	}
}

// Load reads configuration from an optional file plus STRATA_* environment
// variables, layered over Default().
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("inference.sample_size", cfg.Inference.SampleSize)
	v.SetDefault("inference.strategy", cfg.Inference.Strategy)
	v.SetDefault("inference.seed", cfg.Inference.Seed)
	v.SetDefault("conversion.chunk_size", cfg.Conversion.ChunkSize)
	v.SetDefault("conversion.eager_threshold_bytes", cfg.Conversion.EagerThresholdBytes)
	v.SetDefault("conversion.parallel_threshold_bytes", cfg.Conversion.ParallelThresholdBytes)
	v.SetDefault("conversion.hard_streaming_bytes", cfg.Conversion.HardStreamingBytes)
	v.SetDefault("conversion.workers", cfg.Conversion.Workers)
	v.SetDefault("conversion.group_factor", cfg.Conversion.GroupFactor)
	v.SetDefault("conversion.reclaim_every", cfg.Conversion.ReclaimEvery)
	v.SetDefault("conversion.compression", cfg.Conversion.Compression)
	v.SetDefault("output.directory", cfg.Output.Directory)
	v.SetDefault("output.formats", cfg.Output.Formats)
	v.SetDefault("output.overwrite", cfg.Output.Overwrite)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.encoding", cfg.Logging.Encoding)
	v.SetDefault("observability.enable_tracing", cfg.Observability.EnableTracing)
	v.SetDefault("observability.enable_metrics", cfg.Observability.EnableMetrics)
}

// Validate checks required fields and ensures values are within acceptable
// ranges. Callers should invoke this after loading configuration to catch
// errors early.
func (c *Config) Validate() error {
	if c.Inference.Strategy != SampleFirst && c.Inference.Strategy != SampleRandom {
		return fmt.Errorf("inference.strategy must be %q or %q", SampleFirst, SampleRandom)
	}
	if c.Inference.SampleSize < 0 {
		return fmt.Errorf("inference.sample_size cannot be negative")
	}
	if c.Conversion.ChunkSize <= 0 {
		return fmt.Errorf("conversion.chunk_size must be positive")
	}
	if c.Conversion.EagerThresholdBytes < 0 {
		return fmt.Errorf("conversion.eager_threshold_bytes cannot be negative")
	}
	if c.Conversion.ParallelThresholdBytes < c.Conversion.EagerThresholdBytes {
		return fmt.Errorf("conversion.parallel_threshold_bytes must be >= eager_threshold_bytes")
	}
	if c.Conversion.HardStreamingBytes < c.Conversion.EagerThresholdBytes {
		return fmt.Errorf("conversion.hard_streaming_bytes must be >= eager_threshold_bytes")
	}
	if c.Conversion.Workers <= 0 {
		return fmt.Errorf("conversion.workers must be positive")
	}
	if c.Conversion.GroupFactor <= 0 {
		return fmt.Errorf("conversion.group_factor must be positive")
	}
	if c.Conversion.ReclaimEvery < 0 {
		return fmt.Errorf("conversion.reclaim_every cannot be negative")
	}
	if len(c.Output.Formats) == 0 {
		return fmt.Errorf("output.formats cannot be empty")
	}
	return nil
}

// GroupSize returns the number of chunks submitted to the worker pool per
// synchronization group.
func (c *ConversionConfig) GroupSize() int {
	return c.Workers * c.GroupFactor
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
