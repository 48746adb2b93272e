// Package config loads and validates engine configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Index, Writer, Search, Scoring, Cache, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Writer  WriterConfig  `yaml:"writer"`
	Search  SearchConfig  `yaml:"search"`
	Scoring ScoringConfig `yaml:"scoring"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig controls on-disk index layout and the segment merge policy.
type IndexConfig struct {
	Dir                    string `yaml:"dir"`
	MaxSegmentsBeforeMerge int    `yaml:"maxSegmentsBeforeMerge"`
	CompoundBufferSize     int    `yaml:"compoundBufferSize"`
}

// WriterConfig controls the indexing writer's buffering and the parallel
// worker pool.
type WriterConfig struct {
	BufferedDocs  int           `yaml:"bufferedDocs"`
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batchSize"`
	JobQueueDepth int           `yaml:"jobQueueDepth"`
	ResultTimeout time.Duration `yaml:"resultTimeout"`
	Multisegment  bool          `yaml:"multisegment"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit    int           `yaml:"defaultLimit"`
	MaxResults      int           `yaml:"maxResults"`
	UseQualitySkips bool          `yaml:"useQualitySkips"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ScoringConfig selects the weighting model and its global parameters.
// B and K1 apply to BM25F, C to PL2; PerFieldB/PerFieldK1 override the
// globals for individual fields.
type ScoringConfig struct {
	Model      string             `yaml:"model"`
	B          float64            `yaml:"b"`
	K1         float64            `yaml:"k1"`
	C          float64            `yaml:"c"`
	PerFieldB  map[string]float64 `yaml:"perFieldB"`
	PerFieldK1 map[string]float64 `yaml:"perFieldK1"`
}

// CacheConfig controls the optional Redis query-result cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local use.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:                    "data/index",
			MaxSegmentsBeforeMerge: 8,
			CompoundBufferSize:     1 << 20,
		},
		Writer: WriterConfig{
			BufferedDocs:  10000,
			Workers:       0,
			BatchSize:     100,
			JobQueueDepth: 16,
			ResultTimeout: 60 * time.Second,
			Multisegment:  false,
		},
		Search: SearchConfig{
			DefaultLimit:    10,
			MaxResults:      1000,
			UseQualitySkips: true,
			Timeout:         10 * time.Second,
		},
		Scoring: ScoringConfig{
			Model: "bm25f",
			B:     0.75,
			K1:    1.2,
			C:     1.0,
		},
		Cache: CacheConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			TTL:      60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

func (c *Config) validate() error {
	if c.Scoring.B < 0 || c.Scoring.B > 1 {
		return fmt.Errorf("scoring.b must be in [0,1], got %v", c.Scoring.B)
	}
	if c.Scoring.K1 < 0 {
		return fmt.Errorf("scoring.k1 must be non-negative, got %v", c.Scoring.K1)
	}
	if c.Writer.Workers < 0 {
		return fmt.Errorf("writer.workers must be non-negative, got %d", c.Writer.Workers)
	}
	if c.Writer.BatchSize <= 0 {
		return fmt.Errorf("writer.batchSize must be positive, got %d", c.Writer.BatchSize)
	}
	return nil
}

// applyEnvOverrides reads QUILL_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUILL_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("QUILL_WRITER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Writer.Workers = n
		}
	}
	if v := os.Getenv("QUILL_WRITER_MULTISEGMENT"); v != "" {
		cfg.Writer.Multisegment = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("QUILL_SCORING_MODEL"); v != "" {
		cfg.Scoring.Model = v
	}
	if v := os.Getenv("QUILL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("QUILL_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("QUILL_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("QUILL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUILL_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("QUILL_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
