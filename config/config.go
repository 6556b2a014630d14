// Package config loads process configuration for annstore from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/annstore"
	"github.com/hupe1980/annstore/codec"
	"github.com/hupe1980/annstore/persistence"
)

// Config is the complete process configuration.
type Config struct {
	Dir         string              `yaml:"dir"`
	Index       annstore.HNSWParams `yaml:"index"`
	Compression string              `yaml:"compression"`
	Codec       string              `yaml:"codec"`
	Dimensions  DimensionsConfig    `yaml:"dimensions"`
	Log         LogConfig           `yaml:"log"`
	Mirror      MirrorConfig        `yaml:"mirror"`
	Resources   ResourcesConfig     `yaml:"resources"`
}

// DimensionsConfig selects how vectors of the wrong length are treated.
// Valid values are "drop" and "reject".
type DimensionsConfig struct {
	Upsert  string `yaml:"upsert"`
	Rebuild string `yaml:"rebuild"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MirrorConfig configures the optional remote copy of every index.
type MirrorConfig struct {
	// Kind is "", "local", "s3" or "minio". Empty disables mirroring.
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"` // local
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ResourcesConfig bounds background mirror transfers.
type ResourcesConfig struct {
	MemoryLimitBytes     int64 `yaml:"memory_limit_bytes"`
	MaxBackgroundWorkers int64 `yaml:"max_background_workers"`
	IOLimitBytesPerSec   int64 `yaml:"io_limit_bytes_per_sec"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dir:         annstore.DefaultDir,
		Index:       annstore.DefaultHNSWParams(),
		Compression: "none",
		Codec:       "go-json",
		Dimensions:  DimensionsConfig{Upsert: "drop", Rebuild: "drop"},
		Log:         LogConfig{Level: "info", Format: "text"},
		Resources:   ResourcesConfig{MaxBackgroundWorkers: 2},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ANN_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("ANN_STORE_DIR"); v != "" {
		c.Dir = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"ANN_M", &c.Index.M},
		{"ANN_EF_CONSTRUCTION", &c.Index.EFConstruction},
		{"ANN_EF", &c.Index.EF},
	}
	for _, e := range ints {
		v := getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := getenv("ANN_COMPRESSION"); v != "" {
		c.Compression = v
	}
	if v := getenv("ANN_CODEC"); v != "" {
		c.Codec = v
	}
	if v := getenv("ANN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ANN_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	var errs []error

	if c.Dir == "" {
		errs = append(errs, errors.New("dir must not be empty"))
	}
	if c.Index.M < 0 || c.Index.EFConstruction < 0 || c.Index.EF < 0 {
		errs = append(errs, fmt.Errorf("index parameters must not be negative: %+v", c.Index))
	}
	if _, err := persistence.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := codec.Parse(c.Codec); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDimensionPolicy(c.Dimensions.Upsert); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDimensionPolicy(c.Dimensions.Rebuild); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Mirror.Kind {
	case "":
	case "local":
		if c.Mirror.Path == "" {
			errs = append(errs, errors.New("mirror.path is required for a local mirror"))
		}
	case "s3", "minio":
		if c.Mirror.Bucket == "" {
			errs = append(errs, fmt.Errorf("mirror.bucket is required for a %s mirror", c.Mirror.Kind))
		}
		if c.Mirror.Kind == "minio" && c.Mirror.Endpoint == "" {
			errs = append(errs, errors.New("mirror.endpoint is required for a minio mirror"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mirror kind %q", c.Mirror.Kind))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseLevel parses a slog level name. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// ParseDimensionPolicy parses "drop" or "reject". Empty means drop.
func ParseDimensionPolicy(s string) (annstore.DimensionPolicy, error) {
	switch strings.ToLower(s) {
	case "", "drop":
		return annstore.DropMismatched, nil
	case "reject":
		return annstore.RejectBatch, nil
	default:
		return 0, fmt.Errorf("unknown dimension policy %q", s)
	}
}
