// Package config provides configuration for fgdb2gpkg runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "FGDB2GPKG_"

// Config holds the configuration of a conversion run.
type Config struct {
	// Overwrite deletes the destination GeoPackage before converting.
	// When false, layers already in the destination are skipped.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// WriteOptions are passed to the GeoPackage feature writer.
	WriteOptions map[string]string `json:"write_options" yaml:"write_options"`

	// Verify compares source and destination after the conversion.
	Verify bool `json:"verify" yaml:"verify"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Publish configuration
	Publish PublishConfig `json:"publish" yaml:"publish"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is one of text, json, logfmt
	Format string `json:"format" yaml:"format"`
}

// PublishConfig holds configuration for uploading the finished GeoPackage.
type PublishConfig struct {
	// Enabled turns publishing on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the target directory (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is prepended to the object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// Replace allows overwriting an existing object
	Replace bool `json:"replace" yaml:"replace"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// PartSizeMB is the multipart upload part size in megabytes (min 5)
	PartSizeMB int `json:"part_size_mb" yaml:"part_size_mb"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Overwrite:    true,
		WriteOptions: map[string]string{},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Publish: PublishConfig{
			Type:    "local",
			Replace: true,
			S3: S3Config{
				Region:     "us-east-1",
				PartSizeMB: 5,
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format: %s (must be text, json, or logfmt)", c.Log.Format)
	}

	for k := range c.WriteOptions {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("write_options contains an empty key")
		}
	}

	if !c.Publish.Enabled {
		return nil
	}

	switch c.Publish.Type {
	case "local":
		if c.Publish.Path == "" {
			return fmt.Errorf("publish.path is required when publish type is local")
		}
	case "s3":
		if c.Publish.S3.Bucket == "" {
			return fmt.Errorf("publish.s3.bucket is required when publish type is s3")
		}
		if c.Publish.S3.PartSizeMB < 5 {
			return fmt.Errorf("publish.s3.part_size_mb must be at least 5, got %d", c.Publish.S3.PartSizeMB)
		}
	default:
		return fmt.Errorf("invalid publish type: %s (must be local or s3)", c.Publish.Type)
	}

	return nil
}

// SetWriteOption parses a KEY=VALUE pair and stores it with an upper-cased
// key.
func (c *Config) SetWriteOption(pair string) error {
	key, value, err := ParseWriteOption(pair)
	if err != nil {
		return err
	}
	if c.WriteOptions == nil {
		c.WriteOptions = map[string]string{}
	}
	c.WriteOptions[key] = value
	return nil
}

// WriteOptionPairs returns the write options as sorted KEY=VALUE strings.
func (c *Config) WriteOptionPairs() []string {
	pairs := make([]string, 0, len(c.WriteOptions))
	for k, v := range c.WriteOptions {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// ParseWriteOption splits a KEY=VALUE pair. The key is upper-cased.
func ParseWriteOption(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.ToUpper(strings.TrimSpace(key))
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid write option %q (expected KEY=VALUE)", pair)
	}
	return key, value, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	// Keys from files are matched case-insensitively like flag values.
	opts := make(map[string]string, len(cfg.WriteOptions))
	for k, v := range cfg.WriteOptions {
		opts[strings.ToUpper(k)] = v
	}
	cfg.WriteOptions = opts

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FGDB2GPKG_ prefix.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "OVERWRITE"); v != "" {
		cfg.Overwrite = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "VERIFY"); v != "" {
		cfg.Verify = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "WRITE_OPTIONS"); v != "" {
		for _, pair := range strings.Split(v, ",") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			if err := cfg.SetWriteOption(pair); err != nil {
				return fmt.Errorf("%sWRITE_OPTIONS: %w", EnvPrefix, err)
			}
		}
	}

	// Log configuration
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Publish configuration
	if v := os.Getenv(EnvPrefix + "PUBLISH_ENABLED"); v != "" {
		cfg.Publish.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "PUBLISH_TYPE"); v != "" {
		cfg.Publish.Type = v
	}
	if v := os.Getenv(EnvPrefix + "PUBLISH_PATH"); v != "" {
		cfg.Publish.Path = v
	}
	if v := os.Getenv(EnvPrefix + "PUBLISH_PREFIX"); v != "" {
		cfg.Publish.Prefix = v
	}
	if v := os.Getenv(EnvPrefix + "PUBLISH_REPLACE"); v != "" {
		cfg.Publish.Replace = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "S3_BUCKET"); v != "" {
		cfg.Publish.S3.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "S3_REGION"); v != "" {
		cfg.Publish.S3.Region = v
	}
	if v := os.Getenv(EnvPrefix + "S3_ENDPOINT"); v != "" {
		cfg.Publish.S3.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "S3_USE_PATH_STYLE"); v != "" {
		cfg.Publish.S3.UsePathStyle = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "S3_PART_SIZE_MB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Publish.S3.PartSizeMB)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
