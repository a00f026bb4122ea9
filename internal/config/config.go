// Package config loads tendertriage settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tendertriage configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Source  SourceConfig  `yaml:"source"`
	Triage  TriageConfig  `yaml:"triage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	StaticDir       string        `yaml:"static_dir"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Source kinds.
const (
	SourceBlob = "blob"
	SourceSQL  = "sql"
)

// SourceConfig selects where tender rows are ingested from.
type SourceConfig struct {
	Kind  string     `yaml:"kind"` // blob, sql
	Limit int        `yaml:"limit"`
	Blob  BlobSource `yaml:"blob"`
	SQL   SQLSource  `yaml:"sql"`
}

// BlobSource reads a CSV object from a blob store.
type BlobSource struct {
	Driver string   `yaml:"driver"` // fs, s3, memory
	FSRoot string   `yaml:"fs_root"`
	Key    string   `yaml:"key"`
	S3     S3Config `yaml:"s3"`
}

// S3Config locates the bucket for the s3 driver.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// SQLSource reads rows from a database table.
type SQLSource struct {
	Driver string `yaml:"driver"` // sqlite, postgres
	DSN    string `yaml:"dsn"`
	Query  string `yaml:"query"`
}

// TriageConfig tunes the outlier model and the query preview.
type TriageConfig struct {
	Seed          uint64  `yaml:"seed"`
	Trees         int     `yaml:"trees"`
	MaxSamples    int     `yaml:"max_samples"`
	Contamination float64 `yaml:"contamination"`
	Workers       int     `yaml:"workers"` // 0 = GOMAXPROCS
	PreviewSize   int     `yaml:"preview_size"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration: serve main.csv from the
// working directory on :5000.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			StaticDir:       ".",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			Kind:  SourceBlob,
			Limit: 50000,
			Blob: BlobSource{
				Driver: "fs",
				FSRoot: ".",
				Key:    "main.csv",
				S3:     S3Config{Region: "us-east-1"},
			},
			SQL: SQLSource{
				Driver: "sqlite",
				Query:  "SELECT tender_id, tender_value_amount, tender_numberOfTenderers, tender_datePublished, buyer_name FROM tenders",
			},
		},
		Triage: TriageConfig{
			Seed:          42,
			Trees:         100,
			MaxSamples:    256,
			Contamination: 0.05,
			PreviewSize:   20,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file layered over the defaults, then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables layered over the file:
//
//	TENDERTRIAGE_ADDR, TENDERTRIAGE_STATIC_DIR
//	TENDERTRIAGE_SOURCE_KIND, TENDERTRIAGE_SOURCE_LIMIT
//	TENDERTRIAGE_BLOB_DRIVER, TENDERTRIAGE_BLOB_FS_ROOT, TENDERTRIAGE_BLOB_KEY
//	TENDERTRIAGE_BLOB_S3_BUCKET, TENDERTRIAGE_BLOB_S3_REGION, TENDERTRIAGE_BLOB_S3_ENDPOINT, TENDERTRIAGE_BLOB_S3_PATH_STYLE
//	TENDERTRIAGE_SQL_DRIVER, TENDERTRIAGE_SQL_DSN, TENDERTRIAGE_SQL_QUERY
//	TENDERTRIAGE_SEED, TENDERTRIAGE_WORKERS, TENDERTRIAGE_LOG_LEVEL
func (c *Config) applyEnvOverrides() error {
	setString(&c.Server.Addr, "TENDERTRIAGE_ADDR")
	setString(&c.Server.StaticDir, "TENDERTRIAGE_STATIC_DIR")
	setString(&c.Source.Kind, "TENDERTRIAGE_SOURCE_KIND")
	setString(&c.Source.Blob.Driver, "TENDERTRIAGE_BLOB_DRIVER")
	setString(&c.Source.Blob.FSRoot, "TENDERTRIAGE_BLOB_FS_ROOT")
	setString(&c.Source.Blob.Key, "TENDERTRIAGE_BLOB_KEY")
	setString(&c.Source.Blob.S3.Bucket, "TENDERTRIAGE_BLOB_S3_BUCKET")
	setString(&c.Source.Blob.S3.Region, "TENDERTRIAGE_BLOB_S3_REGION")
	setString(&c.Source.Blob.S3.Endpoint, "TENDERTRIAGE_BLOB_S3_ENDPOINT")
	if v, ok := lookup("TENDERTRIAGE_BLOB_S3_PATH_STYLE"); ok {
		c.Source.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
	setString(&c.Source.SQL.Driver, "TENDERTRIAGE_SQL_DRIVER")
	setString(&c.Source.SQL.DSN, "TENDERTRIAGE_SQL_DSN")
	setString(&c.Source.SQL.Query, "TENDERTRIAGE_SQL_QUERY")
	setString(&c.Logging.Level, "TENDERTRIAGE_LOG_LEVEL")

	if v, ok := lookup("TENDERTRIAGE_SOURCE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TENDERTRIAGE_SOURCE_LIMIT: %w", err)
		}
		c.Source.Limit = n
	}
	if v, ok := lookup("TENDERTRIAGE_SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TENDERTRIAGE_SEED: %w", err)
		}
		c.Triage.Seed = n
	}
	if v, ok := lookup("TENDERTRIAGE_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TENDERTRIAGE_WORKERS: %w", err)
		}
		c.Triage.Workers = n
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceBlob:
		switch c.Source.Blob.Driver {
		case "fs", "memory":
		case "s3":
			if c.Source.Blob.S3.Bucket == "" {
				return fmt.Errorf("source.blob.s3.bucket required for s3 driver")
			}
		default:
			return fmt.Errorf("unknown blob driver %q", c.Source.Blob.Driver)
		}
		if strings.TrimSpace(c.Source.Blob.Key) == "" {
			return fmt.Errorf("source.blob.key required")
		}
	case SourceSQL:
		switch c.Source.SQL.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("unknown sql driver %q", c.Source.SQL.Driver)
		}
		if strings.TrimSpace(c.Source.SQL.Query) == "" {
			return fmt.Errorf("source.sql.query required")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Source.Limit < 0 {
		return fmt.Errorf("source.limit must not be negative")
	}
	if c.Triage.Trees < 0 || c.Triage.MaxSamples < 0 || c.Triage.Workers < 0 {
		return fmt.Errorf("triage trees, max_samples and workers must not be negative")
	}
	if c.Triage.Contamination < 0 || c.Triage.Contamination > 0.5 {
		return fmt.Errorf("triage.contamination must be within [0, 0.5]")
	}
	if c.Triage.PreviewSize < 0 {
		return fmt.Errorf("triage.preview_size must not be negative")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
