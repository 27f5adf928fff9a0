package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type BlobConfig struct {
	// Driver is "fs" or "s3".
	Driver         string `toml:"driver"`
	Dir            string `toml:"dir"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UploadsBucket  string `toml:"uploads_bucket"`
	ExportsBucket  string `toml:"exports_bucket"`
	SearchesBucket string `toml:"searches_bucket"`
}

type IngestConfig struct {
	BatchSize int    `toml:"batch_size"`
	TempDir   string `toml:"temp_dir"`
}

type JobsConfig struct {
	MaxConcurrent int      `toml:"max_concurrent"`
	MaxWait       Duration `toml:"max_wait"`
}

type SearchConfig struct {
	DefaultLimit    int `toml:"default_limit"`
	DefaultMaxDepth int `toml:"default_max_depth"`
	ExportPageSize  int `toml:"export_page_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
	// Format of the stderr handler: "text" or "json".
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type Config struct {
	Server ServerConfig `toml:"server"`
	Neo4j  Neo4jConfig  `toml:"neo4j"`
	Blob   BlobConfig   `toml:"blob"`
	Ingest IngestConfig `toml:"ingest"`
	Jobs   JobsConfig   `toml:"jobs"`
	Search SearchConfig `toml:"search"`
	Log    LogConfig    `toml:"log"`
}

// Duration reads TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Neo4j:  Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j", Database: "neo4j"},
		Blob: BlobConfig{
			Driver:         "fs",
			Dir:            "data",
			Region:         "us-east-1",
			UploadsBucket:  "uploads",
			ExportsBucket:  "exports",
			SearchesBucket: "searches",
		},
		Ingest: IngestConfig{BatchSize: 10},
		Jobs:   JobsConfig{MaxConcurrent: 8, MaxWait: Duration{30 * time.Second}},
		Search: SearchConfig{DefaultLimit: 20, DefaultMaxDepth: 0, ExportPageSize: 50},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Server.Port)
	str("NEO4J_URI", &c.Neo4j.URI)
	str("NEO4J_USER", &c.Neo4j.User)
	str("NEO4J_PASSWORD", &c.Neo4j.Password)
	str("NEO4J_DATABASE", &c.Neo4j.Database)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_DIR", &c.Blob.Dir)
	str("S3_ENDPOINT", &c.Blob.Endpoint)
	str("S3_REGION", &c.Blob.Region)
	str("S3_ACCESS_KEY", &c.Blob.AccessKey)
	str("S3_SECRET_KEY", &c.Blob.SecretKey)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	if v, err := strconv.Atoi(os.Getenv("JOBS_MAX_CONCURRENT")); err == nil {
		c.Jobs.MaxConcurrent = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j.uri is required"))
	}
	switch strings.ToLower(c.Blob.Driver) {
	case "fs":
		if c.Blob.Dir == "" {
			errs = append(errs, errors.New("blob.dir is required for the fs driver"))
		}
	case "s3":
		if c.Blob.UploadsBucket == "" || c.Blob.ExportsBucket == "" || c.Blob.SearchesBucket == "" {
			errs = append(errs, errors.New("blob buckets are required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob.driver %q", c.Blob.Driver))
	}
	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, errors.New("ingest.batch_size must be positive"))
	}
	if c.Jobs.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("jobs.max_concurrent must be positive"))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.ExportPageSize <= 0 {
		errs = append(errs, errors.New("search limits must be positive"))
	}
	if c.Search.DefaultMaxDepth < 0 {
		errs = append(errs, errors.New("search.default_max_depth must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
