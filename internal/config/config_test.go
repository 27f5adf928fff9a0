package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[neo4j]
uri = "neo4j://graph:7687"

[blob]
driver = "s3"
endpoint = "http://minio:9000"

[jobs]
max_wait = "5s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, "s3", cfg.Blob.Driver)
	assert.Equal(t, "uploads", cfg.Blob.UploadsBucket)
	assert.Equal(t, 5*time.Second, cfg.Jobs.MaxWait.Duration)
	assert.Equal(t, 8, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[jobs]\nmax_wait = \"soon\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://env:7687")
	t.Setenv("BLOB_DRIVER", "s3")
	t.Setenv("PORT", "9090")
	t.Setenv("JOBS_MAX_CONCURRENT", "3")

	cfg := Defaults()
	cfg.ApplyEnv()
	assert.Equal(t, "bolt://env:7687", cfg.Neo4j.URI)
	assert.Equal(t, "s3", cfg.Blob.Driver)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Jobs.MaxConcurrent)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Blob.Driver = "ftp"
	cfg.Ingest.BatchSize = 0
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "loud")
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, "text", slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("ingestion finished", "upload", "people")

	assert.Contains(t, stderr.String(), "upload=people")
	assert.Contains(t, file.String(), `"upload":"people"`)
	assert.NotContains(t, file.String(), "hidden")
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, cleanup := SetupLogger(LogConfig{Level: "debug", File: path})
	logger.Debug("batch written", "rows", 10)
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rows":10`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
