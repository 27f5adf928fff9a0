package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/tabgraph/internal/core/jobs"
)

func TestStageCopiesInput(t *testing.T) {
	src := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o600))

	dst, err := stage(src, t.TempDir())
	require.NoError(t, err)
	assert.NotEqual(t, src, dst)
	assert.Equal(t, ".csv", filepath.Ext(dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
	_, err = os.Stat(src)
	assert.NoError(t, err)

	_, err = stage(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Error(t, err)
}

func TestWaitAllCountsFailures(t *testing.T) {
	runner := jobs.NewRunner(jobs.NewLimiter(2, time.Second), nil)
	defer runner.Shutdown(context.Background())
	ctx := context.Background()

	first, err := runner.Reserve(ctx)
	require.NoError(t, err)
	ok := first.Go("ok", func(context.Context) error { return nil })
	second, err := runner.Reserve(ctx)
	require.NoError(t, err)
	bad := second.Go("bad", func(context.Context) error { return errors.New("boom") })

	err = waitAll(ctx, []*jobs.Task{ok, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "absent.toml")
	t.Cleanup(func() { configPath = "" })
	t.Setenv("NEO4J_URI", "bolt://cli:7687")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "bolt://cli:7687", cfg.Neo4j.URI)
}
