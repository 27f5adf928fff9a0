package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/agenthands/tabgraph/internal/blob"
	"github.com/agenthands/tabgraph/internal/config"
	"github.com/agenthands/tabgraph/internal/core/export"
	"github.com/agenthands/tabgraph/internal/core/ingest"
	"github.com/agenthands/tabgraph/internal/core/jobs"
	"github.com/agenthands/tabgraph/internal/core/match"
	"github.com/agenthands/tabgraph/internal/core/search"
	"github.com/agenthands/tabgraph/internal/core/store"
	"github.com/agenthands/tabgraph/internal/driver"
)

// Stores groups the three blob buckets.
type Stores struct {
	Uploads  blob.Store
	Exports  blob.Store
	Searches blob.Store
}

// OpenStores opens the buckets named in cfg on the configured backend.
func OpenStores(ctx context.Context, cfg config.BlobConfig) (Stores, error) {
	switch strings.ToLower(cfg.Driver) {
	case "fs":
		var st Stores
		for _, b := range []struct {
			dst    *blob.Store
			bucket string
		}{
			{&st.Uploads, cfg.UploadsBucket},
			{&st.Exports, cfg.ExportsBucket},
			{&st.Searches, cfg.SearchesBucket},
		} {
			fs, err := blob.NewFS(filepath.Join(cfg.Dir, b.bucket))
			if err != nil {
				return Stores{}, err
			}
			*b.dst = fs
		}
		return st, nil

	case "s3":
		client, err := blob.NewS3Client(ctx, blob.S3Options{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return Stores{}, err
		}
		uploads := blob.NewS3(client, cfg.UploadsBucket)
		exports := blob.NewS3(client, cfg.ExportsBucket)
		searches := blob.NewS3(client, cfg.SearchesBucket)
		for _, b := range []*blob.S3{uploads, exports, searches} {
			if err := b.EnsureBucket(ctx); err != nil {
				return Stores{}, err
			}
		}
		return Stores{Uploads: uploads, Exports: exports, Searches: searches}, nil

	default:
		return Stores{}, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// New assembles the pipelines over an already opened graph and blob
// stores.
func New(cfg *config.Config, graph store.Graph, stores Stores, runner *jobs.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	svc := search.NewService(graph, logger)
	defs := &export.Definitions{Store: stores.Searches}

	return &Server{
		Uploads: &ingest.Ingestor{
			Graph:     graph,
			Sources:   stores.Uploads,
			Runner:    runner,
			BatchSize: cfg.Ingest.BatchSize,
			TempDir:   cfg.Ingest.TempDir,
			Logger:    logger,
		},
		Search: svc,
		Jobs:   runner,
		Exports: &export.Exporter{
			Search:      svc,
			Exports:     stores.Exports,
			Definitions: defs,
			Runner:      runner,
			PageSize:    cfg.Search.ExportPageSize,
			TempDir:     cfg.Ingest.TempDir,
			Logger:      logger,
		},
		Matches: &match.Engine{
			Graph:       graph,
			Search:      svc,
			Exports:     stores.Exports,
			Definitions: defs,
			Runner:      runner,
			TempDir:     cfg.Ingest.TempDir,
			Logger:      logger,
		},
		DefaultLimit:    cfg.Search.DefaultLimit,
		DefaultMaxDepth: cfg.Search.DefaultMaxDepth,
		TempDir:         cfg.Ingest.TempDir,
		Logger:          logger,
	}
}

// App owns the process-wide resources behind a Server.
type App struct {
	Server *Server
	Runner *jobs.Runner
	Driver *driver.Neo4jDriver
}

// NewApp connects to Neo4j and the blob backend and builds the server.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	d, err := driver.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	if err := d.BuildIndices(ctx); err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("failed to build indices: %w", err)
	}

	stores, err := OpenStores(ctx, cfg.Blob)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}

	runner := jobs.NewRunner(jobs.NewLimiter(cfg.Jobs.MaxConcurrent, cfg.Jobs.MaxWait.Duration), logger)
	return &App{
		Server: New(cfg, store.NewNeo4j(d), stores, runner, logger),
		Runner: runner,
		Driver: d,
	}, nil
}

// Close stops background jobs, then the driver.
func (a *App) Close(ctx context.Context) error {
	jobErr := a.Runner.Shutdown(ctx)
	if err := a.Driver.Close(ctx); err != nil {
		return err
	}
	return jobErr
}
