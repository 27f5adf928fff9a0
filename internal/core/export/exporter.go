package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/agenthands/tabgraph/internal/blob"
	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/jobs"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/core/search"
)

const DefaultPageSize = 50

// Exporter runs a search to exhaustion in the background and stores the
// result as a CSV artifact.
type Exporter struct {
	Search      *search.Service
	Exports     blob.Store
	Definitions *Definitions
	Runner      *jobs.Runner
	PageSize    int
	TempDir     string
	Logger      *slog.Logger
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// CheckName validates an export name and fails with core.ErrConflict if an
// artifact or a definition already exists under it. Running exports and
// matches hold their definition from launch.
func CheckName(ctx context.Context, exports blob.Store, defs *Definitions, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: export name is required", core.ErrValidation)
	}
	exists, err := exports.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: export %q already exists", core.ErrConflict, name)
	}
	taken, err := defs.Exists(ctx, name)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: export %q is already in progress", core.ErrConflict, name)
	}
	return nil
}

// Start persists def under name and launches the export.
func (e *Exporter) Start(ctx context.Context, name string, def model.SearchDefinition) (*jobs.Task, error) {
	if _, err := query.Build(def.ColumnSearches, def.Predicate, def.LimitByUploads, 0, 1); err != nil {
		return nil, err
	}
	if err := CheckName(ctx, e.Exports, e.Definitions, name); err != nil {
		return nil, err
	}
	res, err := e.Runner.Reserve(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.Definitions.Create(ctx, name, def); err != nil {
		res.Cancel()
		return nil, err
	}
	return res.Go("export:"+name, func(ctx context.Context) error {
		return e.run(ctx, name, def)
	}), nil
}

func (e *Exporter) run(ctx context.Context, name string, def model.SearchDefinition) error {
	log := e.logger().With("export", name)
	size := e.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	out, err := NewArtifact(ctx, e.Search, e.TempDir)
	if err != nil {
		return err
	}
	defer out.Discard()

	var runErr error
	for skip := 0; ; skip += size {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		records, err := e.Search.Search(ctx, search.FromDefinition(def, skip, size))
		if err != nil {
			runErr = err
			log.Error("export page failed", "row", skip, "error", err)
			break
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if err := out.Write(rec); err != nil {
				return err
			}
		}
		log.Info("exported rows", "row", skip+len(records))
	}

	if err := out.Publish(context.WithoutCancel(ctx), e.Exports, name); err != nil {
		return err
	}
	return runErr
}

// Open streams a finished artifact.
func (e *Exporter) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return e.Exports.Get(ctx, name)
}

// Artifact is an export being written to a temp file.
type Artifact struct {
	*Writer
	file *os.File
}

// NewArtifact creates a temp CSV whose header is the current column
// catalog.
func NewArtifact(ctx context.Context, s *search.Service, dir string) (*Artifact, error) {
	columns, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "export-*.csv")
	if err != nil {
		return nil, fmt.Errorf("%w: temp file: %w", core.ErrStorage, err)
	}
	w, err := NewWriter(f, columns)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &Artifact{Writer: w, file: f}, nil
}

// Publish flushes the artifact and stores it under name.
func (a *Artifact) Publish(ctx context.Context, exports blob.Store, name string) error {
	if err := a.Flush(); err != nil {
		return fmt.Errorf("%w: flush export: %w", core.ErrStorage, err)
	}
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind export: %w", core.ErrStorage, err)
	}
	return exports.Put(ctx, name, a.file)
}

// Discard closes and removes the temp file.
func (a *Artifact) Discard() {
	a.file.Close()
	os.Remove(a.file.Name())
}
