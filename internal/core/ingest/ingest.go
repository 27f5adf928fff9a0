// Package ingest streams a tabular source into the graph in fixed-size
// batches and owns the upload lifecycle.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/tabgraph/internal/blob"
	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/jobs"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/store"
	"github.com/agenthands/tabgraph/internal/core/tabular"
	"github.com/agenthands/tabgraph/internal/core/transform"
)

const (
	DefaultBatchSize = 10

	resumeListPage    = 100
	resumeConcurrency = 4
)

type Ingestor struct {
	Graph     store.Graph
	Sources   blob.Store
	Runner    *jobs.Runner
	BatchSize int
	TempDir   string
	Logger    *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

// claim marks name as having a live job in this process. It fails with
// core.ErrConflict while another job holds the name.
func (i *Ingestor) claim(name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active[name] {
		return fmt.Errorf("%w: upload %q is already being ingested", core.ErrConflict, name)
	}
	if i.active == nil {
		i.active = map[string]bool{}
	}
	i.active[name] = true
	return nil
}

func (i *Ingestor) release(name string) {
	i.mu.Lock()
	delete(i.active, name)
	i.mu.Unlock()
}

func (i *Ingestor) logger() *slog.Logger {
	if i.Logger == nil {
		return slog.Default()
	}
	return i.Logger
}

func (i *Ingestor) batchSize() int {
	if i.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return i.BatchSize
}

func destinations(mappings []model.Mapping) []string {
	cols := make([]string, len(mappings))
	for k, m := range mappings {
		cols[k] = m.DestinationColumn
	}
	return cols
}

func (i *Ingestor) ensureIndexes(ctx context.Context, mappings []model.Mapping) error {
	seen := map[string]bool{}
	for _, col := range destinations(mappings) {
		if seen[col] {
			continue
		}
		seen[col] = true
		if err := i.Graph.EnsureValueIndex(ctx, col); err != nil {
			return err
		}
	}
	return nil
}

// Start ingests the file at path as a new upload. The file is consumed:
// it is removed once the job ends, or immediately when Start fails.
func (i *Ingestor) Start(ctx context.Context, name, path string, rawMappings []string) (model.Upload, *jobs.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		os.Remove(path)
		return model.Upload{}, nil, fmt.Errorf("%w: upload name is required", core.ErrValidation)
	}
	mappings, err := transform.ParseMappings(rawMappings)
	if err != nil {
		os.Remove(path)
		return model.Upload{}, nil, err
	}
	if err := i.claim(name); err != nil {
		os.Remove(path)
		return model.Upload{}, nil, err
	}
	if err := i.checkAbsent(ctx, name); err != nil {
		i.release(name)
		os.Remove(path)
		return model.Upload{}, nil, err
	}

	src, err := tabular.Open(path, true)
	if err != nil {
		i.release(name)
		return model.Upload{}, nil, err
	}

	upload, res, err := i.prepare(ctx, name, src, mappings)
	if err != nil {
		src.Close()
		i.release(name)
		return model.Upload{}, nil, err
	}

	task := res.Go("ingest:"+name, func(ctx context.Context) error {
		return i.run(ctx, src, upload)
	})
	i.logger().Info("ingestion started", "upload", name, "rows", upload.OutOf)
	return upload, task, nil
}

func (i *Ingestor) checkAbsent(ctx context.Context, name string) error {
	_, err := i.Graph.GetUpload(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: upload %q already exists", core.ErrConflict, name)
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return err
	}
}

// prepare runs every synchronous step between a parsed source and a
// launchable job: admission, indexes, the Upload node and the retained
// source copy.
func (i *Ingestor) prepare(ctx context.Context, name string, src *tabular.Source, mappings []model.Mapping) (model.Upload, *jobs.Reservation, error) {
	res, err := i.Runner.Reserve(ctx)
	if err != nil {
		return model.Upload{}, nil, err
	}
	if err := i.ensureIndexes(ctx, mappings); err != nil {
		res.Cancel()
		return model.Upload{}, nil, err
	}

	upload := model.Upload{
		Name:      name,
		OutOf:     src.TotalRows(),
		TimeStamp: src.Timestamp(),
		Mappings:  mappings,
		Status:    model.StatusProcessing,
	}
	if err := i.Graph.CreateUpload(ctx, upload); err != nil {
		res.Cancel()
		return model.Upload{}, nil, err
	}
	if err := i.retain(ctx, name, src.Path()); err != nil {
		res.Cancel()
		if ferr := i.Graph.FinishUpload(ctx, name, model.StatusFinishedWithError, 0); ferr != nil {
			i.logger().Error("failed to mark upload failed", "upload", name, "error", ferr)
		}
		return model.Upload{}, nil, err
	}
	return upload, res, nil
}

func (i *Ingestor) retain(ctx context.Context, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: reopen source: %w", core.ErrStorage, err)
	}
	defer f.Close()
	return i.Sources.Put(ctx, name, f)
}

// run is the background half of an ingestion. A cancelled context leaves
// the upload in Processing so that it resumes on the next start. The
// upload's claim is released when run returns.
func (i *Ingestor) run(ctx context.Context, src *tabular.Source, upload model.Upload) error {
	defer i.release(upload.Name)
	defer src.Close()
	log := i.logger().With("upload", upload.Name)
	columns := destinations(upload.Mappings)
	size := i.batchSize()

	batch := make([][]string, 0, size)
	for src.Next() {
		if err := ctx.Err(); err != nil {
			log.Warn("ingestion interrupted", "row", src.CurrentRow()-1)
			return err
		}
		batch = append(batch, transform.Values(upload.Mappings, src.Row()))
		if len(batch) >= size {
			i.flush(ctx, log, upload.Name, src.CurrentRow(), columns, batch)
			batch = make([][]string, 0, size)
		}
	}
	if len(batch) > 0 {
		i.flush(ctx, log, upload.Name, src.CurrentRow(), columns, batch)
	}
	if err := ctx.Err(); err != nil {
		log.Warn("ingestion interrupted", "row", src.CurrentRow())
		return err
	}

	status := model.StatusFinished
	readErr := src.Err()
	if readErr != nil {
		status = model.StatusFinishedWithError
		log.Error("source read failed", "row", src.CurrentRow(), "error", readErr)
	}
	if err := i.Graph.FinishUpload(context.WithoutCancel(ctx), upload.Name, status, src.CurrentRow()); err != nil {
		return errors.Join(readErr, err)
	}
	log.Info("ingestion finished", "status", status, "processed", src.CurrentRow(), "outOf", upload.OutOf)
	return readErr
}

// flush commits one batch. Failures are logged and the batch is dropped;
// row-count drift is how they surface.
func (i *Ingestor) flush(ctx context.Context, log *slog.Logger, upload string, processed int64, columns []string, batch [][]string) {
	if err := i.Graph.WriteBatch(ctx, upload, processed, columns, batch); err != nil {
		log.Error("batch write failed", "batch", processed, "rows", len(batch), "error", err)
		return
	}
	log.Debug("batch written", "batch", processed, "rows", len(batch))
}

// Resume relaunches a Processing upload from its retained source,
// skipping the rows already committed.
func (i *Ingestor) Resume(ctx context.Context, name string) (*jobs.Task, error) {
	if err := i.claim(name); err != nil {
		return nil, err
	}
	upload, src, err := i.reopen(ctx, name)
	if err != nil {
		i.release(name)
		return nil, err
	}
	res, err := i.Runner.Reserve(ctx)
	if err != nil {
		src.Close()
		i.release(name)
		return nil, err
	}
	return res.Go("ingest:"+name, func(ctx context.Context) error {
		return i.run(ctx, src, upload)
	}), nil
}

func (i *Ingestor) reopen(ctx context.Context, name string) (model.Upload, *tabular.Source, error) {
	upload, err := i.Graph.GetUpload(ctx, name)
	if err != nil {
		return model.Upload{}, nil, err
	}
	if upload.Status != model.StatusProcessing {
		return model.Upload{}, nil, fmt.Errorf("%w: upload %q is %s", core.ErrConflict, name, upload.Status)
	}

	path, err := i.fetch(ctx, name)
	if errors.Is(err, core.ErrNotFound) {
		i.abandon(ctx, name, upload.Processed)
		return model.Upload{}, nil, fmt.Errorf("%w: source of %q is missing: %w", core.ErrStorage, name, err)
	}
	if err != nil {
		return model.Upload{}, nil, err
	}
	src, err := tabular.Open(path, true)
	if err != nil {
		return model.Upload{}, nil, err
	}

	if skipped := src.Skip(upload.Processed); skipped < upload.Processed {
		src.Close()
		i.abandon(ctx, name, upload.Processed)
		return model.Upload{}, nil, fmt.Errorf("%w: source of %q has %d rows, %d already processed",
			core.ErrStorage, name, skipped, upload.Processed)
	}
	if err := i.ensureIndexes(ctx, upload.Mappings); err != nil {
		src.Close()
		return model.Upload{}, nil, err
	}
	i.logger().Info("ingestion resumed", "upload", name, "row", upload.Processed, "outOf", upload.OutOf)
	return upload, src, nil
}

// abandon marks an upload that can never resume as FinishedWithError.
func (i *Ingestor) abandon(ctx context.Context, name string, processed int64) {
	if err := i.Graph.FinishUpload(ctx, name, model.StatusFinishedWithError, processed); err != nil {
		i.logger().Error("failed to mark upload failed", "upload", name, "error", err)
		return
	}
	i.logger().Warn("upload abandoned", "upload", name, "processed", processed)
}

func (i *Ingestor) fetch(ctx context.Context, name string) (string, error) {
	rc, err := i.Sources.Get(ctx, name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp(i.TempDir, "resume-*.csv")
	if err != nil {
		return "", fmt.Errorf("%w: temp file: %w", core.ErrStorage, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: fetch source of %q: %w", core.ErrStorage, name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: temp file: %w", core.ErrStorage, err)
	}
	return f.Name(), nil
}

// ResumeAll relaunches every Processing upload. Each one is queued on the
// runner; uploads that cannot be reopened are logged and skipped.
func (i *Ingestor) ResumeAll(ctx context.Context) ([]*jobs.Task, error) {
	var pending []model.Upload
	for skip := 0; ; skip += resumeListPage {
		page, err := i.Graph.ListUploads(ctx, false, skip, resumeListPage)
		if err != nil {
			return nil, err
		}
		pending = append(pending, page...)
		if len(page) < resumeListPage {
			break
		}
	}

	var (
		mu    sync.Mutex
		tasks []*jobs.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resumeConcurrency)
	for _, u := range pending {
		g.Go(func() error {
			if err := i.claim(u.Name); err != nil {
				i.logger().Warn("upload already running", "upload", u.Name)
				return nil
			}
			upload, src, err := i.reopen(gctx, u.Name)
			if err != nil {
				i.release(u.Name)
				i.logger().Error("failed to resume upload", "upload", u.Name, "error", err)
				return nil
			}
			task := i.Runner.Schedule("ingest:"+u.Name, func(ctx context.Context) error {
				return i.run(ctx, src, upload)
			})
			mu.Lock()
			tasks = append(tasks, task)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	i.logger().Info("resumed unfinished uploads", "count", len(tasks), "pending", len(pending))
	return tasks, err
}
