// Package match resolves the rows of a candidate file against the graph
// one at a time and exports the best record for each.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/agenthands/tabgraph/internal/blob"
	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/enrich"
	"github.com/agenthands/tabgraph/internal/core/export"
	"github.com/agenthands/tabgraph/internal/core/jobs"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/core/search"
	"github.com/agenthands/tabgraph/internal/core/store"
	"github.com/agenthands/tabgraph/internal/core/tabular"
	"github.com/agenthands/tabgraph/internal/core/transform"
)

type Request struct {
	Name      string
	Path      string
	Mappings  []string
	Predicate model.LogicalPredicate
	Uploads   []string
	JoinBy    []string
	MaxDepth  int
}

type Engine struct {
	Graph       store.Graph
	Search      *search.Service
	Exports     blob.Store
	Definitions *export.Definitions
	Runner      *jobs.Runner
	TempDir     string
	Logger      *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Start validates the request, records its definition and Match entity,
// and launches the resolution loop. The candidate file is consumed.
func (e *Engine) Start(ctx context.Context, req Request) (model.Match, *jobs.Task, error) {
	req.Name = strings.TrimSpace(req.Name)
	mappings, err := transform.ParseMappings(req.Mappings)
	if err != nil {
		os.Remove(req.Path)
		return model.Match{}, nil, err
	}
	if err := e.checkAbsent(ctx, req.Name); err != nil {
		os.Remove(req.Path)
		return model.Match{}, nil, err
	}

	src, err := tabular.Open(req.Path, true)
	if err != nil {
		return model.Match{}, nil, err
	}
	m, res, err := e.prepare(ctx, req, src)
	if err != nil {
		src.Close()
		return model.Match{}, nil, err
	}

	task := res.Go("match:"+req.Name, func(ctx context.Context) error {
		return e.run(ctx, req, mappings, src)
	})
	e.logger().Info("match started", "match", req.Name, "rows", m.OutOf)
	return m, task, nil
}

func (e *Engine) checkAbsent(ctx context.Context, name string) error {
	if err := export.CheckName(ctx, e.Exports, e.Definitions, name); err != nil {
		return err
	}
	_, err := e.Graph.GetMatch(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: match %q already exists", core.ErrConflict, name)
	case errors.Is(err, core.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (e *Engine) prepare(ctx context.Context, req Request, src *tabular.Source) (model.Match, *jobs.Reservation, error) {
	res, err := e.Runner.Reserve(ctx)
	if err != nil {
		return model.Match{}, nil, err
	}
	def := model.SearchDefinition{
		ColumnSearches: req.Mappings,
		Predicate:      req.Predicate,
		LimitByUploads: req.Uploads,
		JoinByColumns:  req.JoinBy,
		MaxJoinDepth:   req.MaxDepth,
	}
	if def.Predicate == "" {
		def.Predicate = model.PredicateAnd
	}
	if err := e.Definitions.Create(ctx, req.Name, def); err != nil {
		res.Cancel()
		return model.Match{}, nil, err
	}

	m := model.Match{
		Name:      req.Name,
		OutOf:     src.TotalRows(),
		TimeStamp: time.Now().UnixMilli(),
	}
	if err := e.Graph.CreateMatch(ctx, m); err != nil {
		res.Cancel()
		return model.Match{}, nil, err
	}
	return m, res, nil
}

// Candidate builds the exact-match request for one candidate row: one
// condition per non-empty mapped value, AND-combined, values lowercased
// and normalized. ok is false when every value is empty.
func Candidate(mappings []model.Mapping, row transform.ValueSource, uploads []string) (query.Request, bool) {
	req := query.Request{
		Tree:    query.Tree{Predicate: model.PredicateAnd},
		Uploads: uploads,
		Limit:   1,
	}
	for _, m := range mappings {
		v := transform.Normalize(strings.ToLower(transform.Value(m, row)))
		if v == "" {
			continue
		}
		req.Tree.Conditions = append(req.Tree.Conditions, query.Condition{
			Column: m.DestinationColumn,
			Op:     query.OpMatches,
			Value:  v,
		})
	}
	return req, len(req.Tree.Conditions) > 0
}

func (e *Engine) run(ctx context.Context, req Request, mappings []model.Mapping, src *tabular.Source) error {
	defer src.Close()
	log := e.logger().With("match", req.Name)
	bg := context.WithoutCancel(ctx)

	out, err := export.NewArtifact(ctx, e.Search, e.TempDir)
	if err != nil {
		e.fail(bg, log, req.Name, err)
		return err
	}
	defer out.Discard()

	loopErr := e.loop(ctx, log, req, mappings, src, out)
	if loopErr != nil {
		e.fail(bg, log, req.Name, loopErr)
	}
	if err := out.Publish(bg, e.Exports, req.Name); err != nil {
		log.Error("failed to store export", "error", err)
		return errors.Join(loopErr, err)
	}
	if out.Dropped > 0 {
		log.Warn("export dropped columns outside the catalog", "count", out.Dropped)
	}
	return loopErr
}

// loop processes candidate rows until the source ends or the Match is
// completed externally. Per-row search failures are logged and skipped.
func (e *Engine) loop(ctx context.Context, log *slog.Logger, req Request, mappings []model.Mapping, src *tabular.Source, out *export.Artifact) error {
	opts := enrich.Options{JoinBy: req.JoinBy, MaxDepth: req.MaxDepth}
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := src.CurrentRow()
		if r, ok := Candidate(mappings, src.Row(), req.Uploads); ok {
			records, err := e.Search.Run(ctx, r, opts)
			if err != nil {
				log.Error("candidate search failed", "row", row, "error", err)
			}
			for _, rec := range records {
				if err := out.Write(rec); err != nil {
					return fmt.Errorf("%w: write export row: %w", core.ErrStorage, err)
				}
			}
		}

		m, err := e.Graph.UpdateMatchProgress(ctx, req.Name, row)
		if err != nil {
			return err
		}
		if m.Completed {
			log.Info("match completed externally", "row", row)
			return nil
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	if _, err := e.Graph.CompleteMatch(ctx, req.Name, ""); err != nil {
		return err
	}
	log.Info("match finished", "processed", src.CurrentRow())
	return nil
}

func (e *Engine) fail(ctx context.Context, log *slog.Logger, name string, cause error) {
	log.Error("match aborted", "error", cause)
	if _, err := e.Graph.CompleteMatch(ctx, name, cause.Error()); err != nil {
		log.Error("failed to record match failure", "error", err)
	}
}

func (e *Engine) Get(ctx context.Context, name string) (model.Match, error) {
	return e.Graph.GetMatch(ctx, name)
}

// ForceComplete marks a Match completed; its loop stops at the next row.
func (e *Engine) ForceComplete(ctx context.Context, name string) (model.Match, error) {
	return e.Graph.CompleteMatch(ctx, name, "")
}

func (e *Engine) List(ctx context.Context, skip, limit int) ([]model.Match, error) {
	return e.Graph.ListMatches(ctx, skip, limit)
}
