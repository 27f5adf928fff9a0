// Package enrich turns seed Field handles into full records and links
// records across rows that share a join column value.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/store"
)

type Options struct {
	JoinBy []string
	// MaxDepth bounds the rows merged per join column, the seed's own row
	// excluded. Zero disables joins.
	MaxDepth int
}

type Enricher struct {
	Graph  store.Graph
	Logger *slog.Logger
}

func New(graph store.Graph, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{Graph: graph, Logger: logger}
}

// Expand reconstructs one record per seed, in seed order. Seeds whose row
// has vanished are dropped.
func (e *Enricher) Expand(ctx context.Context, seeds []string, opts Options) ([]model.Record, error) {
	joinBy := normalizeColumns(opts.JoinBy)
	records := make([]model.Record, 0, len(seeds))
	for _, seed := range seeds {
		row, err := e.Graph.RowOf(ctx, seed)
		if errors.Is(err, core.ErrNotFound) {
			e.Logger.Warn("seed row vanished", "seed", seed)
			continue
		}
		if err != nil {
			return nil, err
		}

		rec := model.Record{model.IDKey: {seed}}
		rec.Merge(row.Fields)
		if len(joinBy) > 0 && opts.MaxDepth > 0 {
			e.join(ctx, rec, row, joinBy, opts.MaxDepth)
		}
		records = append(records, rec)
	}
	return records, nil
}

// join merges rows sharing a value with the seed row. Per join column, at
// most maxDepth+1 distinct rows contribute, the seed row included. Every
// distinct non-empty pre-join value anchors a lookup, in sorted order.
func (e *Enricher) join(ctx context.Context, rec model.Record, seed model.JoinRow, joinBy []string, maxDepth int) {
	limit := maxDepth + 1
	anchors := anchorValues(seed.Fields)

	for _, column := range joinBy {
		contributing := []string{seed.RowID}
		for _, value := range anchors[column] {
			if len(contributing) >= limit {
				break
			}
			rows, err := e.Graph.JoinCandidates(ctx, column, value, contributing, limit-len(contributing))
			if err != nil {
				e.Logger.Error("join lookup failed", "column", column, "seed", rec.ID(), "error", err)
				break
			}
			for _, r := range rows {
				rec.Merge(r.Fields)
				contributing = append(contributing, r.RowID)
			}
		}
	}
}

func anchorValues(fields []model.Field) map[string][]string {
	seen := map[string]map[string]bool{}
	out := map[string][]string{}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if seen[f.Column] == nil {
			seen[f.Column] = map[string]bool{}
		}
		if !seen[f.Column][f.Value] {
			seen[f.Column][f.Value] = true
			out[f.Column] = append(out[f.Column], f.Value)
		}
	}
	for _, vals := range out {
		sort.Strings(vals)
	}
	return out
}

func normalizeColumns(cols []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range cols {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
