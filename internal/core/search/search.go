// Package search runs seed queries and expands their results into records.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/agenthands/tabgraph/internal/core/enrich"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/core/store"
)

const DefaultLimit = 20

type Params struct {
	Tokens    []string
	Predicate model.LogicalPredicate
	Uploads   []string
	JoinBy    []string
	MaxDepth  int
	Skip      int
	Limit     int
}

// FromDefinition builds search parameters from a persisted definition.
func FromDefinition(def model.SearchDefinition, skip, limit int) Params {
	return Params{
		Tokens:    def.ColumnSearches,
		Predicate: def.Predicate,
		Uploads:   def.LimitByUploads,
		JoinBy:    def.JoinByColumns,
		MaxDepth:  def.MaxJoinDepth,
		Skip:      skip,
		Limit:     limit,
	}
}

type Service struct {
	Graph    store.Graph
	Enricher *enrich.Enricher
	Logger   *slog.Logger
}

func NewService(graph store.Graph, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Graph: graph, Enricher: enrich.New(graph, logger), Logger: logger}
}

func (s *Service) Search(ctx context.Context, p Params) ([]model.Record, error) {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	req, err := query.Build(p.Tokens, p.Predicate, p.Uploads, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, req, enrich.Options{JoinBy: p.JoinBy, MaxDepth: p.MaxDepth})
}

// Run executes a built request.
func (s *Service) Run(ctx context.Context, req query.Request, opts enrich.Options) ([]model.Record, error) {
	start := time.Now()
	seeds, err := s.Graph.SeedSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	records, err := s.Enricher.Expand(ctx, seeds, opts)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("search", "conditions", len(req.Tree.Conditions), "seeds", len(seeds), "elapsed", time.Since(start))
	return records, nil
}

// ForField searches a single column with an explicit query type. The
// predicate is always AND.
func (s *Service) ForField(ctx context.Context, column, q string, t query.QueryType, p Params) ([]model.Record, error) {
	token, err := query.Token(column, q, t)
	if err != nil {
		return nil, err
	}
	p.Tokens = []string{token}
	p.Predicate = model.PredicateAnd
	return s.Search(ctx, p)
}

func (s *Service) Columns(ctx context.Context) ([]string, error) {
	return s.Graph.Columns(ctx)
}
