package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/core/store/storetest"
)

func newService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	g := storetest.NewMemory()
	require.NoError(t, g.CreateUpload(ctx, model.Upload{Name: "crm", Status: model.StatusFinished}))
	require.NoError(t, g.WriteBatch(ctx, "crm", 3, []string{"first", "email"}, [][]string{
		{"jon", "jon@x.com"},
		{"joanna", "jo@y.com"},
		{"ann", "ann@x.com"},
	}))
	require.NoError(t, g.CreateUpload(ctx, model.Upload{Name: "billing", Status: model.StatusFinished}))
	require.NoError(t, g.WriteBatch(ctx, "billing", 1, []string{"email", "card"}, [][]string{
		{"jon@x.com", "visa"},
	}))
	return NewService(g, nil)
}

func TestSearch(t *testing.T) {
	s := newService(t)

	recs, err := s.Search(context.Background(), Params{Tokens: []string{"first:jo<"}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"jon"}, recs[0]["first"])
	assert.Equal(t, []string{"joanna"}, recs[1]["first"])
}

func TestSearchPaginates(t *testing.T) {
	s := newService(t)

	recs, err := s.Search(context.Background(), Params{Tokens: []string{"email:>x.com"}, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"ann@x.com"}, recs[0]["email"])
}

func TestSearchWithJoin(t *testing.T) {
	s := newService(t)

	recs, err := s.Search(context.Background(), Params{
		Tokens:   []string{"email:jon@x.com"},
		Uploads:  []string{"crm"},
		JoinBy:   []string{"email"},
		MaxDepth: 1,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"visa"}, recs[0]["card"])
	assert.Equal(t, []string{"jon"}, recs[0]["first"])
}

func TestSearchRejectsBadToken(t *testing.T) {
	s := newService(t)

	_, err := s.Search(context.Background(), Params{Tokens: []string{"nocolon"}})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestForField(t *testing.T) {
	s := newService(t)

	recs, err := s.ForField(context.Background(), "email", "@x", query.TypeContains, Params{Predicate: model.PredicateOr})
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	_, err = s.ForField(context.Background(), "email", "x", "REGEX", Params{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestColumns(t *testing.T) {
	cols, err := newService(t).Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"card", "email", "first"}, cols)
}
