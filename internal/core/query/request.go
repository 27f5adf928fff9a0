package query

import (
	"fmt"
	"strings"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
)

// Tree combines leaf conditions under one logical predicate. The predicate
// applies uniformly to every condition.
type Tree struct {
	Predicate  model.LogicalPredicate
	Conditions []Condition
}

// Eval reports whether a row, given as its fields, satisfies the tree. A
// row satisfies a condition when any of its fields under the condition's
// column matches.
func (t Tree) Eval(fields []model.Field) bool {
	if len(t.Conditions) == 0 {
		return false
	}
	for _, c := range t.Conditions {
		hit := false
		for _, f := range fields {
			if f.Column == c.Column && c.Matches(f.Value) {
				hit = true
				break
			}
		}
		if t.Predicate == model.PredicateOr && hit {
			return true
		}
		if t.Predicate != model.PredicateOr && !hit {
			return false
		}
	}
	return t.Predicate != model.PredicateOr
}

// Anchors reports which fields of a row can serve as the seed: those that
// match at least one condition.
func (t Tree) Anchors(fields []model.Field) []int {
	var idx []int
	for i, f := range fields {
		for _, c := range t.Conditions {
			if f.Column == c.Column && c.Matches(f.Value) {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// Request is a seed search: a predicate tree, an optional upload
// allow-list and pagination.
type Request struct {
	Tree    Tree
	Uploads []string
	Skip    int
	Limit   int
}

// Build parses every token into a Request.
func Build(tokens []string, predicate model.LogicalPredicate, uploads []string, skip, limit int) (Request, error) {
	if len(tokens) == 0 {
		return Request{}, fmt.Errorf("%w: at least one search token is required", core.ErrValidation)
	}
	if skip < 0 || limit <= 0 {
		return Request{}, fmt.Errorf("%w: invalid pagination skip=%d limit=%d", core.ErrValidation, skip, limit)
	}
	if predicate == "" {
		predicate = model.PredicateAnd
	}

	r := Request{
		Tree:  Tree{Predicate: predicate},
		Skip:  skip,
		Limit: limit,
	}
	for _, raw := range tokens {
		c, err := ParseToken(raw)
		if err != nil {
			return Request{}, err
		}
		r.Tree.Conditions = append(r.Tree.Conditions, c)
	}
	for _, u := range uploads {
		if u = strings.TrimSpace(u); u != "" {
			r.Uploads = append(r.Uploads, u)
		}
	}
	return r, nil
}

// Columns lists the distinct column labels the request references.
func (r Request) Columns() []string {
	var cols []string
	seen := map[string]bool{}
	for _, c := range r.Tree.Conditions {
		if !seen[c.Column] {
			seen[c.Column] = true
			cols = append(cols, c.Column)
		}
	}
	return cols
}
