package query

import (
	"fmt"
	"strings"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/transform"
)

type Op string

const (
	OpMatches    Op = "MATCHES"
	OpContains   Op = "CONTAINS"
	OpStartsWith Op = "STARTS_WITH"
	OpEndsWith   Op = "ENDS_WITH"
)

// QueryType is the explicit operator accepted by single-field search.
type QueryType string

const (
	TypeEquals     QueryType = "EQUALS"
	TypeContains   QueryType = "CONTAINS"
	TypeStartsWith QueryType = "STARTS_WITH"
	TypeEndsWith   QueryType = "ENDS_WITH"
)

// Condition is a leaf predicate on the value of a Field node.
type Condition struct {
	Column string
	Op     Op
	Value  string
}

// ParseToken parses `column:query`. The token splits at its first colon.
// The column is normalized the way mapping destinations are; the query is
// lowercased and trimmed before marker classification.
func ParseToken(raw string) (Condition, error) {
	column, q, ok := strings.Cut(raw, ":")
	if !ok {
		return Condition{}, fmt.Errorf("%w: search token %q has no ':'", core.ErrValidation, raw)
	}
	column = transform.Normalize(strings.ToLower(column))
	q = strings.ToLower(strings.TrimSpace(q))
	if column == "" {
		return Condition{}, fmt.Errorf("%w: search token %q has no column", core.ErrValidation, raw)
	}
	if q == "" {
		return Condition{}, fmt.Errorf("%w: search token %q has no query", core.ErrValidation, raw)
	}

	c := Condition{Column: column, Op: OpMatches, Value: q}
	leading := strings.HasPrefix(q, ">")
	trailing := strings.HasSuffix(q, "<") && (!leading || len(q) > 1)
	switch {
	case leading && trailing:
		c.Op, c.Value = OpContains, q[1:len(q)-1]
	case leading:
		c.Op, c.Value = OpEndsWith, q[1:]
	case trailing:
		c.Op, c.Value = OpStartsWith, q[:len(q)-1]
	}
	if c.Value == "" {
		return Condition{}, fmt.Errorf("%w: search token %q has an empty literal", core.ErrValidation, raw)
	}
	return c, nil
}

// Token renders a column, query and explicit type as a search token.
func Token(column, q string, t QueryType) (string, error) {
	switch QueryType(strings.ToUpper(strings.TrimSpace(string(t)))) {
	case TypeEquals, "":
		return column + ":" + q, nil
	case TypeContains:
		return column + ":>" + q + "<", nil
	case TypeStartsWith:
		return column + ":" + q + "<", nil
	case TypeEndsWith:
		return column + ":>" + q, nil
	default:
		return "", fmt.Errorf("%w: unsupported query type %q", core.ErrValidation, t)
	}
}

// Matches evaluates the condition against a stored value.
func (c Condition) Matches(value string) bool {
	switch c.Op {
	case OpContains:
		return strings.Contains(value, c.Value)
	case OpStartsWith:
		return strings.HasPrefix(value, c.Value)
	case OpEndsWith:
		return strings.HasSuffix(value, c.Value)
	default:
		return value == c.Value
	}
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %q", c.Column, c.Op, c.Value)
}
