package query

import (
	"fmt"
	"strings"

	"github.com/agenthands/tabgraph/internal/core/model"
)

// QuoteLabel escapes a column name for use as a Cypher label.
func QuoteLabel(label string) string {
	return "`" + strings.ReplaceAll(label, "`", "``") + "`"
}

func comparison(variable string, op Op, param string) string {
	switch op {
	case OpContains:
		return fmt.Sprintf("%s.value CONTAINS $%s", variable, param)
	case OpStartsWith:
		return fmt.Sprintf("%s.value STARTS WITH $%s", variable, param)
	case OpEndsWith:
		return fmt.Sprintf("%s.value ENDS WITH $%s", variable, param)
	default:
		return fmt.Sprintf("%s.value = $%s", variable, param)
	}
}

// Compile renders the seed query. Literal values only ever travel as
// parameters; labels are backtick-quoted. The query returns one `id`
// column: the lowest element id among the matching Field nodes of each
// qualifying Row.
func Compile(r Request) (string, map[string]any) {
	params := map[string]any{
		"skip":  r.Skip,
		"limit": r.Limit,
	}

	anchors := make([]string, len(r.Tree.Conditions))
	for i, c := range r.Tree.Conditions {
		p := fmt.Sprintf("p%d", i)
		params[p] = c.Value
		anchors[i] = fmt.Sprintf("(n:%s AND %s)", QuoteLabel(c.Column), comparison("n", c.Op, p))
	}

	var sb strings.Builder
	sb.WriteString("MATCH (u:Upload)-[:OWNS]->(row:Row)-[:OWNS]->(n)\n")
	sb.WriteString("WHERE (")
	sb.WriteString(strings.Join(anchors, " OR "))
	sb.WriteString(")")

	if r.Tree.Predicate != model.PredicateOr && len(r.Tree.Conditions) > 1 {
		exists := make([]string, len(r.Tree.Conditions))
		for i, c := range r.Tree.Conditions {
			v := fmt.Sprintf("f%d", i)
			exists[i] = fmt.Sprintf("EXISTS { MATCH (row)-[:OWNS]->(%s:%s) WHERE %s }",
				v, QuoteLabel(c.Column), comparison(v, c.Op, fmt.Sprintf("p%d", i)))
		}
		sb.WriteString("\n  AND ")
		sb.WriteString(strings.Join(exists, "\n  AND "))
	}

	if len(r.Uploads) > 0 {
		params["uploads"] = r.Uploads
		sb.WriteString("\n  AND u.name IN $uploads")
	}

	sb.WriteString("\nWITH row, min(elementId(n)) AS id\nRETURN id\nORDER BY id\nSKIP $skip LIMIT $limit")
	return sb.String(), params
}
