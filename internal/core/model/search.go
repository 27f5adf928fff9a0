package model

import (
	"fmt"
	"strings"
)

type LogicalPredicate string

const (
	PredicateAnd LogicalPredicate = "AND"
	PredicateOr  LogicalPredicate = "OR"
)

// ParsePredicate accepts AND/OR in any case; empty defaults to AND.
func ParsePredicate(s string) (LogicalPredicate, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return PredicateAnd, nil
	case "OR":
		return PredicateOr, nil
	default:
		return "", fmt.Errorf("unknown predicate %q", s)
	}
}

// SearchDefinition is persisted verbatim under an export name.
type SearchDefinition struct {
	ColumnSearches []string         `json:"columnSearches" yaml:"columnSearches"`
	Predicate      LogicalPredicate `json:"predicate" yaml:"predicate"`
	LimitByUploads []string         `json:"limitByUploads" yaml:"limitByUploads"`
	JoinByColumns  []string         `json:"joinByColumns" yaml:"joinByColumns"`
	MaxJoinDepth   int              `json:"maxJoinDepth" yaml:"maxJoinDepth"`
}

type SearchResult struct {
	Records []Record `json:"records"`
}
