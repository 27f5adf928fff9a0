package model

import "sort"

// IDKey holds the seed handle in a reconstructed Record.
const IDKey = "_id"

// Record maps a column label to its distinct values, in insertion order.
type Record map[string][]string

// Add appends value under column unless it is already present.
func (r Record) Add(column, value string) {
	for _, v := range r[column] {
		if v == value {
			return
		}
	}
	r[column] = append(r[column], value)
}

// Merge unions every field into the record.
func (r Record) Merge(fields []Field) {
	for _, f := range fields {
		r.Add(f.Column, f.Value)
	}
}

// ID returns the seed handle, or "" if absent.
func (r Record) ID() string {
	if ids := r[IDKey]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// Columns returns the record's column labels, without IDKey, sorted.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		if c != IDKey {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

// JoinRow is a Row found through a join column, with all of its fields.
type JoinRow struct {
	RowID  string
	Fields []Field
}
