// Package storetest provides an in-process store.Graph for tests of the
// pipelines built on it.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/core/store"
)

type memRow struct {
	id     string
	upload string
	fields []memField
}

type memField struct {
	id     string
	column string
	value  string
}

// Memory is an in-process Graph. Handles are zero-padded sequence numbers,
// so handle order equals creation order.
type Memory struct {
	mu      sync.Mutex
	seq     int
	uploads map[string]model.Upload
	matches map[string]model.Match
	rows    []*memRow
	byField map[string]*memRow
	indexes map[string]bool
}

var _ store.Graph = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		uploads: map[string]model.Upload{},
		matches: map[string]model.Match{},
		byField: map[string]*memRow{},
		indexes: map[string]bool{},
	}
}

func (m *Memory) nextID(kind string) string {
	m.seq++
	return fmt.Sprintf("%s:%09d", kind, m.seq)
}

func (m *Memory) EnsureValueIndex(_ context.Context, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[column] = true
	return nil
}

// Indexed reports whether EnsureValueIndex was called for column.
func (m *Memory) Indexed(column string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexes[column]
}

func (m *Memory) CreateUpload(_ context.Context, u model.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.Name]; ok {
		return fmt.Errorf("%w: upload %q already exists", core.ErrConflict, u.Name)
	}
	m.uploads[u.Name] = u
	return nil
}

func (m *Memory) GetUpload(_ context.Context, name string) (model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[name]
	if !ok {
		return model.Upload{}, fmt.Errorf("%w: upload %q", core.ErrNotFound, name)
	}
	return u, nil
}

func (m *Memory) ListUploads(_ context.Context, finished bool, skip, limit int) ([]model.Upload, error) {
	m.mu.Lock()
	var out []model.Upload
	for _, u := range m.uploads {
		if (u.Status != model.StatusProcessing) == finished {
			out = append(out, u)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeStamp != out[j].TimeStamp {
			if finished {
				return out[i].TimeStamp > out[j].TimeStamp
			}
			return out[i].TimeStamp < out[j].TimeStamp
		}
		return out[i].Name < out[j].Name
	})
	return page(out, skip, limit), nil
}

func (m *Memory) WriteBatch(_ context.Context, upload string, processed int64, columns []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[upload]
	if !ok {
		return nil
	}
	for i, values := range rows {
		if len(values) != len(columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(values), len(columns))
		}
	}
	u.Processed = processed
	m.uploads[upload] = u
	for _, values := range rows {
		r := &memRow{id: m.nextID("row"), upload: upload}
		for i, c := range columns {
			f := memField{id: m.nextID("field"), column: c, value: values[i]}
			r.fields = append(r.fields, f)
			m.byField[f.id] = r
		}
		m.rows = append(m.rows, r)
	}
	return nil
}

func (m *Memory) FinishUpload(_ context.Context, name string, status model.UploadStatus, processed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[name]
	if !ok {
		return fmt.Errorf("%w: upload %q", core.ErrNotFound, name)
	}
	u.Status = status
	u.Processed = processed
	m.uploads[name] = u
	return nil
}

// RowCount counts the Rows owned by an upload.
func (m *Memory) RowCount(upload string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.upload == upload {
			n++
		}
	}
	return n
}

func (r *memRow) view() model.JoinRow {
	jr := model.JoinRow{RowID: r.id, Fields: make([]model.Field, len(r.fields))}
	for i, f := range r.fields {
		jr.Fields[i] = model.Field{Column: f.column, Value: f.value}
	}
	return jr
}

func (m *Memory) SeedSearch(_ context.Context, r query.Request) ([]string, error) {
	allowed := map[string]bool{}
	for _, u := range r.Uploads {
		allowed[u] = true
	}

	m.mu.Lock()
	var ids []string
	for _, row := range m.rows {
		if len(allowed) > 0 && !allowed[row.upload] {
			continue
		}
		fields := row.view().Fields
		if !r.Tree.Eval(fields) {
			continue
		}
		anchors := r.Tree.Anchors(fields)
		ids = append(ids, row.fields[anchors[0]].id)
	}
	m.mu.Unlock()

	sort.Strings(ids)
	return page(ids, r.Skip, r.Limit), nil
}

func (m *Memory) RowOf(_ context.Context, handle string) (model.JoinRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byField[handle]
	if !ok {
		return model.JoinRow{}, fmt.Errorf("%w: field %q", core.ErrNotFound, handle)
	}
	return r.view(), nil
}

func (m *Memory) JoinCandidates(_ context.Context, column, value string, exclude []string, limit int) ([]model.JoinRow, error) {
	skip := map[string]bool{}
	for _, id := range exclude {
		skip[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.JoinRow
	for _, r := range m.rows {
		if len(out) >= limit {
			break
		}
		if skip[r.id] {
			continue
		}
		for _, f := range r.fields {
			if f.column == column && f.value == value {
				out = append(out, r.view())
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) Columns(_ context.Context) ([]string, error) {
	m.mu.Lock()
	seen := map[string]bool{}
	for _, r := range m.rows {
		for _, f := range r.fields {
			seen[f.column] = true
		}
	}
	m.mu.Unlock()

	cols := make([]string, 0, len(seen))
	for c := range seen {
		if store.IsColumnLabel(c) {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols, nil
}

func (m *Memory) CreateMatch(_ context.Context, match model.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[match.Name]; ok {
		return fmt.Errorf("%w: match %q already exists", core.ErrConflict, match.Name)
	}
	m.matches[match.Name] = match
	return nil
}

func (m *Memory) GetMatch(_ context.Context, name string) (model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[name]
	if !ok {
		return model.Match{}, fmt.Errorf("%w: match %q", core.ErrNotFound, name)
	}
	return match, nil
}

func (m *Memory) UpdateMatchProgress(_ context.Context, name string, processed int64) (model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[name]
	if !ok {
		return model.Match{}, fmt.Errorf("%w: match %q", core.ErrNotFound, name)
	}
	match.Processed = processed
	m.matches[name] = match
	return match, nil
}

func (m *Memory) CompleteMatch(_ context.Context, name, errMsg string) (model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[name]
	if !ok {
		return model.Match{}, fmt.Errorf("%w: match %q", core.ErrNotFound, name)
	}
	match.Completed = true
	if errMsg != "" {
		match.Error = errMsg
	}
	m.matches[name] = match
	return match, nil
}

func (m *Memory) ListMatches(_ context.Context, skip, limit int) ([]model.Match, error) {
	m.mu.Lock()
	out := make([]model.Match, 0, len(m.matches))
	for _, match := range m.matches {
		out = append(out, match)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeStamp != out[j].TimeStamp {
			return out[i].TimeStamp > out[j].TimeStamp
		}
		return out[i].Name < out[j].Name
	})
	return page(out, skip, limit), nil
}

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
