// Package store persists uploads, rows and match progress in a property
// graph and answers the seed and join lookups of the read path.
package store

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
)

// Graph is the storage contract of the ingestion, search and match
// pipelines. Lookups of unknown names fail with core.ErrNotFound; creating
// an existing name fails with core.ErrConflict.
type Graph interface {
	EnsureValueIndex(ctx context.Context, column string) error

	CreateUpload(ctx context.Context, u model.Upload) error
	GetUpload(ctx context.Context, name string) (model.Upload, error)
	ListUploads(ctx context.Context, finished bool, skip, limit int) ([]model.Upload, error)
	// WriteBatch sets the upload's processed counter and creates one Row per
	// entry of rows, each owning one Field per column, in one transaction.
	WriteBatch(ctx context.Context, upload string, processed int64, columns []string, rows [][]string) error
	FinishUpload(ctx context.Context, name string, status model.UploadStatus, processed int64) error

	// SeedSearch returns one Field handle per matching Row, in handle order.
	SeedSearch(ctx context.Context, r query.Request) ([]string, error)
	// RowOf returns the Row owning the Field with the given handle.
	RowOf(ctx context.Context, handle string) (model.JoinRow, error)
	// JoinCandidates returns up to limit Rows, other than exclude, owning a
	// Field of column equal to value, ordered by Row handle.
	JoinCandidates(ctx context.Context, column, value string, exclude []string, limit int) ([]model.JoinRow, error)
	// Columns lists the Field labels known to the graph, sorted.
	Columns(ctx context.Context) ([]string, error)

	CreateMatch(ctx context.Context, m model.Match) error
	GetMatch(ctx context.Context, name string) (model.Match, error)
	// UpdateMatchProgress writes processed and returns the re-read entity.
	UpdateMatchProgress(ctx context.Context, name string, processed int64) (model.Match, error)
	// CompleteMatch sets completed; a non-empty errMsg is recorded too.
	CompleteMatch(ctx context.Context, name, errMsg string) (model.Match, error)
	ListMatches(ctx context.Context, skip, limit int) ([]model.Match, error)
}

// IsColumnLabel reports whether a graph label names a Field column.
// Structural labels (Upload, Row, Match) start with an upper-case letter.
func IsColumnLabel(label string) bool {
	r, size := utf8.DecodeRuneInString(label)
	return size > 0 && !unicode.IsUpper(r)
}
