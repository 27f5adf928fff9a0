// Package blob stores named byte streams: source files kept for resumable
// ingestion, export artifacts and persisted search definitions.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/agenthands/tabgraph/internal/core"
)

type Store interface {
	Put(ctx context.Context, name string, r io.Reader) error
	// Get fails with core.ErrNotFound for unknown names.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// checkName rejects names that could escape their bucket.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: invalid object name %q", core.ErrValidation, name)
	}
	return nil
}
