package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agenthands/tabgraph/internal/blob"
	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
)

// Definitions keeps search and match definitions as YAML documents, one
// per export name. A definition is written once and never replaced.
type Definitions struct {
	Store blob.Store

	mu sync.Mutex
}

// Create stores def under name, failing with core.ErrConflict if a
// definition already exists.
func (d *Definitions) Create(ctx context.Context, name string, def model.SearchDefinition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition %q: %w", name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	exists, err := d.Store.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: search definition %q already exists", core.ErrConflict, name)
	}
	return d.Store.Put(ctx, name, bytes.NewReader(data))
}

func (d *Definitions) Exists(ctx context.Context, name string) (bool, error) {
	return d.Store.Exists(ctx, name)
}

func (d *Definitions) Load(ctx context.Context, name string) (model.SearchDefinition, error) {
	rc, err := d.Store.Get(ctx, name)
	if err != nil {
		return model.SearchDefinition{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return model.SearchDefinition{}, fmt.Errorf("%w: read definition %q: %w", core.ErrStorage, name, err)
	}
	var def model.SearchDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return model.SearchDefinition{}, fmt.Errorf("%w: decode definition %q: %w", core.ErrStorage, name, err)
	}
	return def, nil
}
