package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	ExecuteRead(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	// EnsureIndex creates a `value` lookup index for label if it does not exist.
	EnsureIndex(ctx context.Context, label string) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
