package driver

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jDriver struct {
	Driver   neo4j.DriverWithContext
	Database string

	mu      sync.Mutex
	indexed map[string]bool
}

func NewNeo4jDriver(ctx context.Context, uri, username, password, database string) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	slog.Info("connected to neo4j", "uri", uri, "database", database)
	return &Neo4jDriver{Driver: driver, Database: database, indexed: map[string]bool{}}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) configurers(extra ...neo4j.ExecuteQueryConfigurationOption) []neo4j.ExecuteQueryConfigurationOption {
	if d.Database != "" {
		extra = append(extra, neo4j.ExecuteQueryWithDatabase(d.Database))
	}
	return extra
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer, d.configurers()...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *Neo4jDriver) ExecuteRead(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer,
		d.configurers(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute read query: %w", err)
	}
	return *result, nil
}

func (d *Neo4jDriver) EnsureIndex(ctx context.Context, label string) error {
	d.mu.Lock()
	done := d.indexed[label]
	d.mu.Unlock()
	if done {
		return nil
	}

	if _, err := d.ExecuteQuery(ctx, ValueIndexQuery(label), nil); err != nil {
		return fmt.Errorf("failed to create index for '%s': %w", label, err)
	}

	d.mu.Lock()
	d.indexed[label] = true
	d.mu.Unlock()
	return nil
}

// BuildIndices creates the uniqueness constraints for Upload and Match
// names. Failures are logged; the constraints may already exist under
// another name.
func (d *Neo4jDriver) BuildIndices(ctx context.Context) error {
	for _, q := range SchemaQueries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			slog.Warn("failed to apply schema statement", "query", q, "error", err)
		}
	}
	return nil
}

// ValueIndexQuery is the idempotent index statement for a Field label.
func ValueIndexQuery(label string) string {
	name := "value_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, label)
	h := fnv.New32a()
	h.Write([]byte(label))
	return fmt.Sprintf("CREATE INDEX `%s_%08x` IF NOT EXISTS FOR (n:`%s`) ON (n.value)",
		name, h.Sum32(), strings.ReplaceAll(label, "`", "``"))
}
