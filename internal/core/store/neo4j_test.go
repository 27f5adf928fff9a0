package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/driver"
)

func TestCreateUpload(t *testing.T) {
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"u"}, node(nil, "Upload"))}},
	}
	s := NewNeo4j(mockDriver)

	err := s.CreateUpload(context.Background(), model.Upload{
		Name:     "people",
		OutOf:    3,
		Status:   model.StatusProcessing,
		Mappings: []model.Mapping{{SourceColumns: []string{"Email"}, DestinationColumn: "email"}},
	})
	require.NoError(t, err)

	assert.Equal(t, driver.CreateUploadQuery, mockDriver.QueryExecuted)
	assert.Equal(t, "people", mockDriver.QueryParams["name"])
	assert.Equal(t, int64(3), mockDriver.QueryParams["outOf"])
	assert.Equal(t, "PROCESSING", mockDriver.QueryParams["status"])
	assert.Contains(t, mockDriver.QueryParams["mappings"], `"destinationColumn":"email"`)
}

func TestCreateUploadConflict(t *testing.T) {
	s := NewNeo4j(&MockDriver{})

	err := s.CreateUpload(context.Background(), model.Upload{Name: "people"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestGetUploadDecodes(t *testing.T) {
	props := map[string]interface{}{
		"name":      "people",
		"processed": int64(10),
		"outOf":     int64(12),
		"timeStamp": int64(1700000000000),
		"status":    "PROCESSING",
		"mappings":  `[{"sourceColumns":["First","Last"],"destinationColumn":"full","transformations":["lowercase"]}]`,
	}
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"u"}, node(props, "Upload"))}},
	}
	s := NewNeo4j(mockDriver)

	u, err := s.GetUpload(context.Background(), "people")
	require.NoError(t, err)
	assert.True(t, mockDriver.ReadRouted)
	assert.Equal(t, int64(10), u.Processed)
	assert.Equal(t, int64(12), u.OutOf)
	assert.Equal(t, model.StatusProcessing, u.Status)
	require.Len(t, u.Mappings, 1)
	assert.Equal(t, []string{"First", "Last"}, u.Mappings[0].SourceColumns)
	assert.Equal(t, []model.Transform{model.TransformLowercase}, u.Mappings[0].Transformations)
}

func TestGetUploadNotFound(t *testing.T) {
	s := NewNeo4j(&MockDriver{})

	_, err := s.GetUpload(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListUploadsChoosesQuery(t *testing.T) {
	mockDriver := &MockDriver{}
	s := NewNeo4j(mockDriver)

	_, err := s.ListUploads(context.Background(), false, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, driver.ListUnfinishedUploadsQuery, mockDriver.QueryExecuted)

	_, err = s.ListUploads(context.Background(), true, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, driver.ListFinishedUploadsQuery, mockDriver.QueryExecuted)
	assert.Equal(t, 5, mockDriver.QueryParams["skip"])
}

func TestWriteBatch(t *testing.T) {
	mockDriver := &MockDriver{}
	s := NewNeo4j(mockDriver)

	err := s.WriteBatch(context.Background(), "people", 2, []string{"first", "e mail"}, [][]string{{"jon", "jon@x.com"}, {"ann", ""}})
	require.NoError(t, err)

	assert.Contains(t, mockDriver.QueryExecuted, "SET upload.processed = $processed")
	assert.Contains(t, mockDriver.QueryExecuted, "CREATE (r)-[:OWNS]->(:`first` {value: row.values[0]})")
	assert.Contains(t, mockDriver.QueryExecuted, "CREATE (r)-[:OWNS]->(:`e mail` {value: row.values[1]})")
	assert.Equal(t, int64(2), mockDriver.QueryParams["processed"])

	rows := mockDriver.QueryParams["rows"].([]interface{})
	require.Len(t, rows, 2)
	second := rows[1].(map[string]interface{})
	assert.Equal(t, []string{"ann", ""}, second["values"])
	assert.NotEmpty(t, second["rowId"])
}

func TestWriteBatchArity(t *testing.T) {
	s := NewNeo4j(&MockDriver{})

	err := s.WriteBatch(context.Background(), "people", 1, []string{"first", "last"}, [][]string{{"jon"}})
	assert.Error(t, err)
}

func TestWriteBatchStorageError(t *testing.T) {
	s := NewNeo4j(&MockDriver{Err: fmt.Errorf("db error")})

	err := s.WriteBatch(context.Background(), "people", 1, []string{"first"}, [][]string{{"jon"}})
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Contains(t, err.Error(), "db error")
}

func TestCreateConstraintViolationConflicts(t *testing.T) {
	violation := &neo4j.Neo4jError{
		Code: "Neo.ClientError.Schema.ConstraintValidationFailed",
		Msg:  "Node already exists with label `Upload` and property `name` = 'people'",
	}
	s := NewNeo4j(&MockDriver{Err: fmt.Errorf("execute: %w", violation)})

	err := s.CreateUpload(context.Background(), model.Upload{Name: "people"})
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.NotErrorIs(t, err, core.ErrStorage)

	err = s.CreateMatch(context.Background(), model.Match{Name: "exp"})
	assert.ErrorIs(t, err, core.ErrConflict)

	other := &neo4j.Neo4jError{Code: "Neo.TransientError.Transaction.DeadlockDetected"}
	s = NewNeo4j(&MockDriver{Err: other})
	err = s.CreateUpload(context.Background(), model.Upload{Name: "people"})
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.NotErrorIs(t, err, core.ErrConflict)
}

func TestSeedSearchUsesCompiledQuery(t *testing.T) {
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
			record([]string{"id"}, "4:abc:1"),
			record([]string{"id"}, "4:abc:7"),
		}},
	}
	s := NewNeo4j(mockDriver)

	r, err := query.Build([]string{"email:jon@x.com"}, model.PredicateAnd, []string{"people"}, 0, 10)
	require.NoError(t, err)

	ids, err := s.SeedSearch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{"4:abc:1", "4:abc:7"}, ids)
	assert.Equal(t, "jon@x.com", mockDriver.QueryParams["p0"])
	assert.Equal(t, []string{"people"}, mockDriver.QueryParams["uploads"])
	assert.True(t, mockDriver.ReadRouted)
}

func TestRowOfGroupsFields(t *testing.T) {
	keys := []string{"row", "labels", "value"}
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
			record(keys, "4:abc:0", []interface{}{"first"}, "jon"),
			record(keys, "4:abc:0", []interface{}{"email"}, "jon@x.com"),
		}},
	}
	s := NewNeo4j(mockDriver)

	row, err := s.RowOf(context.Background(), "4:abc:1")
	require.NoError(t, err)
	assert.Equal(t, "4:abc:0", row.RowID)
	assert.Equal(t, []model.Field{{Column: "first", Value: "jon"}, {Column: "email", Value: "jon@x.com"}}, row.Fields)
	assert.Equal(t, "4:abc:1", mockDriver.QueryParams["id"])
}

func TestRowOfNotFound(t *testing.T) {
	s := NewNeo4j(&MockDriver{})

	_, err := s.RowOf(context.Background(), "4:abc:1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestJoinCandidates(t *testing.T) {
	keys := []string{"row", "labels", "value"}
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
			record(keys, "4:abc:10", []interface{}{"email"}, "jon@x.com"),
			record(keys, "4:abc:20", []interface{}{"email"}, "jon@x.com"),
			record(keys, "4:abc:20", []interface{}{"phone"}, "55512"),
		}},
	}
	s := NewNeo4j(mockDriver)

	rows, err := s.JoinCandidates(context.Background(), "email", "jon@x.com", nil, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[1].Fields, 2)
	assert.Contains(t, mockDriver.QueryExecuted, "(n:`email`)")
	assert.Equal(t, []string{}, mockDriver.QueryParams["exclude"])
	assert.Equal(t, 2, mockDriver.QueryParams["rows"])
}

func TestColumnsFiltersStructuralLabels(t *testing.T) {
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{
			record([]string{"label"}, "Match"),
			record([]string{"label"}, "Row"),
			record([]string{"label"}, "Upload"),
			record([]string{"label"}, "email"),
			record([]string{"label"}, "first"),
		}},
	}
	s := NewNeo4j(mockDriver)

	cols, err := s.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "first"}, cols)
}

func TestMatchLifecycleQueries(t *testing.T) {
	props := map[string]interface{}{
		"name": "exp", "processed": int64(4), "outOf": int64(9), "completed": true, "timeStamp": int64(1), "error": "",
	}
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{record([]string{"m"}, node(props, "Match"))}},
	}
	s := NewNeo4j(mockDriver)
	ctx := context.Background()

	require.NoError(t, s.CreateMatch(ctx, model.Match{Name: "exp", OutOf: 9}))
	assert.Equal(t, driver.CreateMatchQuery, mockDriver.QueryExecuted)

	m, err := s.UpdateMatchProgress(ctx, "exp", 4)
	require.NoError(t, err)
	assert.Equal(t, driver.UpdateMatchProgressQuery, mockDriver.QueryExecuted)
	assert.False(t, mockDriver.ReadRouted)
	assert.True(t, m.Completed)
	assert.Equal(t, int64(4), m.Processed)

	_, err = s.CompleteMatch(ctx, "exp", "boom")
	require.NoError(t, err)
	assert.Equal(t, "boom", mockDriver.QueryParams["error"])

	list, err := s.ListMatches(ctx, 0, 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetMatchNotFound(t *testing.T) {
	s := NewNeo4j(&MockDriver{})

	_, err := s.GetMatch(context.Background(), "exp")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEnsureValueIndex(t *testing.T) {
	mockDriver := &MockDriver{}
	s := NewNeo4j(mockDriver)

	require.NoError(t, s.EnsureValueIndex(context.Background(), "email"))
	assert.Equal(t, []string{"email"}, mockDriver.Indexed)
}

func TestIsColumnLabel(t *testing.T) {
	assert.True(t, IsColumnLabel("email"))
	assert.True(t, IsColumnLabel("1st"))
	assert.False(t, IsColumnLabel("Upload"))
	assert.False(t, IsColumnLabel(""))
}
