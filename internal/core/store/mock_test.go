package store

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	ReadRouted    bool
	Indexed       []string
	MockResult    neo4j.EagerResult
	Err           error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	m.ReadRouted = false
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) ExecuteRead(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	res, err := m.ExecuteQuery(ctx, query, params)
	m.ReadRouted = true
	return res, err
}

func (m *MockDriver) EnsureIndex(ctx context.Context, label string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Indexed = append(m.Indexed, label)
	return nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func record(keys []string, values ...interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func node(props map[string]interface{}, labels ...string) neo4j.Node {
	return neo4j.Node{ElementId: "4:test:1", Labels: labels, Props: props}
}
