package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/query"
	"github.com/agenthands/tabgraph/internal/driver"
)

type Neo4j struct {
	Driver driver.GraphDriver
}

func NewNeo4j(d driver.GraphDriver) *Neo4j {
	return &Neo4j{Driver: d}
}

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}

// createErr maps a uniqueness constraint violation, which a concurrent
// create can hit past the existence check, to a conflict.
func createErr(op, kind, name string, err error) error {
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) && nerr.Code == constraintViolation {
		return fmt.Errorf("%w: %s %q already exists", core.ErrConflict, kind, name)
	}
	return storageErr(op, err)
}

func (s *Neo4j) EnsureValueIndex(ctx context.Context, column string) error {
	if err := s.Driver.EnsureIndex(ctx, column); err != nil {
		return storageErr("ensure index", err)
	}
	return nil
}

func (s *Neo4j) CreateUpload(ctx context.Context, u model.Upload) error {
	mappings, err := json.Marshal(u.Mappings)
	if err != nil {
		return fmt.Errorf("failed to encode mappings: %w", err)
	}
	params := map[string]interface{}{
		"name":      u.Name,
		"processed": u.Processed,
		"outOf":     u.OutOf,
		"timeStamp": u.TimeStamp,
		"mappings":  string(mappings),
		"status":    string(u.Status),
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.CreateUploadQuery, params)
	if err != nil {
		return createErr("create upload", "upload", u.Name, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: upload %q already exists", core.ErrConflict, u.Name)
	}
	return nil
}

func (s *Neo4j) GetUpload(ctx context.Context, name string) (model.Upload, error) {
	res, err := s.Driver.ExecuteRead(ctx, driver.GetUploadQuery, map[string]interface{}{"name": name})
	if err != nil {
		return model.Upload{}, storageErr("get upload", err)
	}
	if len(res.Records) == 0 {
		return model.Upload{}, fmt.Errorf("%w: upload %q", core.ErrNotFound, name)
	}
	return decodeUpload(res.Records[0], "u")
}

func (s *Neo4j) ListUploads(ctx context.Context, finished bool, skip, limit int) ([]model.Upload, error) {
	q := driver.ListUnfinishedUploadsQuery
	if finished {
		q = driver.ListFinishedUploadsQuery
	}
	params := map[string]interface{}{
		"status": string(model.StatusProcessing),
		"skip":   skip,
		"limit":  limit,
	}
	res, err := s.Driver.ExecuteRead(ctx, q, params)
	if err != nil {
		return nil, storageErr("list uploads", err)
	}
	uploads := make([]model.Upload, 0, len(res.Records))
	for _, rec := range res.Records {
		u, err := decodeUpload(rec, "u")
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// WriteBatchQuery renders the batch write for the given Field labels.
func WriteBatchQuery(columns []string) string {
	var sb strings.Builder
	sb.WriteString(driver.WriteBatchHeader)
	for i, c := range columns {
		fmt.Fprintf(&sb, "\t\tCREATE (r)-[:OWNS]->(:%s {value: row.values[%d]})\n", query.QuoteLabel(c), i)
	}
	return sb.String()
}

func (s *Neo4j) WriteBatch(ctx context.Context, upload string, processed int64, columns []string, rows [][]string) error {
	batch := make([]interface{}, len(rows))
	for i, values := range rows {
		if len(values) != len(columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(values), len(columns))
		}
		batch[i] = map[string]interface{}{
			"rowId":  uuid.NewString(),
			"values": values,
		}
	}
	params := map[string]interface{}{
		"upload":    upload,
		"processed": processed,
		"rows":      batch,
	}
	if _, err := s.Driver.ExecuteQuery(ctx, WriteBatchQuery(columns), params); err != nil {
		return storageErr("write batch", err)
	}
	return nil
}

func (s *Neo4j) FinishUpload(ctx context.Context, name string, status model.UploadStatus, processed int64) error {
	params := map[string]interface{}{
		"name":      name,
		"status":    string(status),
		"processed": processed,
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.FinishUploadQuery, params)
	if err != nil {
		return storageErr("finish upload", err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: upload %q", core.ErrNotFound, name)
	}
	return nil
}

func (s *Neo4j) SeedSearch(ctx context.Context, r query.Request) ([]string, error) {
	cypher, params := query.Compile(r)
	res, err := s.Driver.ExecuteRead(ctx, cypher, params)
	if err != nil {
		return nil, storageErr("seed search", err)
	}
	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _ := rec.Get("id")
		if s, ok := id.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

func (s *Neo4j) RowOf(ctx context.Context, handle string) (model.JoinRow, error) {
	res, err := s.Driver.ExecuteRead(ctx, driver.RowFieldsQuery, map[string]interface{}{"id": handle})
	if err != nil {
		return model.JoinRow{}, storageErr("row fields", err)
	}
	rows := decodeRows(res.Records)
	if len(rows) == 0 {
		return model.JoinRow{}, fmt.Errorf("%w: field %q", core.ErrNotFound, handle)
	}
	return rows[0], nil
}

func (s *Neo4j) JoinCandidates(ctx context.Context, column, value string, exclude []string, limit int) ([]model.JoinRow, error) {
	if limit <= 0 {
		return nil, nil
	}
	if exclude == nil {
		exclude = []string{}
	}
	params := map[string]interface{}{
		"value":   value,
		"exclude": exclude,
		"rows":    limit,
	}
	res, err := s.Driver.ExecuteRead(ctx, fmt.Sprintf(driver.JoinCandidatesQuery, query.QuoteLabel(column)), params)
	if err != nil {
		return nil, storageErr("join candidates", err)
	}
	return decodeRows(res.Records), nil
}

func (s *Neo4j) Columns(ctx context.Context) ([]string, error) {
	res, err := s.Driver.ExecuteRead(ctx, driver.ListLabelsQuery, nil)
	if err != nil {
		return nil, storageErr("list labels", err)
	}
	var cols []string
	for _, rec := range res.Records {
		v, _ := rec.Get("label")
		if label, ok := v.(string); ok && IsColumnLabel(label) {
			cols = append(cols, label)
		}
	}
	return cols, nil
}

func (s *Neo4j) CreateMatch(ctx context.Context, m model.Match) error {
	params := map[string]interface{}{
		"name":      m.Name,
		"processed": m.Processed,
		"outOf":     m.OutOf,
		"completed": m.Completed,
		"timeStamp": m.TimeStamp,
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.CreateMatchQuery, params)
	if err != nil {
		return createErr("create match", "match", m.Name, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: match %q already exists", core.ErrConflict, m.Name)
	}
	return nil
}

func (s *Neo4j) matchQuery(ctx context.Context, op, q string, params map[string]interface{}, write bool) (model.Match, error) {
	var (
		res neo4j.EagerResult
		err error
	)
	if write {
		res, err = s.Driver.ExecuteQuery(ctx, q, params)
	} else {
		res, err = s.Driver.ExecuteRead(ctx, q, params)
	}
	if err != nil {
		return model.Match{}, storageErr(op, err)
	}
	if len(res.Records) == 0 {
		return model.Match{}, fmt.Errorf("%w: match %q", core.ErrNotFound, params["name"])
	}
	return decodeMatch(res.Records[0], "m")
}

func (s *Neo4j) GetMatch(ctx context.Context, name string) (model.Match, error) {
	return s.matchQuery(ctx, "get match", driver.GetMatchQuery, map[string]interface{}{"name": name}, false)
}

func (s *Neo4j) UpdateMatchProgress(ctx context.Context, name string, processed int64) (model.Match, error) {
	params := map[string]interface{}{"name": name, "processed": processed}
	return s.matchQuery(ctx, "update match progress", driver.UpdateMatchProgressQuery, params, true)
}

func (s *Neo4j) CompleteMatch(ctx context.Context, name, errMsg string) (model.Match, error) {
	params := map[string]interface{}{"name": name, "error": errMsg}
	return s.matchQuery(ctx, "complete match", driver.CompleteMatchQuery, params, true)
}

func (s *Neo4j) ListMatches(ctx context.Context, skip, limit int) ([]model.Match, error) {
	res, err := s.Driver.ExecuteRead(ctx, driver.ListMatchesQuery, map[string]interface{}{"skip": skip, "limit": limit})
	if err != nil {
		return nil, storageErr("list matches", err)
	}
	matches := make([]model.Match, 0, len(res.Records))
	for _, rec := range res.Records {
		m, err := decodeMatch(rec, "m")
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}
