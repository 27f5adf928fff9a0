package store

import (
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
)

func nodeOf(rec *neo4j.Record, key string) (neo4j.Node, error) {
	v, ok := rec.Get(key)
	if !ok {
		return neo4j.Node{}, fmt.Errorf("%w: record has no %q", core.ErrStorage, key)
	}
	n, ok := v.(neo4j.Node)
	if !ok {
		return neo4j.Node{}, fmt.Errorf("%w: %q is %T, not a node", core.ErrStorage, key, v)
	}
	return n, nil
}

func str(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func num(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func decodeUpload(rec *neo4j.Record, key string) (model.Upload, error) {
	n, err := nodeOf(rec, key)
	if err != nil {
		return model.Upload{}, err
	}
	u := model.Upload{
		Name:      str(n.Props, "name"),
		Processed: num(n.Props, "processed"),
		OutOf:     num(n.Props, "outOf"),
		TimeStamp: num(n.Props, "timeStamp"),
		Status:    model.UploadStatus(str(n.Props, "status")),
	}
	if raw := str(n.Props, "mappings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &u.Mappings); err != nil {
			return model.Upload{}, fmt.Errorf("%w: upload %q has malformed mappings: %w", core.ErrStorage, u.Name, err)
		}
	}
	return u, nil
}

func decodeMatch(rec *neo4j.Record, key string) (model.Match, error) {
	n, err := nodeOf(rec, key)
	if err != nil {
		return model.Match{}, err
	}
	completed, _ := n.Props["completed"].(bool)
	return model.Match{
		Name:      str(n.Props, "name"),
		Processed: num(n.Props, "processed"),
		OutOf:     num(n.Props, "outOf"),
		Completed: completed,
		TimeStamp: num(n.Props, "timeStamp"),
		Error:     str(n.Props, "error"),
	}, nil
}

// decodeRows groups (row, labels, value) records into rows, keeping the
// record order.
func decodeRows(records []*neo4j.Record) []model.JoinRow {
	var rows []model.JoinRow
	for _, rec := range records {
		rv, _ := rec.Get("row")
		rowID, _ := rv.(string)
		lv, _ := rec.Get("labels")
		labels, _ := lv.([]interface{})
		if len(labels) == 0 {
			continue
		}
		column, _ := labels[0].(string)
		vv, _ := rec.Get("value")
		value, _ := vv.(string)

		if len(rows) == 0 || rows[len(rows)-1].RowID != rowID {
			rows = append(rows, model.JoinRow{RowID: rowID})
		}
		last := &rows[len(rows)-1]
		last.Fields = append(last.Fields, model.Field{Column: column, Value: value})
	}
	return rows
}
