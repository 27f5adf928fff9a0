// Package export writes search results as CSV artifacts and persists the
// definitions that produced them.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agenthands/tabgraph/internal/core/model"
)

// Writer emits fixed-width CSV rows keyed by a column catalog.
type Writer struct {
	csv     *csv.Writer
	index   map[string]int
	width   int
	Dropped int
}

// NewWriter writes the header row immediately.
func NewWriter(w io.Writer, columns []string) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Writer{csv: cw, index: index, width: len(columns)}, nil
}

// Write emits one record. Absent columns are empty, multi-valued ones a
// JSON array. Columns outside the catalog are counted in Dropped.
func (w *Writer) Write(rec model.Record) error {
	row := make([]string, w.width)
	for col, vals := range rec {
		if col == model.IDKey {
			continue
		}
		i, ok := w.index[col]
		if !ok {
			w.Dropped++
			continue
		}
		switch len(vals) {
		case 0:
		case 1:
			row[i] = vals[0]
		default:
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(vals); err != nil {
				return err
			}
			row[i] = strings.TrimSuffix(buf.String(), "\n")
		}
	}
	return w.csv.Write(row)
}

func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}
