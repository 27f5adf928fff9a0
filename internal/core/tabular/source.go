package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agenthands/tabgraph/internal/core"
)

// Row is one data record of a Source.
type Row struct {
	fields []string
	index  map[string]int
}

// Value looks a column up by name. When the name is unknown or its value
// blank, a numeric name is retried as a positional index. Missing columns
// yield "".
func (r Row) Value(column string) string {
	if i, ok := r.index[column]; ok && i < len(r.fields) && strings.TrimSpace(r.fields[i]) != "" {
		return r.fields[i]
	}
	if i, err := strconv.Atoi(strings.TrimSpace(column)); err == nil && i >= 0 && i < len(r.fields) {
		return r.fields[i]
	}
	return ""
}

func (r Row) Fields() []string {
	return r.fields
}

// Source streams the rows of a delimited file whose dialect was detected at
// open time.
type Source struct {
	path          string
	deleteOnClose bool
	file          *os.File
	reader        *csv.Reader
	dialect       Dialect
	header        []string
	index         map[string]int
	total         int64
	current       int64
	timestamp     int64
	row           Row
	err           error
}

// Open detects the dialect of the file at path, counts its rows, and
// positions the Source before the first data row.
func Open(path string, deleteOnClose bool) (*Source, error) {
	dialect, header, total, err := detect(path)
	if err != nil {
		if deleteOnClose {
			os.Remove(path)
		}
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source '%s': %w", path, err)
	}

	s := &Source{
		path:          path,
		deleteOnClose: deleteOnClose,
		file:          f,
		reader:        dialect.reader(f),
		dialect:       dialect,
		header:        header,
		index:         make(map[string]int, len(header)),
		total:         total,
		timestamp:     time.Now().UnixMilli(),
	}
	for i, name := range header {
		s.index[name] = i
	}
	if dialect.Header {
		if _, err := s.reader.Read(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read header of '%s': %w", path, err)
		}
	}
	return s, nil
}

func detect(path string) (Dialect, []string, int64, error) {
	var errs []error
	for _, d := range dialects {
		header, total, err := probeFile(path, d)
		if err == nil {
			return d, header, total, nil
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return Dialect{}, nil, 0, fmt.Errorf("failed to open source '%s': %w", path, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", d, err))
	}
	return Dialect{}, nil, 0, fmt.Errorf("%w: %s: %w", core.ErrSourceFormat, path, errors.Join(errs...))
}

func probeFile(path string, d Dialect) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return d.probe(f)
}

// Next advances to the next row. It returns false at the end of the
// source or on error; check Err afterwards.
func (s *Source) Next() bool {
	if s.err != nil || s.reader == nil {
		return false
	}
	fields, err := s.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		s.err = fmt.Errorf("failed to read row %d of '%s': %w", s.current+1, s.path, err)
		return false
	}
	s.current++
	s.row = Row{fields: fields, index: s.index}
	return true
}

func (s *Source) Row() Row {
	return s.row
}

func (s *Source) Err() error {
	return s.err
}

// Bulk returns up to n rows; fewer means the source is exhausted or failed.
func (s *Source) Bulk(n int) []Row {
	rows := make([]Row, 0, n)
	for len(rows) < n && s.Next() {
		rows = append(rows, s.row)
	}
	return rows
}

// Skip consumes up to n rows without returning them, and reports how many
// were skipped.
func (s *Source) Skip(n int64) int64 {
	var skipped int64
	for skipped < n && s.Next() {
		skipped++
	}
	return skipped
}

// CurrentRow is the number of data rows consumed so far.
func (s *Source) CurrentRow() int64 { return s.current }

func (s *Source) TotalRows() int64 { return s.total }

// Timestamp is the open time in Unix milliseconds.
func (s *Source) Timestamp() int64 { return s.timestamp }

func (s *Source) Header() []string { return s.header }

func (s *Source) Dialect() Dialect { return s.dialect }

func (s *Source) Path() string { return s.path }

// Close releases the file and removes it when the Source was opened with
// deleteOnClose.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.reader = nil
	if s.deleteOnClose {
		if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}
