package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Dialect describes one way of reading a delimited file.
type Dialect struct {
	Name       string
	Comma      rune
	LazyQuotes bool
	Header     bool
	// MinColumns rejects a parse that yields fewer columns per record.
	MinColumns int
}

const unitSeparator = '\x1f'

var errNoRecords = errors.New("no records")

// dialects is tried in order; the first profile that parses wins.
var dialects = expand([]Dialect{
	{Name: "comma", Comma: ',', MinColumns: 2},
	{Name: "comma-lazy", Comma: ',', LazyQuotes: true, MinColumns: 2},
	{Name: "semicolon", Comma: ';', MinColumns: 2},
	{Name: "tab", Comma: '\t', LazyQuotes: true, MinColumns: 2},
	{Name: "pipe", Comma: '|', LazyQuotes: true, MinColumns: 2},
	{Name: "single", Comma: unitSeparator, LazyQuotes: true, MinColumns: 1},
})

// expand yields each dialect with a header row, followed by the same
// dialect without one.
func expand(base []Dialect) []Dialect {
	out := make([]Dialect, 0, len(base)*2)
	for _, d := range base {
		withHeader, without := d, d
		withHeader.Header = true
		without.Header = false
		out = append(out, withHeader, without)
	}
	return out
}

func (d Dialect) String() string {
	if d.Header {
		return d.Name + "+header"
	}
	return d.Name
}

func (d Dialect) reader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = d.Comma
	cr.LazyQuotes = d.LazyQuotes
	cr.FieldsPerRecord = 0
	return cr
}

// probe parses the whole stream and returns the header and the number of
// data rows.
func (d Dialect) probe(r io.Reader) ([]string, int64, error) {
	cr := d.reader(r)
	cr.ReuseRecord = true

	first, err := cr.Read()
	if err == io.EOF {
		return nil, 0, errNoRecords
	}
	if err != nil {
		return nil, 0, err
	}
	if len(first) < d.MinColumns {
		return nil, 0, fmt.Errorf("%d columns, want at least %d", len(first), d.MinColumns)
	}

	header, err := d.header(first)
	if err != nil {
		return nil, 0, err
	}

	var rows int64
	if !d.Header {
		rows = 1
	}
	for {
		_, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		rows++
	}
	return header, rows, nil
}

func (d Dialect) header(first []string) ([]string, error) {
	header := make([]string, len(first))
	if !d.Header {
		for i := range header {
			header[i] = fmt.Sprint(i)
		}
		return header, nil
	}

	seen := make(map[string]bool, len(first))
	for i, name := range first {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("header column %q is duplicated", name)
		}
		seen[name] = true
		header[i] = name
	}
	return header, nil
}
