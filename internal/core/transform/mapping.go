package transform

import (
	"fmt"
	"strings"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
)

// ValueSource resolves a source column of the current row; missing columns yield "".
type ValueSource interface {
	Value(column string) string
}

// ParseMapping parses `src1|src2:destination:transform1:transform2...`.
func ParseMapping(raw string) (model.Mapping, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return model.Mapping{}, fmt.Errorf("%w: mapping %q needs source and destination", core.ErrValidation, raw)
	}

	var sources []string
	for _, s := range strings.Split(parts[0], "|") {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return model.Mapping{}, fmt.Errorf("%w: mapping %q has no source column", core.ErrValidation, raw)
	}

	dest := Normalize(strings.ToLower(parts[1]))
	if dest == "" {
		return model.Mapping{}, fmt.Errorf("%w: mapping %q has no destination column", core.ErrValidation, raw)
	}

	m := model.Mapping{SourceColumns: sources, DestinationColumn: dest}
	for _, name := range parts[2:] {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t, err := ParseTransform(name)
		if err != nil {
			return model.Mapping{}, err
		}
		m.Transformations = append(m.Transformations, t)
	}
	return m, nil
}

func ParseMappings(raw []string) ([]model.Mapping, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one mapping is required", core.ErrValidation)
	}
	mappings := make([]model.Mapping, 0, len(raw))
	for _, r := range raw {
		m, err := ParseMapping(r)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// Value computes the destination value of m for one row. Validation
// failures degrade to "".
func Value(m model.Mapping, row ValueSource) string {
	vals := make([]string, len(m.SourceColumns))
	for i, c := range m.SourceColumns {
		vals[i] = row.Value(c)
	}
	v := Apply(strings.Join(vals, " "), m.Transformations)
	return validateByName(v, append([]string{m.DestinationColumn}, m.SourceColumns...)...)
}

// Values maps a row through every mapping, in mapping order.
func Values(ms []model.Mapping, row ValueSource) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = Value(m, row)
	}
	return out
}
