package transform

import (
	"fmt"
	"strings"

	"github.com/agenthands/tabgraph/internal/core"
	"github.com/agenthands/tabgraph/internal/core/model"
)

const quoteChars = "\"'`"

var transforms = map[model.Transform]func(string) string{
	model.TransformLowercase: strings.ToLower,
	model.TransformUppercase: strings.ToUpper,
	model.TransformTrim:      strings.TrimSpace,
	model.TransformNormalize: Normalize,
}

var aliases = map[string]model.Transform{
	"lowercase": model.TransformLowercase,
	"tlc":       model.TransformLowercase,
	"uppercase": model.TransformUppercase,
	"tuc":       model.TransformUppercase,
	"trim":      model.TransformTrim,
	"normalize": model.TransformNormalize,
	"nrm":       model.TransformNormalize,
}

// ParseTransform resolves a transformation name or its short alias.
func ParseTransform(name string) (model.Transform, error) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: unknown transformation %q", core.ErrValidation, name)
	}
	return t, nil
}

// Apply runs the transformations over s in order.
func Apply(s string, ts []model.Transform) string {
	for _, t := range ts {
		if fn, ok := transforms[t]; ok {
			s = fn(s)
		}
	}
	return s
}

// Normalize collapses whitespace runs to one space and strips quote
// characters surrounding each token.
func Normalize(s string) string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, quoteChars); f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}
