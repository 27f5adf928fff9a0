package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAddDeduplicates(t *testing.T) {
	r := Record{}
	r.Add("email", "a@x.com")
	r.Add("email", "a@x.com")
	r.Add("email", "b@x.com")

	assert.Equal(t, []string{"a@x.com", "b@x.com"}, r["email"])
}

func TestRecordColumnsSkipsID(t *testing.T) {
	r := Record{IDKey: {"4:abc:1"}}
	r.Merge([]Field{{Column: "last", Value: "doe"}, {Column: "first", Value: "john"}})

	assert.Equal(t, []string{"first", "last"}, r.Columns())
	assert.Equal(t, "4:abc:1", r.ID())
}

func TestParsePredicate(t *testing.T) {
	p, err := ParsePredicate("")
	assert.NoError(t, err)
	assert.Equal(t, PredicateAnd, p)

	p, err = ParsePredicate("or")
	assert.NoError(t, err)
	assert.Equal(t, PredicateOr, p)

	_, err = ParsePredicate("xor")
	assert.Error(t, err)
}
