package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueIndexQuery(t *testing.T) {
	q := ValueIndexQuery("email")
	assert.Regexp(t, "^CREATE INDEX `value_email_[0-9a-f]{8}` IF NOT EXISTS FOR \\(n:`email`\\) ON \\(n.value\\)$", q)
}

func TestValueIndexQueryEscapesLabel(t *testing.T) {
	q := ValueIndexQuery("first name`x")
	assert.Contains(t, q, "FOR (n:`first name``x`)")
	assert.Contains(t, q, "`value_first_name_x_")
}

func TestValueIndexQueryDistinctNames(t *testing.T) {
	assert.NotEqual(t, ValueIndexQuery("first name"), ValueIndexQuery("first_name"))
}
