package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/tabgraph/internal/core"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpenCommaWithHeader(t *testing.T) {
	src, err := Open(writeFile(t, "FirstName,LastName,Email\nJon,Smith,jon@x.com\nAnn,Lee,ann@x.com\n"), false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "comma+header", src.Dialect().String())
	assert.Equal(t, []string{"FirstName", "LastName", "Email"}, src.Header())
	assert.Equal(t, int64(2), src.TotalRows())
	assert.NotZero(t, src.Timestamp())

	require.True(t, src.Next())
	assert.Equal(t, "Jon", src.Row().Value("FirstName"))
	assert.Equal(t, "jon@x.com", src.Row().Value("Email"))
	assert.Equal(t, "", src.Row().Value("Missing"))
	assert.Equal(t, int64(1), src.CurrentRow())

	require.True(t, src.Next())
	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
	assert.Equal(t, int64(2), src.CurrentRow())
}

func TestOpenDetectsSemicolon(t *testing.T) {
	src, err := Open(writeFile(t, "a;b\n1;2\n3;4\n5;6\n"), false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "semicolon+header", src.Dialect().String())
	assert.Equal(t, int64(3), src.TotalRows())
}

func TestOpenDetectsTab(t *testing.T) {
	src, err := Open(writeFile(t, "name\tcity\nbo\tparis\n"), false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "tab+header", src.Dialect().String())
	require.True(t, src.Next())
	assert.Equal(t, "paris", src.Row().Value("city"))
}

func TestOpenFallsBackToNoHeader(t *testing.T) {
	src, err := Open(writeFile(t, "x,x\n1,2\n"), false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "comma", src.Dialect().String())
	assert.Equal(t, int64(2), src.TotalRows())
	require.True(t, src.Next())
	assert.Equal(t, "x", src.Row().Value("1"))
}

func TestOpenStripsBOM(t *testing.T) {
	src, err := Open(writeFile(t, "\ufeffid,name\n1,a\n"), false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"id", "name"}, src.Header())
}

func TestOpenEmptyFileFails(t *testing.T) {
	_, err := Open(writeFile(t, ""), false)
	assert.ErrorIs(t, err, core.ErrSourceFormat)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrSourceFormat)
}

func TestValueFallsBackToIndex(t *testing.T) {
	src, err := Open(writeFile(t, "a,b\n,two\n"), false)
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Next())
	row := src.Row()
	assert.Equal(t, "two", row.Value("b"))
	assert.Equal(t, "two", row.Value("1"))
	assert.Equal(t, "", row.Value("a"))
	assert.Equal(t, "", row.Value("7"))
}

func TestBulkAndSkip(t *testing.T) {
	src, err := Open(writeFile(t, "n,v\n1,a\n2,b\n3,c\n4,d\n5,e\n"), false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, int64(2), src.Skip(2))
	rows := src.Bulk(2)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0].Value("n"))
	assert.Equal(t, "4", rows[1].Value("n"))

	rows = src.Bulk(10)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), src.CurrentRow())
	assert.Equal(t, int64(0), src.Skip(3))
}

func TestCloseDeletesFile(t *testing.T) {
	path := writeFile(t, "a,b\n1,2\n")
	src, err := Open(path, true)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, src.Close())
}

func TestCloseKeepsFile(t *testing.T) {
	path := writeFile(t, "a,b\n1,2\n")
	src, err := Open(path, false)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
