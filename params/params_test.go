package params

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndColumn(t *testing.T) {
	table := New(3)
	require.NoError(t, table.Append([]float64{1, 2, 3}))
	require.NoError(t, table.Append([]float64{4, 5, 6}))

	col, err := table.Column(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, col)

	_, err = table.Column(3)
	assert.Error(t, err)
	_, err = table.Column(-1)
	assert.Error(t, err)
}

func TestAppendWrongLength(t *testing.T) {
	table := New(3)
	assert.Error(t, table.Append([]float64{1, 2}))
}

func TestColumnOfEmptyTable(t *testing.T) {
	table := New(2)
	_, err := table.Column(0)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestHeader(t *testing.T) {
	table := New(4)
	assert.Equal(t, []string{"w1", "w2", "w3", "w4"}, table.Header())
}

func TestRoundTrip(t *testing.T) {
	table := New(3)
	require.NoError(t, table.Append([]float64{0.1, -2.5e-7, 3}))
	require.NoError(t, table.Append([]float64{1.0 / 3.0, 42, -0.000123456789012345}))

	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))

	parsed, err := Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, table.Order, parsed.Order)
	assert.Equal(t, table.Rows, parsed.Rows)
}

func TestWriteFileReadFile(t *testing.T) {
	table := New(2)
	require.NoError(t, table.Append([]float64{1.5, -3}))

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, table.WriteFile(path))

	parsed, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, table.Rows, parsed.Rows)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "w1,w2\n"))
}

func TestReadRejectsNonNumeric(t *testing.T) {
	_, err := Read(strings.NewReader("w1,w2\n1,foo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "w2")
}

func TestReadEmpty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoRows)
}
