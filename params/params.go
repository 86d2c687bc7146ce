package params

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// FileName is the conventional name of a persisted coefficient table.
const FileName = "Params.csv"

var ErrNoRows = errors.New("coefficient table has no rows")

// Table is an ordered collection of fitted coefficient vectors, one
// row per discharge cycle and one column per polynomial weight. Row
// order is cycle order; the columns are named w1..wN when persisted.
type Table struct {
	Order int
	Rows  [][]float64
}

// New returns an empty table for coefficient vectors of the given
// length.
func New(order int) *Table {
	return &Table{Order: order}
}

// Append adds one cycle's coefficient vector as the last row.
func (t *Table) Append(coeffs []float64) error {
	if len(coeffs) != t.Order {
		return fmt.Errorf("coefficient vector has length %d, table expects %d", len(coeffs), t.Order)
	}
	t.Rows = append(t.Rows, coeffs)
	return nil
}

// Column returns one coefficient's trajectory across all cycles.
// Columns are 0-based, so column k holds the weights named w(k+1).
func (t *Table) Column(k int) ([]float64, error) {
	if k < 0 || k >= t.Order {
		return nil, fmt.Errorf("column %d out of range, table has %d columns", k, t.Order)
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoRows
	}
	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[k]
	}
	return values, nil
}

// Header returns the column names w1..wN.
func (t *Table) Header() []string {
	header := make([]string, t.Order)
	for k := range header {
		header[k] = fmt.Sprintf("w%d", k+1)
	}
	return header
}

// Write writes the table as CSV with a w1..wN header row. Values are
// formatted with the shortest representation that parses back to the
// same float64, so a write/read round trip is exact.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header()); err != nil {
		return err
	}
	record := make([]string, t.Order)
	for _, row := range t.Rows {
		for k, v := range row {
			record[k] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes the table to path, creating or replacing the file.
func (t *Table) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating coefficient table: %w", err)
	}
	if err := t.Write(file); err != nil {
		file.Close()
		return fmt.Errorf("writing coefficient table to %s: %w", path, err)
	}
	return file.Close()
}

// Read parses a coefficient table from r. The column count is taken
// from the header row and every data row must be fully numeric.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("reading coefficient table header: %w", err)
	}

	table := New(len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading coefficient table: %w", err)
		}
		row := make([]float64, len(record))
		for k, field := range record {
			row[k], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %s value %q in row %d: %w", header[k], field, len(table.Rows)+1, err)
			}
		}
		if err := table.Append(row); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// ReadFile parses the coefficient table at path.
func ReadFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening coefficient table: %w", err)
	}
	defer file.Close()

	table, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}
