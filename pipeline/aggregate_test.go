package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/battery-soh/discharge"
	"github.com/TheCacophonyProject/battery-soh/polyfit"
)

// writeDischargeLog writes a synthetic discharge log of n samples with
// a strictly falling voltage, so the whole series survives truncation.
func writeDischargeLog(t *testing.T, path string, n int, startVoltage float64) {
	t.Helper()
	log := "Voltage_measured,Current_measured,Time,Capacity\n"
	for i := 0; i < n; i++ {
		voltage := startVoltage - 0.02*float64(i)
		elapsed := 300 * float64(i)
		log += fmt.Sprintf("%g,-2,%g,2\n", voltage, elapsed)
	}
	require.NoError(t, os.WriteFile(path, []byte(log), 0644))
}

func testConfig(order int) Config {
	conf := DefaultConfig()
	conf.CycleFitOrder = order
	return conf
}

func TestAggregateTableShape(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 4; i++ {
		writeDischargeLog(t, filepath.Join(dir, fmt.Sprintf("discharge_%d.csv", i)), 20, 4.2-0.05*float64(i))
	}

	result, err := Aggregate(context.Background(), dir, testConfig(3))
	require.NoError(t, err)

	assert.Len(t, result.Table.Rows, 4)
	assert.Equal(t, 3, result.Table.Order)
	assert.Len(t, result.Files, 4)
	assert.Empty(t, result.Skipped)
}

func TestAggregateRowOrderIsCycleOrder(t *testing.T) {
	dir := t.TempDir()
	// Lexical order would put cycle 10 before cycle 2.
	writeDischargeLog(t, filepath.Join(dir, "B0005_discharge_10.csv"), 20, 4.0)
	writeDischargeLog(t, filepath.Join(dir, "B0005_discharge_2.csv"), 20, 4.1)
	writeDischargeLog(t, filepath.Join(dir, "B0005_discharge_1.csv"), 20, 4.2)

	result, err := Aggregate(context.Background(), dir, testConfig(2))
	require.NoError(t, err)

	require.Len(t, result.Files, 3)
	assert.Equal(t, "B0005_discharge_1.csv", filepath.Base(result.Files[0]))
	assert.Equal(t, "B0005_discharge_2.csv", filepath.Base(result.Files[1]))
	assert.Equal(t, "B0005_discharge_10.csv", filepath.Base(result.Files[2]))
}

func TestAggregateRowsMatchSequentialFits(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 6; i++ {
		writeDischargeLog(t, filepath.Join(dir, fmt.Sprintf("discharge_%d.csv", i)), 25, 4.2-0.03*float64(i))
	}

	conf := testConfig(4)
	conf.Workers = 4
	result, err := Aggregate(context.Background(), dir, conf)
	require.NoError(t, err)
	require.Len(t, result.Files, 6)

	// Each row must equal the fit of its own file, regardless of the
	// order the workers finished in.
	for i, path := range result.Files {
		sample, err := discharge.ReadFile(path)
		require.NoError(t, err)
		fit, err := polyfit.Solve(sample.StateOfCharge(), sample.Voltage, conf.CycleFitOrder)
		require.NoError(t, err)
		assert.Equal(t, fit.Coeffs, result.Table.Rows[i], "row %d", i)
	}
}

func TestAggregateSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeDischargeLog(t, filepath.Join(dir, "discharge_1.csv"), 20, 4.2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "discharge_2.csv"), []byte("Voltage_measured,Time\n1,2\n"), 0644))
	writeDischargeLog(t, filepath.Join(dir, "discharge_3.csv"), 20, 4.1)

	result, err := Aggregate(context.Background(), dir, testConfig(2))
	require.NoError(t, err)

	assert.Len(t, result.Table.Rows, 2)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "discharge_2.csv", filepath.Base(result.Skipped[0].Path))
	assert.ErrorIs(t, result.Skipped[0].Err, discharge.ErrMissingColumn)
}

func TestAggregateEmptyDir(t *testing.T) {
	_, err := Aggregate(context.Background(), t.TempDir(), testConfig(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no discharge logs")
}

func TestCycleNumber(t *testing.T) {
	n, ok := cycleNumber("/data/B0005_discharge_12.csv")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = cycleNumber("cycle007.csv")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = cycleNumber("discharge.csv")
	assert.False(t, ok)
}
