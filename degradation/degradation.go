package degradation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/TheCacophonyProject/battery-soh/lowess"
	"github.com/TheCacophonyProject/battery-soh/params"
	"github.com/TheCacophonyProject/battery-soh/polyfit"
)

// DefaultFitOrder is the default order of the degradation trend
// polynomial.
const DefaultFitOrder = 5

// Options holds the tunable parameters of the degradation estimator.
type Options struct {
	FitOrder         int
	LowessFraction   float64
	LowessIterations int
}

func DefaultOptions() Options {
	return Options{
		FitOrder:         DefaultFitOrder,
		LowessFraction:   lowess.DefaultFraction,
		LowessIterations: lowess.DefaultIterations,
	}
}

// Point is one diagnostic sample of a fitted degradation trend.
type Point struct {
	Cycle     int // 1-based cycle position
	Smoothed  float64
	Predicted float64
}

// Trend describes the long-run drift of one polynomial coefficient
// across discharge cycles.
type Trend struct {
	Column      int       // 0-based column index, holding the weights named w(Column+1)
	Coeffs      []float64 // trend polynomial, increasing power order
	Points      []Point
	TruncatedAt int // index of the column's minimum value, the inclusive end of the fitted range
}

// SkippedColumn records a coefficient column whose trend could not be
// estimated.
type SkippedColumn struct {
	Column int
	Err    error
}

// Result holds the trends for every column of a coefficient table.
type Result struct {
	Trends  []*Trend // successful columns, in column order
	Skipped []SkippedColumn
}

// Estimate fits a degradation trend for every column of the table.
// Each column is truncated at its minimum value (readings past the
// minimum are interpreted as after end-of-life, mirroring the voltage
// truncation applied to raw cycles), smoothed with LOWESS and fitted
// with a fixed-order polynomial over cycle position.
//
// Columns are processed concurrently; a column that fails is recorded
// in the result rather than aborting the batch.
func Estimate(ctx context.Context, table *params.Table, opts Options) (*Result, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, params.ErrNoRows
	}

	trends := make([]*Trend, table.Order)
	errs := make([]error, table.Order)

	g, _ := errgroup.WithContext(ctx)
	for k := 0; k < table.Order; k++ {
		k := k
		g.Go(func() error {
			trend, err := EstimateColumn(table, k, opts)
			if err != nil {
				errs[k] = err
				return nil
			}
			trends[k] = trend
			return nil
		})
	}
	g.Wait()

	result := &Result{}
	for k := 0; k < table.Order; k++ {
		if errs[k] != nil {
			result.Skipped = append(result.Skipped, SkippedColumn{Column: k, Err: errs[k]})
			continue
		}
		result.Trends = append(result.Trends, trends[k])
	}
	return result, nil
}

// EstimateColumn fits the degradation trend for a single column.
func EstimateColumn(table *params.Table, column int, opts Options) (*Trend, error) {
	values, err := table.Column(column)
	if err != nil {
		return nil, err
	}

	minIndex := 0
	for i, v := range values {
		if v < values[minIndex] {
			minIndex = i
		}
	}
	values = values[:minIndex+1]

	// Cycle positions are 1-based so the no-intercept trend polynomial
	// is not forced through zero at the first cycle.
	cycles := make([]float64, len(values))
	for i := range cycles {
		cycles[i] = float64(i + 1)
	}

	smoothed, err := lowess.Smooth(cycles, values, opts.LowessFraction, opts.LowessIterations)
	if err != nil {
		return nil, fmt.Errorf("smoothing w%d: %w", column+1, err)
	}

	fit, err := polyfit.Solve(cycles, smoothed, opts.FitOrder)
	if err != nil {
		return nil, fmt.Errorf("fitting degradation trend for w%d: %w", column+1, err)
	}

	points := make([]Point, len(smoothed))
	for i := range points {
		points[i] = Point{Cycle: i + 1, Smoothed: smoothed[i], Predicted: fit.Predicted[i]}
	}
	return &Trend{
		Column:      column,
		Coeffs:      fit.Coeffs,
		Points:      points,
		TruncatedAt: minIndex,
	}, nil
}
