package lowess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultFraction is the share of the data span used for each
	// local fit.
	DefaultFraction = 0.3

	// DefaultIterations is the number of robustness iterations. Each
	// iteration downweights points with large residuals before
	// smoothing again.
	DefaultIterations = 3
)

// Smooth applies locally weighted scatterplot smoothing (LOWESS) to
// the (x, y) points. For every point the nearest ceil(frac·n)
// neighbours are weighted with a tri-cube kernel and a weighted linear
// regression is fitted through them. After each pass the residuals are
// used to compute bisquare robustness weights, so outliers have little
// influence on the final curve.
//
// x must be sorted in increasing order. The returned slice has the
// same length as the input.
func Smooth(x, y []float64, frac float64, iterations int) ([]float64, error) {
	n := len(x)
	if len(y) != n {
		return nil, fmt.Errorf("input lengths differ: %d != %d", n, len(y))
	}
	if n == 0 {
		return nil, fmt.Errorf("cannot smooth empty input")
	}
	if frac <= 0 || frac > 1 {
		return nil, fmt.Errorf("fraction must be in (0, 1], got %v", frac)
	}
	if iterations < 0 {
		return nil, fmt.Errorf("iterations must not be negative, got %d", iterations)
	}
	if !sort.Float64sAreSorted(x) {
		return nil, fmt.Errorf("x values must be sorted in increasing order")
	}
	if n == 1 {
		return []float64{y[0]}, nil
	}

	span := int(math.Ceil(frac * float64(n)))
	if span < 2 {
		span = 2
	}
	if span > n {
		span = n
	}

	smoothed := make([]float64, n)
	residuals := make([]float64, n)
	robustness := make([]float64, n)
	for i := range robustness {
		robustness[i] = 1
	}

	for iter := 0; ; iter++ {
		for i := 0; i < n; i++ {
			lo, hi := window(x, i, span)
			smoothed[i] = fitLocal(x[lo:hi], y[lo:hi], robustness[lo:hi], x[i])
		}
		if iter == iterations {
			break
		}
		for i := range residuals {
			residuals[i] = y[i] - smoothed[i]
		}
		updateRobustness(residuals, robustness)
	}
	return smoothed, nil
}

// window returns the half-open range of the span points nearest to
// x[i]. x is sorted, so the nearest neighbours form a contiguous run
// that can be found by sliding the window towards the query point.
func window(x []float64, i, span int) (int, int) {
	lo := i - span + 1
	if lo < 0 {
		lo = 0
	}
	hi := lo + span
	for hi < len(x) && x[i]-x[lo] > x[hi]-x[i] {
		lo++
		hi++
	}
	return lo, hi
}

// fitLocal fits a weighted linear regression through the window and
// evaluates it at the query point x0.
func fitLocal(xs, ys, robust []float64, x0 float64) float64 {
	h := 0.0
	for _, v := range xs {
		if d := math.Abs(v - x0); d > h {
			h = d
		}
	}

	weights := make([]float64, len(xs))
	var total float64
	for i, v := range xs {
		w := robust[i]
		if h > 0 {
			w *= tricube(math.Abs(v-x0) / h)
		}
		weights[i] = w
		total += w
	}
	if total == 0 {
		// Robustness weights removed every point, fall back to the
		// plain window mean.
		return stat.Mean(ys, nil)
	}

	alpha, beta := stat.LinearRegression(xs, ys, weights, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		// Degenerate window, e.g. all x values equal.
		return stat.Mean(ys, weights)
	}
	return alpha + beta*x0
}

func tricube(u float64) float64 {
	if u >= 1 {
		return 0
	}
	c := 1 - u*u*u
	return c * c * c
}

// updateRobustness assigns each point a bisquare weight based on its
// residual relative to six times the median absolute residual.
func updateRobustness(residuals, robustness []float64) {
	abs := make([]float64, len(residuals))
	for i, r := range residuals {
		abs[i] = math.Abs(r)
	}
	sort.Float64s(abs)
	s := stat.Quantile(0.5, stat.Empirical, abs, nil)
	if s == 0 {
		// Perfect fit, nothing to downweight.
		for i := range robustness {
			robustness[i] = 1
		}
		return
	}
	for i, r := range residuals {
		u := r / (6 * s)
		if u <= -1 || u >= 1 {
			robustness[i] = 0
			continue
		}
		c := 1 - u*u
		robustness[i] = c * c
	}
}
