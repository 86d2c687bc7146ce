package degradation

import (
	"fmt"
	"math"

	"github.com/TheCacophonyProject/battery-soh/polyfit"
)

const (
	// DefaultTolerance is the allowed deviation from the trend,
	// expressed as a fraction of the trend's predicted value range.
	DefaultTolerance = 0.1

	// DefaultConsecutive is the number of violations in a row needed
	// before a trajectory is flagged.
	DefaultConsecutive = 3
)

// HealthPolicy decides when new coefficient estimates have deviated
// from the fitted degradation trend for long enough to signal that a
// battery is near end of life. A single noisy estimate never flags;
// only a sustained run of out-of-band values does.
type HealthPolicy struct {
	Tolerance   float64
	Consecutive int
}

func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		Tolerance:   DefaultTolerance,
		Consecutive: DefaultConsecutive,
	}
}

// Evaluate checks the coefficient estimates in values, taken from
// cycle position 1 onwards, against the trend. It returns whether the
// policy flagged the trajectory and, if so, the 1-based cycle position
// where the violating run starts.
func (p HealthPolicy) Evaluate(trend *Trend, values []float64) (bool, int, error) {
	if p.Tolerance <= 0 {
		return false, 0, fmt.Errorf("tolerance must be positive, got %v", p.Tolerance)
	}
	if p.Consecutive < 1 {
		return false, 0, fmt.Errorf("consecutive count must be at least 1, got %d", p.Consecutive)
	}
	if len(trend.Points) == 0 {
		return false, 0, fmt.Errorf("trend has no points")
	}

	margin := p.Tolerance * predictedRange(trend)
	if margin == 0 {
		// Flat trend, fall back to a margin relative to its level.
		margin = p.Tolerance * math.Abs(trend.Points[0].Predicted)
	}

	run := 0
	for i, v := range values {
		predicted := polyfit.Eval(trend.Coeffs, float64(i+1))
		if math.Abs(v-predicted) > margin {
			run++
			if run >= p.Consecutive {
				return true, i - run + 2, nil
			}
		} else {
			run = 0
		}
	}
	return false, 0, nil
}

func predictedRange(trend *Trend) float64 {
	min := trend.Points[0].Predicted
	max := min
	for _, pt := range trend.Points {
		if pt.Predicted < min {
			min = pt.Predicted
		}
		if pt.Predicted > max {
			max = pt.Predicted
		}
	}
	return max - min
}
