package polyfit

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Singular values below rcond times the largest singular value are
// treated as zero when falling back to the minimum-norm solution.
const rcond = 1e-15

// Fit is the result of a least-squares polynomial fit with no constant
// term: y ≈ w1·x + w2·x² + … + wN·x^N.
type Fit struct {
	Order     int
	Coeffs    []float64 // increasing power order, Coeffs[k-1] multiplies x^k
	Predicted []float64 // fitted values at the input points
}

// Solve fits a polynomial of the given order through the origin to the
// (x, y) points by ordinary least squares. The system is solved with a
// QR factorization; if it is underdetermined, or QR reports an
// ill-conditioned matrix, the minimum-norm SVD solution is used
// instead, so the result is always defined and deterministic.
func Solve(x, y []float64, order int) (*Fit, error) {
	if order < 1 {
		return nil, fmt.Errorf("polynomial order must be positive, got %d", order)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("input lengths differ: %d != %d", len(x), len(y))
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit a polynomial to empty input")
	}

	a := vandermonde(x, order)
	b := mat.NewVecDense(len(y), y)
	c := mat.NewVecDense(order, nil)

	if len(x) >= order {
		qr := new(mat.QR)
		qr.Factorize(a)
		if err := qr.SolveVecTo(c, false, b); err == nil {
			return newFit(x, c, order), nil
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("could not factorize %dx%d design matrix", len(x), order)
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, fmt.Errorf("design matrix has rank 0, cannot fit")
	}
	svd.SolveVecTo(c, b, rank)
	return newFit(x, c, order), nil
}

func newFit(x []float64, c *mat.VecDense, order int) *Fit {
	coeffs := make([]float64, order)
	for k := range coeffs {
		coeffs[k] = c.AtVec(k)
	}
	predicted := make([]float64, len(x))
	for i, v := range x {
		predicted[i] = Eval(coeffs, v)
	}
	return &Fit{Order: order, Coeffs: coeffs, Predicted: predicted}
}

// Eval evaluates the no-intercept polynomial described by coeffs at x.
func Eval(coeffs []float64, x float64) float64 {
	var sum float64
	pow := 1.0
	for _, c := range coeffs {
		pow *= x
		sum += c * pow
	}
	return sum
}

// vandermonde builds the design matrix with columns x, x², …, x^order.
// The usual ones column is omitted so the fit has no constant term.
func vandermonde(a []float64, order int) *mat.Dense {
	x := mat.NewDense(len(a), order, nil)
	for i := range a {
		for j, p := 0, a[i]; j < order; j, p = j+1, p*a[i] {
			x.Set(i, j, p)
		}
	}
	return x
}
