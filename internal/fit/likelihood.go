package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/grind/internal/model"
)

const probEpsilon = 1e-10

// negLogLikelihood of the logistic curve over attempt index t = 0..n-1.
func negLogLikelihood(outcomes []bool, beta0, beta1 float64) float64 {
	var nll float64
	for t, ok := range outcomes {
		p := model.Clamp(model.Sigmoid(beta0+beta1*float64(t)), probEpsilon, 1-probEpsilon)
		if ok {
			nll -= math.Log(p)
		} else {
			nll -= math.Log(1 - p)
		}
	}
	return nll
}

// gradient writes d/dbeta0 = sum(p-y) and d/dbeta1 = sum((p-y)*t) into grad.
func gradient(grad []float64, outcomes []bool, beta0, beta1 float64) {
	grad[0], grad[1] = 0, 0
	for t, ok := range outcomes {
		residual := model.Sigmoid(beta0 + beta1*float64(t))
		if ok {
			residual--
		}
		grad[0] += residual
		grad[1] += residual * float64(t)
	}
}

// stationary reports whether the gradient at x vanishes. The slope component
// is scaled by n*(n-1) since its terms grow with the attempt index.
func stationary(outcomes []bool, x []float64) bool {
	n := float64(len(outcomes))
	grad := make([]float64, 2)
	gradient(grad, outcomes, x[0], x[1])
	return math.Abs(grad[0]) <= stationaryTol*n &&
		math.Abs(grad[1]) <= stationaryTol*n*math.Max(n-1, 1)
}

// polish runs damped Newton steps on the exact Hessian, which is the
// observed information, until x is stationary or no step decreases the
// likelihood.
func polish(outcomes []bool, x []float64) []float64 {
	x = []float64{x[0], x[1]}
	grad := make([]float64, 2)
	for i := 0; i < polishSteps && !stationary(outcomes, x); i++ {
		gradient(grad, outcomes, x[0], x[1])
		var step mat.VecDense
		if err := step.SolveVec(information(len(outcomes), x[0], x[1]), mat.NewVecDense(2, grad)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return x
			}
		}
		d0, d1 := step.AtVec(0), step.AtVec(1)
		if !finite(d0) || !finite(d1) {
			return x
		}
		current := negLogLikelihood(outcomes, x[0], x[1])
		scale := 1.0
		improved := false
		for j := 0; j < maxBacktracking; j++ {
			b0, b1 := x[0]-scale*d0, x[1]-scale*d1
			if negLogLikelihood(outcomes, b0, b1) <= current {
				x[0], x[1] = b0, b1
				improved = true
				break
			}
			scale /= 2
		}
		if !improved {
			return x
		}
	}
	return x
}
