// Package fit estimates per-segment learning curves from pass/fail histories.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/verte-zerg/grind/internal/model"
)

// DefaultMinSamples is the history length below which only a constant model is fit.
const DefaultMinSamples = 15

const (
	rateFloor      = 0.01
	rateCeil       = 0.99
	tolerance      = 1e-8
	maxIterations  = 1000
	convergeWindow = 20

	// stationaryTol bounds the gradient relative to the history length.
	stationaryTol   = 1e-6
	polishSteps     = 50
	maxBacktracking = 40
)

// Kind reports which branch of the fitting policy produced a model.
type Kind int

const (
	// Fitted is a two-parameter maximum-likelihood fit.
	Fitted Kind = iota
	// FellBackConstant means the two-parameter fit was discarded.
	FellBackConstant
	// FailedInsufficientData means the history was too short to attempt a fit.
	FailedInsufficientData
)

func (k Kind) String() string {
	switch k {
	case Fitted:
		return "fitted"
	case FellBackConstant:
		return "fell-back-constant"
	case FailedInsufficientData:
		return "insufficient-data"
	default:
		return "unknown"
	}
}

// ErrNoVariation is reported when every outcome is identical and the
// likelihood has no finite maximizer.
var ErrNoVariation = errors.New("outcomes have no variation")

// Result is the outcome of FitDetailed. Err explains a FellBackConstant result
// caused by the optimizer; it is nil otherwise.
type Result struct {
	Model model.SuccessModel
	Kind  Kind
	Err   error
}

// Fit returns the success-probability model for a segment history.
func Fit(outcomes []bool, duration float64, minSamples int) model.SuccessModel {
	return FitDetailed(outcomes, duration, minSamples).Model
}

// FitDetailed fits a model and reports which policy branch was taken.
func FitDetailed(outcomes []bool, duration float64, minSamples int) Result {
	n := len(outcomes)
	if n == 0 {
		return Result{
			Model: model.SuccessModel{
				Duration:   duration,
				Confidence: model.InsufficientData,
			},
			Kind: FailedInsufficientData,
		}
	}
	if n < minSamples {
		return Result{
			Model: constantModel(outcomes, duration, model.InsufficientData),
			Kind:  FailedInsufficientData,
		}
	}

	beta, err := maximizeLikelihood(outcomes)
	if err != nil {
		return Result{
			Model: constantModel(outcomes, duration, model.InsufficientData),
			Kind:  FellBackConstant,
			Err:   err,
		}
	}
	if beta[1] < 0 {
		return Result{
			Model: constantModel(outcomes, duration, model.NegativeLearningRate),
			Kind:  FellBackConstant,
		}
	}

	confidence := model.Confident
	if lowConfidence(outcomes, beta[0], beta[1]) {
		confidence = model.InsufficientData
	}
	return Result{
		Model: model.SuccessModel{
			Beta0:        beta[0],
			Beta1:        beta[1],
			Duration:     duration,
			AttemptCount: n,
			Confidence:   confidence,
		},
		Kind: Fitted,
	}
}

// constantModel is the flat model at the clamped empirical success rate.
func constantModel(outcomes []bool, duration float64, confidence model.Confidence) model.SuccessModel {
	successes := 0
	for _, ok := range outcomes {
		if ok {
			successes++
		}
	}
	rate := float64(successes) / float64(len(outcomes))
	return model.SuccessModel{
		Beta0:        model.Logit(model.Clamp(rate, rateFloor, rateCeil)),
		Duration:     duration,
		AttemptCount: len(outcomes),
		Confidence:   confidence,
	}
}

func maximizeLikelihood(outcomes []bool) (beta []float64, err error) {
	if !hasVariation(outcomes) {
		return nil, ErrNoVariation
	}
	defer func() {
		if r := recover(); r != nil {
			beta = nil
			err = fmt.Errorf("optimizer panic: %v", r)
		}
	}()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return negLogLikelihood(outcomes, x[0], x[1])
		},
		Grad: func(grad, x []float64) {
			gradient(grad, outcomes, x[0], x[1])
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: tolerance,
		MajorIterations:   maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   tolerance,
			Relative:   tolerance,
			Iterations: convergeWindow,
		},
	}
	res, err := optimize.Minimize(problem, []float64{0, 0}, settings, &optimize.BFGS{})
	if res == nil || len(res.X) != 2 {
		return nil, fmt.Errorf("minimize: %w", err)
	}
	// The line search stalls at machine precision once BFGS sits on the
	// optimum, so every location gets Newton polishing and a stalled run is
	// accepted when the polished point is stationary.
	x := polish(outcomes, []float64{res.X[0], res.X[1]})
	if !finite(x[0]) || !finite(x[1]) {
		return nil, fmt.Errorf("minimize returned non-finite coefficients %v", res.X)
	}
	if err == nil && converged(res.Status) {
		return x, nil
	}
	if !stationary(outcomes, x) {
		if err != nil {
			return nil, fmt.Errorf("minimize: %w", err)
		}
		return nil, fmt.Errorf("minimize did not converge: %v", res.Status)
	}
	return x, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.MethodConverge, optimize.GradientThreshold,
		optimize.FunctionConvergence, optimize.StepConvergence:
		return true
	default:
		return false
	}
}

func hasVariation(outcomes []bool) bool {
	for _, ok := range outcomes[1:] {
		if ok != outcomes[0] {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
