package fit

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/grind/internal/model"
)

func outcomesFrom(pattern string) []bool {
	out := make([]bool, 0, len(pattern))
	for _, ch := range pattern {
		out = append(out, ch == 's')
	}
	return out
}

// improving returns 40 outcomes at 25% success for the first half and 75% after.
func improving() []bool {
	out := make([]bool, 40)
	for t := range out {
		if t < 20 {
			out[t] = t%4 == 3
		} else {
			out[t] = t%4 != 0
		}
	}
	return out
}

func reversed(in []bool) []bool {
	out := make([]bool, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func TestFitEmptyHistory(t *testing.T) {
	res := FitDetailed(nil, 12, DefaultMinSamples)
	assert.Equal(t, FailedInsufficientData, res.Kind)
	assert.Equal(t, model.InsufficientData, res.Model.Confidence)
	assert.Zero(t, res.Model.Beta0)
	assert.Zero(t, res.Model.Beta1)
	assert.Zero(t, res.Model.AttemptCount)
	assert.Equal(t, 12.0, res.Model.Duration)
	for _, n := range []float64{0, 3, 1000} {
		assert.Equal(t, 0.5, res.Model.SuccessProb(n))
	}
}

func TestFitShortHistoryAllFailures(t *testing.T) {
	m := Fit(outcomesFrom("ffff"), 10, 15)
	assert.Equal(t, model.InsufficientData, m.Confidence)
	assert.Zero(t, m.Beta1)
	assert.Equal(t, 4, m.AttemptCount)
	assert.InDelta(t, 0.01, m.SuccessProb(4), 1e-12)
	assert.Equal(t, 5.0, m.AttemptTime(false))
	assert.Equal(t, 10.0, m.AttemptTime(true))
}

func TestFitShortHistoryIgnoresOrder(t *testing.T) {
	a := Fit(outcomesFrom("ssfffsf"), 8, 15)
	b := Fit(outcomesFrom("fffssfs"), 8, 15)
	c := Fit(outcomesFrom("sssffff"), 8, 15)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.InDelta(t, 3.0/7.0, a.CurrentProb(), 1e-12)
}

func TestFitImprovingHistory(t *testing.T) {
	res := FitDetailed(improving(), 30, 15)
	require.Equal(t, Fitted, res.Kind, "err: %v", res.Err)
	assert.Greater(t, res.Model.Beta1, 0.0)
	assert.Equal(t, model.Confident, res.Model.Confidence)
	assert.Equal(t, 40, res.Model.AttemptCount)
	assert.Less(t, res.Model.SuccessProb(0), 0.5)
	assert.Greater(t, res.Model.SuccessProb(40), 0.5)
}

func TestFitDecliningHistoryIsFlattened(t *testing.T) {
	res := FitDetailed(reversed(improving()), 30, 15)
	assert.Equal(t, FellBackConstant, res.Kind)
	assert.NoError(t, res.Err)
	assert.Equal(t, model.NegativeLearningRate, res.Model.Confidence)
	assert.Zero(t, res.Model.Beta1)
	assert.InDelta(t, 0.0, res.Model.Beta0, 1e-12)
}

func TestFitWithoutVariationFallsBack(t *testing.T) {
	for _, success := range []bool{true, false} {
		outcomes := make([]bool, 20)
		for i := range outcomes {
			outcomes[i] = success
		}
		res := FitDetailed(outcomes, 20, 5)
		assert.Equal(t, FellBackConstant, res.Kind)
		assert.ErrorIs(t, res.Err, ErrNoVariation)
		assert.Equal(t, model.InsufficientData, res.Model.Confidence)
		assert.Zero(t, res.Model.Beta1)
		want := 0.01
		if success {
			want = 0.99
		}
		assert.InDelta(t, want, res.Model.CurrentProb(), 1e-12)
	}
}

func TestFitFlatTrendIsLowConfidence(t *testing.T) {
	res := FitDetailed(outcomesFrom("fsfsfsfsfsfsfsfsfsfsfsfsfsfsfs"), 10, 15)
	require.Equal(t, Fitted, res.Kind, "err: %v", res.Err)
	assert.GreaterOrEqual(t, res.Model.Beta1, 0.0)
	assert.Equal(t, model.InsufficientData, res.Model.Confidence)
}

func TestFitSlopeNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		n := rng.IntN(60)
		bias := rng.Float64()*4 - 2
		slope := rng.Float64()*0.4 - 0.2
		outcomes := make([]bool, n)
		for t := range outcomes {
			outcomes[t] = rng.Float64() < model.Sigmoid(bias+slope*float64(t))
		}
		m := Fit(outcomes, 10, 10)
		require.GreaterOrEqual(t, m.Beta1, 0.0, "outcomes %v", outcomes)
		require.False(t, math.IsNaN(m.Beta0))
		require.Equal(t, n, m.AttemptCount)
	}
}

func TestGradientMatchesFiniteDifference(t *testing.T) {
	outcomes := improving()
	const h = 1e-6
	for _, x := range [][2]float64{{0, 0}, {-1.5, 0.1}, {0.7, -0.05}} {
		grad := make([]float64, 2)
		gradient(grad, outcomes, x[0], x[1])
		d0 := (negLogLikelihood(outcomes, x[0]+h, x[1]) - negLogLikelihood(outcomes, x[0]-h, x[1])) / (2 * h)
		d1 := (negLogLikelihood(outcomes, x[0], x[1]+h) - negLogLikelihood(outcomes, x[0], x[1]-h)) / (2 * h)
		assert.InDelta(t, d0, grad[0], 1e-4)
		assert.InDelta(t, d1, grad[1], 1e-3)
	}
}

func TestLowConfidenceOnDegenerateInformation(t *testing.T) {
	// Saturated probabilities carry almost no information.
	assert.True(t, lowConfidence(make([]bool, 30), -40, 0.1))
	assert.False(t, lowConfidence(improving(), -1.5, 0.1))
}

// trend draws n outcomes from sigmoid(beta0 + beta1*t).
func trend(rng *rand.Rand, n int, beta0, beta1 float64) []bool {
	out := make([]bool, n)
	for t := range out {
		out[t] = rng.Float64() < model.Sigmoid(beta0+beta1*float64(t))
	}
	return out
}

func TestFitLongImprovingHistory(t *testing.T) {
	// Low-discrepancy draws keep the empirical rate on the true curve.
	outcomes := make([]bool, 200)
	for i := range outcomes {
		frac := math.Mod(float64(i)*0.6180339887498949, 1)
		outcomes[i] = frac < model.Sigmoid(-1.5+0.02*float64(i))
	}
	res := FitDetailed(outcomes, 45, DefaultMinSamples)
	require.Equal(t, Fitted, res.Kind, "err: %v", res.Err)
	assert.Equal(t, model.Confident, res.Model.Confidence)
	assert.InDelta(t, 0.02, res.Model.Beta1, 0.01)
	assert.InDelta(t, -1.5, res.Model.Beta0, 0.75)
	assert.True(t, stationary(outcomes, []float64{res.Model.Beta0, res.Model.Beta1}))
}

func TestFitSeededLongHistoriesConverge(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		outcomes := trend(rand.New(rand.NewPCG(seed, 99)), 200, -1.5, 0.02)
		res := FitDetailed(outcomes, 30, DefaultMinSamples)
		require.Equal(t, Fitted, res.Kind, "seed %d err: %v", seed, res.Err)
		assert.Equal(t, model.Confident, res.Model.Confidence, "seed %d", seed)
		assert.Greater(t, res.Model.Beta1, 0.0, "seed %d", seed)
	}
}

func TestFitLongHistoriesReachStationaryPoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 300; i++ {
		n := 150 + rng.IntN(170)
		outcomes := trend(rng, n, -1.5+rng.Float64(), rng.Float64()*0.05)
		res := FitDetailed(outcomes, 10, DefaultMinSamples)
		require.NoError(t, res.Err, "n=%d", n)
		switch res.Kind {
		case Fitted:
			x := []float64{res.Model.Beta0, res.Model.Beta1}
			require.True(t, stationary(outcomes, x), "n=%d beta=%v", n, x)
		case FellBackConstant:
			require.Equal(t, model.NegativeLearningRate, res.Model.Confidence, "n=%d", n)
		default:
			t.Fatalf("n=%d: unexpected kind %v", n, res.Kind)
		}
	}
}

func TestPolishReachesOptimumFromNearbyStart(t *testing.T) {
	outcomes := trend(rand.New(rand.NewPCG(42, 1)), 250, -1, 0.015)
	ref := FitDetailed(outcomes, 10, DefaultMinSamples)
	require.Equal(t, Fitted, ref.Kind, "err: %v", ref.Err)

	x := polish(outcomes, []float64{ref.Model.Beta0 + 0.3, ref.Model.Beta1 - 0.005})
	require.True(t, stationary(outcomes, x))
	assert.InDelta(t, ref.Model.Beta0, x[0], 1e-4)
	assert.InDelta(t, ref.Model.Beta1, x[1], 1e-6)
}
