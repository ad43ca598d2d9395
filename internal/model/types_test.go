package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigmoidSymmetryAndMonotonicity(t *testing.T) {
	xs := []float64{-1000, -745, -40, -3.5, -1, -1e-9, 0, 1e-9, 0.25, 2, 36, 710, 1000}
	prev := -1.0
	for _, x := range xs {
		s := Sigmoid(x)
		assert.False(t, math.IsNaN(s), "sigmoid(%v)", x)
		assert.InDelta(t, 1.0, s+Sigmoid(-x), 1e-15, "x=%v", x)
		assert.GreaterOrEqual(t, s, prev, "x=%v", x)
		prev = s
	}
	assert.Equal(t, 0.5, Sigmoid(0))
}

func TestLogitInvertsSigmoid(t *testing.T) {
	for _, p := range []float64{0.01, 0.2, 0.5, 0.8, 0.99} {
		assert.InDelta(t, p, Sigmoid(Logit(p)), 1e-12)
	}
}

func TestSuccessModelEvaluation(t *testing.T) {
	m := SuccessModel{Beta0: -2, Beta1: 0.5, Duration: 30, AttemptCount: 4}
	assert.InDelta(t, 0.5, m.CurrentProb(), 1e-12)
	assert.InDelta(t, Sigmoid(-0.75), m.SuccessProb(2.5), 1e-12)
	assert.Equal(t, 30.0, m.AttemptTime(true))
	assert.Equal(t, 15.0, m.AttemptTime(false))
	assert.Equal(t, 22.5, m.ExpectedAttemptTime(0.5))
}

func TestDurationsCloneIsDeep(t *testing.T) {
	d := Durations{
		Order:   []SegmentID{"a", "b"},
		Seconds: map[SegmentID]float64{"a": 1, "b": 2},
	}
	c := d.Clone()
	c.Order[0] = "z"
	c.Seconds["a"] = 9
	assert.Equal(t, SegmentID("a"), d.Order[0])
	assert.Equal(t, 1.0, d.Seconds["a"])
}

func TestConfidenceString(t *testing.T) {
	assert.Equal(t, "confident", Confident.String())
	assert.Equal(t, "insufficient-data", InsufficientData.String())
	assert.Equal(t, "not-improving", NegativeLearningRate.String())
}
