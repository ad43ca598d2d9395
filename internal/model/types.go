// Package model defines shared data structures.
package model

import (
	"math"
	"time"
)

// SegmentID identifies a practiced segment within a run.
type SegmentID string

// Confidence qualifies how far a fitted slope can be trusted.
type Confidence int

const (
	// Confident means the learning rate is distinguishable from zero.
	Confident Confidence = iota
	// InsufficientData means the fit is advisory only.
	InsufficientData
	// NegativeLearningRate means the fit showed decline and was flattened.
	NegativeLearningRate
)

func (c Confidence) String() string {
	switch c {
	case Confident:
		return "confident"
	case InsufficientData:
		return "insufficient-data"
	case NegativeLearningRate:
		return "not-improving"
	default:
		return "unknown"
	}
}

// SuccessModel is a logistic learning curve for one segment.
// Beta1 is never negative.
type SuccessModel struct {
	Beta0        float64
	Beta1        float64
	Duration     float64
	AttemptCount int
	Confidence   Confidence
}

// SuccessProb returns the modeled success probability after n prior attempts.
// n may be fractional.
func (m SuccessModel) SuccessProb(n float64) float64 {
	return Sigmoid(m.Beta0 + m.Beta1*n)
}

// CurrentProb evaluates the model at its own attempt count.
func (m SuccessModel) CurrentProb() float64 {
	return m.SuccessProb(float64(m.AttemptCount))
}

// AttemptTime is the time spent on one attempt. Failures end halfway on average.
func (m SuccessModel) AttemptTime(success bool) float64 {
	if success {
		return m.Duration
	}
	return m.Duration / 2
}

// ExpectedAttemptTime is the mean attempt time at success probability p.
func (m SuccessModel) ExpectedAttemptTime(p float64) float64 {
	return m.Duration * (1 + p) / 2
}

// Sigmoid is the logistic function, branching on sign so exp never overflows.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit is the inverse of Sigmoid.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run is a named ordered sequence of segments.
type Run struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Segment is one entry of a run's traversal order.
type Segment struct {
	ID       SegmentID
	Duration float64
}

// Durations is the traversal order of a run plus nominal seconds per segment.
type Durations struct {
	Order   []SegmentID
	Seconds map[SegmentID]float64
}

// Clone returns a deep copy.
func (d Durations) Clone() Durations {
	out := Durations{
		Order:   append([]SegmentID(nil), d.Order...),
		Seconds: make(map[SegmentID]float64, len(d.Seconds)),
	}
	for k, v := range d.Seconds {
		out.Seconds[k] = v
	}
	return out
}
