package advisor

import "github.com/verte-zerg/grind/internal/model"

// Action is what the advisor suggests doing next.
type Action int

const (
	// GoForIt means attempt a full run.
	GoForIt Action = iota
	// Practice means practice Recommendation.Segment.
	Practice
)

// Reason explains a Practice recommendation.
type Reason int

const (
	// ReasonNone is the reason of a GoForIt recommendation.
	ReasonNone Reason = iota
	// ReasonNeedsData means the segment's fit is not trustworthy yet.
	ReasonNeedsData
	// ReasonNotImproving means the segment's success rate is not rising.
	ReasonNotImproving
	// ReasonNetBenefit means practicing saves more time than it costs.
	ReasonNetBenefit
)

func (r Reason) String() string {
	switch r {
	case ReasonNeedsData:
		return "needs more data"
	case ReasonNotImproving:
		return "not improving"
	case ReasonNetBenefit:
		return "saves time"
	default:
		return ""
	}
}

// Recommendation is the advisor's single best suggestion plus two forecasts of
// total time to a completed run.
type Recommendation struct {
	Action     Action
	Segment    model.SegmentID
	Reason     Reason
	Confidence model.Confidence
	// NetBenefit is set when Reason is ReasonNetBenefit.
	NetBenefit float64
	// GrindTime forecasts repeated full runs without dedicated practice.
	GrindTime float64
	// SmartTime forecasts following the advisor's practice policy.
	SmartTime float64
}

// Recommendation returns the advice for this model set. It is computed once
// per advisor; ok is false when there are no models.
func (a *Advisor) Recommendation() (rec Recommendation, ok bool) {
	if !a.HasModels() {
		return Recommendation{}, false
	}
	a.recOnce.Do(func() {
		a.rec = a.recommend()
		a.rec.GrindTime = a.Forecast(StrategyGrind)
		a.rec.SmartTime = a.Forecast(StrategySmart)
	})
	return a.rec, true
}

func (a *Advisor) recommend() Recommendation {
	if i := a.weakest(model.InsufficientData); i >= 0 {
		return a.practice(i, ReasonNeedsData)
	}
	if i := a.weakest(model.NegativeLearningRate); i >= 0 {
		return a.practice(i, ReasonNotImproving)
	}

	probs := append([]float64(nil), a.probs...)
	e0 := ExpectedCompletionTime(a.durations, probs)
	best := -1
	var bestNet float64
	for i, m := range a.segments {
		net := a.benefitAt(i, probs, float64(m.AttemptCount), e0).Net
		if net <= 0 {
			continue
		}
		if best < 0 || net > bestNet || (net == bestNet && probs[i] < probs[best]) {
			best, bestNet = i, net
		}
	}
	if best < 0 {
		return Recommendation{Action: GoForIt}
	}
	rec := a.practice(best, ReasonNetBenefit)
	rec.NetBenefit = bestNet
	return rec
}

// weakest returns the index of the lowest-probability segment with the given
// confidence, or -1. Ties keep run order.
func (a *Advisor) weakest(confidence model.Confidence) int {
	best := -1
	for i, m := range a.segments {
		if m.Confidence != confidence {
			continue
		}
		if best < 0 || a.probs[i] < a.probs[best] {
			best = i
		}
	}
	return best
}

func (a *Advisor) practice(i int, reason Reason) Recommendation {
	return Recommendation{
		Action:     Practice,
		Segment:    a.order[i],
		Reason:     reason,
		Confidence: a.segments[i].Confidence,
	}
}
