// Package advisor turns a set of fitted segment models into practice advice
// and completion-time forecasts.
package advisor

import (
	"math"
	"sync"

	"github.com/verte-zerg/grind/internal/model"
)

// Unbounded is reported by ExpectedCompletionTime when a clean run is
// practically impossible under the current probabilities.
const Unbounded = math.MaxFloat64

const (
	minRunProbability = 1e-15

	// DefaultMaxRounds caps the forward simulation.
	DefaultMaxRounds = 100000
	// DefaultPracticeIterations caps virtual practice attempts per simulated round.
	DefaultPracticeIterations = 1000
)

// Options tunes the forward simulation.
type Options struct {
	MaxRounds          int
	PracticeIterations int
}

// DefaultOptions returns the standard simulation caps.
func DefaultOptions() Options {
	return Options{
		MaxRounds:          DefaultMaxRounds,
		PracticeIterations: DefaultPracticeIterations,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.PracticeIterations <= 0 {
		o.PracticeIterations = DefaultPracticeIterations
	}
	return o
}

// Benefit is the marginal value of one extra practice attempt on a segment.
type Benefit struct {
	Benefit float64
	Cost    float64
	Net     float64
}

// Advisor is an immutable view over one published model set.
// It is safe for concurrent use.
type Advisor struct {
	order     []model.SegmentID
	models    map[model.SegmentID]model.SuccessModel
	segments  []model.SuccessModel
	probs     []float64
	durations []float64
	opts      Options

	recOnce sync.Once
	rec     Recommendation
}

// New builds an advisor. Segments in order without a model are skipped;
// models absent from order are still retrievable through RoomModel.
func New(order []model.SegmentID, models map[model.SegmentID]model.SuccessModel, opts Options) *Advisor {
	a := &Advisor{
		models: make(map[model.SegmentID]model.SuccessModel, len(models)),
		opts:   opts.withDefaults(),
	}
	for id, m := range models {
		a.models[id] = m
	}
	seen := make(map[model.SegmentID]struct{}, len(order))
	for _, id := range order {
		m, ok := a.models[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		a.order = append(a.order, id)
		a.segments = append(a.segments, m)
		a.probs = append(a.probs, m.CurrentProb())
		a.durations = append(a.durations, m.Duration)
	}
	return a
}

// Empty returns an advisor without models.
func Empty() *Advisor {
	return New(nil, nil, DefaultOptions())
}

// HasModels reports whether any segment is modeled.
func (a *Advisor) HasModels() bool {
	return a != nil && len(a.models) > 0
}

// RoomModel returns the model for a segment.
func (a *Advisor) RoomModel(id model.SegmentID) (model.SuccessModel, bool) {
	if a == nil {
		return model.SuccessModel{}, false
	}
	m, ok := a.models[id]
	return m, ok
}

// Order returns the traversal order of modeled segments.
func (a *Advisor) Order() []model.SegmentID {
	if a == nil {
		return nil
	}
	return append([]model.SegmentID(nil), a.order...)
}

// CurrentProb returns a segment's success probability at its attempt count.
func (a *Advisor) CurrentProb(id model.SegmentID) (float64, bool) {
	m, ok := a.RoomModel(id)
	if !ok {
		return 0, false
	}
	return m.CurrentProb(), true
}

// ExpectedTime is E0 for the advisor's current probabilities.
func (a *Advisor) ExpectedTime() float64 {
	return ExpectedCompletionTime(a.durations, a.probs)
}

// PracticeBenefit evaluates one more practice attempt on a segment in the run order.
func (a *Advisor) PracticeBenefit(id model.SegmentID) (Benefit, bool) {
	if a == nil {
		return Benefit{}, false
	}
	for i, segID := range a.order {
		if segID == id {
			probs := append([]float64(nil), a.probs...)
			return a.benefitAt(i, probs, float64(a.segments[i].AttemptCount), ExpectedCompletionTime(a.durations, probs)), true
		}
	}
	return Benefit{}, false
}

// benefitAt computes the benefit of practicing segment i whose effective
// attempt count is count, given live probabilities and their E0.
// probs is modified during the call and restored before returning.
func (a *Advisor) benefitAt(i int, probs []float64, count, e0 float64) Benefit {
	m := a.segments[i]
	current := probs[i]
	probs[i] = m.SuccessProb(count + 1)
	improved := ExpectedCompletionTime(a.durations, probs)
	probs[i] = current

	b := Benefit{
		Benefit: e0 - improved,
		Cost:    m.ExpectedAttemptTime(current),
	}
	b.Net = b.Benefit - b.Cost
	return b
}

// ExpectedCompletionTime is the expected time to finish a full run from the
// first segment when every failure restarts the run:
//
//	E0 = (1/P) * sum_j a_j * prod_{k<j} p_k,  a_j = d_j*(1+p_j)/2,  P = prod_j p_j
//
// It returns Unbounded when P < 1e-15.
func ExpectedCompletionTime(durations, probs []float64) float64 {
	cost, success := roundCost(durations, probs)
	if success < minRunProbability {
		return Unbounded
	}
	return cost / success
}

// roundCost returns the expected time of one attempt at the run and the
// probability that the attempt completes it.
func roundCost(durations, probs []float64) (cost, success float64) {
	reach := 1.0
	for j, p := range probs {
		cost += durations[j] * (1 + p) / 2 * reach
		reach *= p
	}
	return cost, reach
}
