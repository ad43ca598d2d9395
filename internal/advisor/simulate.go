package advisor

// Strategy selects the practice policy of the forward simulation.
type Strategy int

const (
	// StrategyGrind attempts full runs only.
	StrategyGrind Strategy = iota
	// StrategySmart practices a segment whenever one attempt has positive net benefit.
	StrategySmart
)

func (s Strategy) String() string {
	if s == StrategySmart {
		return "smart"
	}
	return "grind"
}

const minSurvival = 1e-12

// Forecast estimates the total expected time until a run is completed under
// the given strategy. It follows the expected trajectory of the repeated
// attempt process instead of sampling it: each round every segment's
// effective attempt count grows by the probability that play reaches it,
// and the survival probability shrinks by the chance of a clean run.
func (a *Advisor) Forecast(strategy Strategy) float64 {
	if a == nil || len(a.segments) == 0 {
		return 0
	}
	counts := make([]float64, len(a.segments))
	probs := make([]float64, len(a.segments))
	for j, m := range a.segments {
		counts[j] = float64(m.AttemptCount)
	}

	survival := 1.0
	var total float64
	for round := 0; round < a.opts.MaxRounds && survival >= minSurvival; round++ {
		for j, m := range a.segments {
			probs[j] = m.SuccessProb(counts[j])
		}
		if strategy == StrategySmart {
			total += survival * a.practiceRound(counts, probs)
		}

		cost, success := roundCost(a.durations, probs)
		total += survival * cost

		reach := 1.0
		for j, p := range probs {
			counts[j] += reach
			reach *= p
		}
		survival *= 1 - success
	}
	return total
}

// practiceRound commits virtual practice attempts while one has positive net
// benefit, updating counts and probs in place. It returns their expected cost.
func (a *Advisor) practiceRound(counts, probs []float64) float64 {
	var spent float64
	for it := 0; it < a.opts.PracticeIterations; it++ {
		e0 := ExpectedCompletionTime(a.durations, probs)
		best := -1
		var bestNet, bestCost float64
		for j := range a.segments {
			b := a.benefitAt(j, probs, counts[j], e0)
			if b.Net > 0 && (best < 0 || b.Net > bestNet) {
				best, bestNet, bestCost = j, b.Net, b.Cost
			}
		}
		if best < 0 {
			break
		}
		spent += bestCost
		counts[best]++
		probs[best] = a.segments[best].SuccessProb(counts[best])
	}
	return spent
}
