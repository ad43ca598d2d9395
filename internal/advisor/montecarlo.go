package advisor

import (
	"math"
	"math/rand/v2"
)

// Sample is the outcome of a Monte Carlo estimate.
type Sample struct {
	Mean      float64
	StdErr    float64
	Trials    int
	Completed int
}

// MonteCarlo estimates the grind strategy's time to a completed run by
// sampling attempts with restarts. Each trial gives up after maxAttempts
// segment attempts; abandoned trials count with the time they consumed.
func (a *Advisor) MonteCarlo(rng *rand.Rand, trials, maxAttempts int) Sample {
	if a == nil || len(a.segments) == 0 || trials <= 0 {
		return Sample{}
	}
	var sum, sumSq float64
	completed := 0
	counts := make([]int, len(a.segments))
	for trial := 0; trial < trials; trial++ {
		for j, m := range a.segments {
			counts[j] = m.AttemptCount
		}
		elapsed, done := a.sampleRun(rng, counts, maxAttempts)
		if done {
			completed++
		}
		sum += elapsed
		sumSq += elapsed * elapsed
	}
	n := float64(trials)
	mean := sum / n
	s := Sample{Mean: mean, Trials: trials, Completed: completed}
	if trials > 1 {
		variance := (sumSq - n*mean*mean) / (n - 1)
		if variance > 0 {
			s.StdErr = math.Sqrt(variance / n)
		}
	}
	return s
}

func (a *Advisor) sampleRun(rng *rand.Rand, counts []int, maxAttempts int) (float64, bool) {
	var elapsed float64
	attempts := 0
	for attempts < maxAttempts {
		j := 0
		for ; j < len(a.segments); j++ {
			m := a.segments[j]
			ok := rng.Float64() < m.SuccessProb(float64(counts[j]))
			counts[j]++
			attempts++
			elapsed += m.AttemptTime(ok)
			if !ok {
				break
			}
		}
		if j == len(a.segments) {
			return elapsed, true
		}
	}
	return elapsed, false
}
