package report

import (
	"math"
	"strings"
)

const sparkChars = " .:-=+*#%@"

// OutcomeValues maps successes to 1 and failures to 0.
func OutcomeValues(outcomes []bool) []float64 {
	out := make([]float64, len(outcomes))
	for i, ok := range outcomes {
		if ok {
			out[i] = 1
		}
	}
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders values in [0, 1] as a single line of ASCII glyphs.
func Sparkline(values []float64) string {
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round(clamp01(v) * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
