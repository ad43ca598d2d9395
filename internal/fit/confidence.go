package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/grind/internal/model"
)

const minInformationDet = 1e-15

// lowConfidence reports whether the fitted slope is statistically
// indistinguishable from zero, using the observed Fisher information.
func lowConfidence(outcomes []bool, beta0, beta1 float64) (low bool) {
	defer func() {
		if r := recover(); r != nil {
			low = true
		}
	}()

	info := information(len(outcomes), beta0, beta1)
	det := mat.Det(info)
	if !finite(det) || math.Abs(det) < minInformationDet {
		return true
	}
	variance := info.At(0, 0) / det
	if !finite(variance) || variance < 0 {
		return true
	}
	return math.Sqrt(variance) > math.Abs(beta1)
}

// information builds the 2x2 observed-information matrix at (beta0, beta1).
func information(n int, beta0, beta1 float64) *mat.SymDense {
	var h00, h01, h11 float64
	for i := 0; i < n; i++ {
		t := float64(i)
		p := model.Sigmoid(beta0 + beta1*t)
		w := p * (1 - p)
		h00 += w
		h01 += w * t
		h11 += w * t * t
	}
	return mat.NewSymDense(2, []float64{h00, h01, h01, h11})
}
