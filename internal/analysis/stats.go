package analysis

import (
	"math"

	"github.com/sells-group/msi-cli/internal/model"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation around a precomputed mean.
func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// pearson computes the linear correlation coefficient of two equal-length
// series. It is undefined when either series has zero variance; that
// absence is meaningful (not the same as zero correlation) and must be
// propagated, never coerced.
func pearson(xs, ys []float64) model.OptFloat {
	if len(xs) != len(ys) || len(xs) < 2 {
		return model.Undef()
	}

	mx := mean(xs)
	my := mean(ys)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return model.Undef()
	}
	return model.Def(cov / math.Sqrt(varX*varY))
}

// sign returns -1, 0, or 1.
func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
