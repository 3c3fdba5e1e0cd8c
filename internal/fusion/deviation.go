package fusion

import (
	"math"

	"github.com/pscheid92/emofusion/internal/domain"
)

// DefaultDeviationThreshold is the minimum |delta| reported as significant.
const DefaultDeviationThreshold = 0.05

// Significant lists the labels whose deviation magnitude exceeds threshold, in label order.
func Significant(deviations domain.Scores, threshold float64) []domain.Deviation {
	var out []domain.Deviation
	for _, l := range domain.Labels {
		delta := deviations[l]
		if math.Abs(delta) <= threshold {
			continue
		}
		dir := domain.DirectionRising
		if delta < 0 {
			dir = domain.DirectionFalling
		}
		out = append(out, domain.Deviation{Label: l, Delta: delta, Direction: dir})
	}
	return out
}
