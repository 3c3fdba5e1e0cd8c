package fusion

import (
	"math"

	"github.com/pscheid92/emofusion/internal/domain"
)

// Normalize turns raw category weights into a distribution summing to 1.
// Negative and non-finite entries count as 0. An all-zero input yields the neutral fallback.
func Normalize(raw domain.Scores) domain.Scores {
	var clipped domain.Scores
	sum := 0.0
	for i, v := range raw {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		clipped[i] = v
		sum += v
	}

	if sum == 0 {
		return domain.NeutralScores()
	}

	for i := range clipped {
		clipped[i] /= sum
	}
	return clipped
}
