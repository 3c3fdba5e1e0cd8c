package fusion

import "github.com/pscheid92/emofusion/internal/domain"

// Dominant returns the highest-scoring label. Ties go to the earlier label;
// a vector with no positive entry reports neutral with score 0.
func Dominant(s domain.Scores) (domain.Label, float64) {
	best, bestScore := domain.Neutral, 0.0
	for _, l := range domain.Labels {
		if s[l] > bestScore {
			best, bestScore = l, s[l]
		}
	}
	return best, bestScore
}
