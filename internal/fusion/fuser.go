package fusion

import "github.com/pscheid92/emofusion/internal/domain"

// ModalityAverage is the element-wise mean of one modality across samples.
func ModalityAverage(samples []domain.ModalitySample, m domain.Modality) domain.Scores {
	var total domain.Scores
	if len(samples) == 0 {
		return total
	}
	for _, s := range samples {
		total = total.Add(s.Of(m).Emotions)
	}
	return total.Scale(1 / float64(len(samples)))
}

// Combine is the weighted element-wise sum of per-modality scores.
func Combine(per [3]domain.Scores, weights domain.WeightConfig) domain.Scores {
	var out domain.Scores
	for i, m := range domain.Modalities {
		out = out.Add(per[i].Scale(weights.Of(m)))
	}
	return out
}

// Compute fuses the newest windowSize samples of w.
//
// Averages and the latest reading come from the same tail slice. Weights are normalized to
// sum to 1 before combining, so both combined outputs are distributions and deviations keep
// the same scale whatever the configured weight magnitudes. It reports false for an empty window.
func Compute(w *Window, windowSize int, weights domain.WeightConfig) (domain.FusionResult, bool) {
	if w == nil || w.Len() == 0 {
		return domain.FusionResult{}, false
	}
	if windowSize < 1 {
		windowSize = 1
	}

	slice := w.Tail(windowSize)
	latest := slice[len(slice)-1]
	weights = weights.Normalized()

	var current, averages [3]domain.Scores
	for i, m := range domain.Modalities {
		current[i] = latest.Of(m).Emotions
		averages[i] = ModalityAverage(slice, m)
	}

	combined := Combine(current, weights)
	combinedAvg := Combine(averages, weights)
	dominant, score := Dominant(combined)

	return domain.FusionResult{
		WindowSize:       windowSize,
		SampleCount:      len(slice),
		CombinedEmotions: combined,
		CombinedAverages: combinedAvg,
		Deviations:       combined.Sub(combinedAvg),
		Dominant:         dominant,
		DominantScore:    score,
	}, true
}
