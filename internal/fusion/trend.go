package fusion

import "github.com/pscheid92/emofusion/internal/domain"

// DefaultTrendWindows are the short, medium and long horizons.
var DefaultTrendWindows = []int{5, 10, 30}

// Analyze runs Compute once per window size over the same window, preserving order.
func Analyze(w *Window, sizes []int, weights domain.WeightConfig) []domain.TrendPoint {
	points := make([]domain.TrendPoint, 0, len(sizes))
	for _, size := range sizes {
		point := domain.TrendPoint{WindowSize: size}
		if result, ok := Compute(w, size, weights); ok {
			point.Result = &result
		}
		points = append(points, point)
	}
	return points
}
