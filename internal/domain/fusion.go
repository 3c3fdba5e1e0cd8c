package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FusionResult is the outcome of fusing one window at one window size.
// CombinedEmotions and CombinedAverages are weighted with normalized weights, so both sum to 1.
type FusionResult struct {
	WindowSize       int     `json:"windowSize"`
	SampleCount      int     `json:"sampleCount"`
	CombinedEmotions Scores  `json:"combinedEmotions"`
	CombinedAverages Scores  `json:"combinedAverages"`
	Deviations       Scores  `json:"deviations"`
	Dominant         Label   `json:"dominant"`
	DominantScore    float64 `json:"dominantScore"`
}

// TrendPoint pairs a window size with its result. Result is nil when the window is empty.
type TrendPoint struct {
	WindowSize int           `json:"windowSize"`
	Result     *FusionResult `json:"result"`
}

// Direction of a significant deviation.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
)

// Deviation is a category whose instantaneous reading departs from its trend.
type Deviation struct {
	Label     Label     `json:"label"`
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
}

// AlertLevel grades sustained-emotion alerts.
type AlertLevel string

const (
	AlertWarning AlertLevel = "warning"
	AlertInfo    AlertLevel = "info"
)

// Alert reports an emotion that stayed high across the alert horizon.
type Alert struct {
	Type    string     `json:"type"`
	Level   AlertLevel `json:"level"`
	Label   Label      `json:"label"`
	Mean    float64    `json:"mean"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// FusionUpdate is what a session publishes after every completed tick.
type FusionUpdate struct {
	Type        string       `json:"type"`
	Session     uuid.UUID    `json:"session"`
	Tick        uint64       `json:"tick"`
	At          time.Time    `json:"at"`
	Result      FusionResult `json:"result"`
	Trend       []TrendPoint `json:"trend"`
	Significant []Deviation  `json:"significant"`
}

// Publisher delivers fusion output to display and alerting collaborators.
type Publisher interface {
	PublishFusion(ctx context.Context, update FusionUpdate) error
	PublishAlert(ctx context.Context, session uuid.UUID, alert Alert) error
}

// SessionCloser is implemented by publishers that keep per-session state.
type SessionCloser interface {
	SessionClosed(ctx context.Context, session uuid.UUID) error
}
