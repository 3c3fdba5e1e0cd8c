package domain

import (
	"fmt"
	"math"
)

// WeightConfig is the per-modality contribution to the fused output.
type WeightConfig struct {
	Face  float64 `json:"face" yaml:"face"`
	Voice float64 `json:"voice" yaml:"voice"`
	Text  float64 `json:"text" yaml:"text"`
}

// DefaultWeights favours the face slightly over voice and text.
func DefaultWeights() WeightConfig {
	return WeightConfig{Face: 0.4, Voice: 0.3, Text: 0.3}
}

func (w WeightConfig) Of(m Modality) float64 {
	switch m {
	case Voice:
		return w.Voice
	case Text:
		return w.Text
	default:
		return w.Face
	}
}

func (w WeightConfig) Sum() float64 { return w.Face + w.Voice + w.Text }

// Validate requires finite non-negative weights with a positive sum.
func (w WeightConfig) Validate() error {
	for _, m := range Modalities {
		v := w.Of(m)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s weight %v must be a non-negative number", ErrInvalidWeights, m, v)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return nil
}

// Normalized rescales the weights to sum to 1. Weights that already sum to 1 are returned
// unchanged so exact inputs stay exact.
func (w WeightConfig) Normalized() WeightConfig {
	sum := w.Sum()
	if sum == 1 || sum <= 0 {
		return w
	}
	return WeightConfig{Face: w.Face / sum, Voice: w.Voice / sum, Text: w.Text / sum}
}
