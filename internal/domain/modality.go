package domain

import (
	"context"
	"fmt"
	"time"
)

// Modality is one independent signal source.
type Modality int

const (
	Face Modality = iota
	Voice
	Text
)

// Modalities lists every modality in fusion order.
var Modalities = [3]Modality{Face, Voice, Text}

func (m Modality) String() string {
	switch m {
	case Face:
		return "face"
	case Voice:
		return "voice"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("modality(%d)", int(m))
	}
}

// ParseModality converts a modality name to a Modality.
func ParseModality(s string) (Modality, bool) {
	for _, m := range Modalities {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// ModalitySample is one {face, voice, text} triple recorded for a single tick.
type ModalitySample struct {
	At    time.Time     `json:"at"`
	Face  EmotionVector `json:"face"`
	Voice EmotionVector `json:"voice"`
	Text  EmotionVector `json:"text"`
}

// Of returns the vector recorded for m.
func (s ModalitySample) Of(m Modality) EmotionVector {
	switch m {
	case Voice:
		return s.Voice
	case Text:
		return s.Text
	default:
		return s.Face
	}
}

// Producer yields one modality's reading per tick.
// It returns ErrNoDetection (possibly wrapped) when it has nothing to report.
type Producer interface {
	Produce(ctx context.Context) (EmotionVector, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) (EmotionVector, error)

func (f ProducerFunc) Produce(ctx context.Context) (EmotionVector, error) { return f(ctx) }

// ModalityProducers bundles the three producers a sampling loop waits on.
type ModalityProducers struct {
	Face  Producer
	Voice Producer
	Text  Producer
}

func (p ModalityProducers) Of(m Modality) Producer {
	switch m {
	case Voice:
		return p.Voice
	case Text:
		return p.Text
	default:
		return p.Face
	}
}
