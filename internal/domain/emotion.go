package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Label is one of the five fixed emotion categories.
type Label int

const (
	Happy Label = iota
	Sad
	Angry
	Surprised
	Neutral
)

// NumLabels is the size of the closed label set.
const NumLabels = 5

// VectorTolerance is how far a vector's sum may drift from 1 before it is rejected.
const VectorTolerance = 1e-6

// Labels lists every label in index order.
var Labels = [NumLabels]Label{Happy, Sad, Angry, Surprised, Neutral}

var labelNames = [NumLabels]string{"happy", "sad", "angry", "surprised", "neutral"}

func (l Label) String() string {
	if l < 0 || int(l) >= NumLabels {
		return fmt.Sprintf("label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel converts a category name to a Label.
func ParseLabel(s string) (Label, bool) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), true
		}
	}
	return 0, false
}

func (l Label) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= NumLabels {
		return nil, fmt.Errorf("unknown label %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	parsed, ok := ParseLabel(string(b))
	if !ok {
		return fmt.Errorf("unknown label %q", string(b))
	}
	*l = parsed
	return nil
}

// Scores holds one value per label, indexed by Label.
type Scores [NumLabels]float64

// NeutralScores is the degenerate "no signal" distribution.
func NeutralScores() Scores {
	var s Scores
	s[Neutral] = 1
	return s
}

func (s Scores) Get(l Label) float64 { return s[l] }

func (s Scores) Sum() float64 {
	total := 0.0
	for _, v := range s {
		total += v
	}
	return total
}

func (s Scores) Add(o Scores) Scores {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

func (s Scores) Sub(o Scores) Scores {
	for i := range s {
		s[i] -= o[i]
	}
	return s
}

func (s Scores) Scale(f float64) Scores {
	for i := range s {
		s[i] *= f
	}
	return s
}

// MarshalJSON encodes scores as a flat {"happy": 0.1, ...} object.
func (s Scores) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumLabels)
	for i, v := range s {
		m[labelNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON rejects unknown category names; missing names decode as 0.
func (s *Scores) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Scores
	for name, v := range m {
		l, ok := ParseLabel(name)
		if !ok {
			return fmt.Errorf("unknown emotion category %q", name)
		}
		out[l] = v
	}
	*s = out
	return nil
}

// EmotionVector is a producer's score distribution at one instant.
// Confidence is informational and never used in fusion math.
type EmotionVector struct {
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Emotions   Scores    `json:"emotions"`
}

// ValidateVector checks the invariant every vector must satisfy before it enters a window:
// finite non-negative entries summing to 1 and confidence within [0,1].
func ValidateVector(v EmotionVector) error {
	for i, x := range v.Emotions {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidVector, Label(i), x)
		}
	}
	if sum := v.Emotions.Sum(); math.Abs(sum-1) > VectorTolerance {
		return fmt.Errorf("%w: scores sum to %.6f", ErrInvalidVector, sum)
	}
	if math.IsNaN(v.Confidence) || v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidVector, v.Confidence)
	}
	return nil
}
