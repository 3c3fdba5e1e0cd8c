package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pscheid92/emofusion/internal/domain"
)

// FeatureGroup is a set of blendshapes that move together for one facial expression.
type FeatureGroup int

const (
	GroupNone FeatureGroup = iota
	GroupSmile
	GroupFrown
	GroupBrowRaise
	GroupBrowDown
	GroupEyeWide
	GroupJawOpen
	numGroups
)

var groupNames = [numGroups]string{"none", "smile", "frown", "brow-raise", "brow-down", "eye-wide", "jaw-open"}

func (g FeatureGroup) String() string {
	if g < 0 || g >= numGroups {
		return fmt.Sprintf("group(%d)", int(g))
	}
	return groupNames[g]
}

// blendshapeGroups is the complete face landmarker vocabulary (52 categories).
// Categories that feed no emotion map to GroupNone.
var blendshapeGroups = map[string]FeatureGroup{
	"_neutral":            GroupNone,
	"browDownLeft":        GroupBrowDown,
	"browDownRight":       GroupBrowDown,
	"browInnerUp":         GroupBrowRaise,
	"browOuterUpLeft":     GroupBrowRaise,
	"browOuterUpRight":    GroupBrowRaise,
	"cheekPuff":           GroupNone,
	"cheekSquintLeft":     GroupNone,
	"cheekSquintRight":    GroupNone,
	"eyeBlinkLeft":        GroupNone,
	"eyeBlinkRight":       GroupNone,
	"eyeLookDownLeft":     GroupNone,
	"eyeLookDownRight":    GroupNone,
	"eyeLookInLeft":       GroupNone,
	"eyeLookInRight":      GroupNone,
	"eyeLookOutLeft":      GroupNone,
	"eyeLookOutRight":     GroupNone,
	"eyeLookUpLeft":       GroupNone,
	"eyeLookUpRight":      GroupNone,
	"eyeSquintLeft":       GroupNone,
	"eyeSquintRight":      GroupNone,
	"eyeWideLeft":         GroupEyeWide,
	"eyeWideRight":        GroupEyeWide,
	"jawForward":          GroupNone,
	"jawLeft":             GroupNone,
	"jawOpen":             GroupJawOpen,
	"jawRight":            GroupNone,
	"mouthClose":          GroupNone,
	"mouthDimpleLeft":     GroupNone,
	"mouthDimpleRight":    GroupNone,
	"mouthFrownLeft":      GroupFrown,
	"mouthFrownRight":     GroupFrown,
	"mouthFunnel":         GroupNone,
	"mouthLeft":           GroupNone,
	"mouthLowerDownLeft":  GroupNone,
	"mouthLowerDownRight": GroupNone,
	"mouthPressLeft":      GroupNone,
	"mouthPressRight":     GroupNone,
	"mouthPucker":         GroupNone,
	"mouthRight":          GroupNone,
	"mouthRollLower":      GroupNone,
	"mouthRollUpper":      GroupNone,
	"mouthShrugLower":     GroupNone,
	"mouthShrugUpper":     GroupNone,
	"mouthSmileLeft":      GroupSmile,
	"mouthSmileRight":     GroupSmile,
	"mouthStretchLeft":    GroupNone,
	"mouthStretchRight":   GroupNone,
	"mouthUpperUpLeft":    GroupNone,
	"mouthUpperUpRight":   GroupNone,
	"noseSneerLeft":       GroupNone,
	"noseSneerRight":      GroupNone,
}

var blendshapeLookup = func() map[string]FeatureGroup {
	m := make(map[string]FeatureGroup, len(blendshapeGroups))
	for name, g := range blendshapeGroups {
		m[strings.ToLower(name)] = g
	}
	return m
}()

// LookupBlendshape returns the feature group of a category name (case-insensitive).
func LookupBlendshape(name string) (FeatureGroup, bool) {
	g, ok := blendshapeLookup[strings.ToLower(name)]
	return g, ok
}

// KnownBlendshapes lists the recognised category names, sorted.
func KnownBlendshapes() []string {
	names := make([]string, 0, len(blendshapeGroups))
	for name := range blendshapeGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateVocabulary reports every name a classifier may emit that the table does not know.
// Unknown names are tolerated at scoring time, but a vocabulary mismatch usually means a
// classifier upgrade the table has not caught up with.
func ValidateVocabulary(names []string) error {
	var unknown []string
	for _, name := range names {
		if _, ok := LookupBlendshape(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown blendshape categories: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Coefficients are the linear weights from feature groups to raw emotion magnitudes.
type Coefficients struct {
	Smile        float64 `json:"smile" yaml:"smile"`
	Frown        float64 `json:"frown" yaml:"frown"`
	BrowDown     float64 `json:"browDown" yaml:"browDown"`
	SadBrowRaise float64 `json:"sadBrowRaise" yaml:"sadBrowRaise"`
	AngryFrown   float64 `json:"angryFrown" yaml:"angryFrown"`
}

func DefaultCoefficients() Coefficients {
	return Coefficients{
		Smile:        1.2,
		Frown:        1.1,
		BrowDown:     1.1,
		SadBrowRaise: 0.3,
		AngryFrown:   0.4,
	}
}

// Validate requires finite, non-negative coefficients.
func (c Coefficients) Validate() error {
	for name, v := range map[string]float64{
		"smile": c.Smile, "frown": c.Frown, "browDown": c.BrowDown,
		"sadBrowRaise": c.SadBrowRaise, "angryFrown": c.AngryFrown,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("blendshape coefficient %s=%v must be a non-negative number", name, v)
		}
	}
	return nil
}

// BlendshapeScorer converts one face's blendshape categories into an emotion distribution.
type BlendshapeScorer struct {
	coef Coefficients
}

func NewBlendshapeScorer(coef Coefficients) *BlendshapeScorer {
	return &BlendshapeScorer{coef: coef}
}

// GroupScores averages the categories present in each feature group.
// Groups with no category in the input score 0; unknown names are skipped.
func GroupScores(categories []domain.BlendshapeCategory) [numGroups]float64 {
	var sums [numGroups]float64
	var counts [numGroups]int
	for _, c := range categories {
		g, ok := LookupBlendshape(c.CategoryName)
		if !ok || g == GroupNone {
			continue
		}
		sums[g] += c.Score
		counts[g]++
	}
	for g := range sums {
		if counts[g] > 0 {
			sums[g] /= float64(counts[g])
		}
	}
	return sums
}

// Score maps categories to a normalized emotion distribution.
// An empty list means no face was detected and yields ErrNoDetection.
func (s *BlendshapeScorer) Score(categories []domain.BlendshapeCategory) (domain.Scores, error) {
	if len(categories) == 0 {
		return domain.Scores{}, domain.ErrNoDetection
	}

	g := GroupScores(categories)
	frown := s.coef.Frown * g[GroupFrown]

	var raw domain.Scores
	raw[domain.Happy] = s.coef.Smile * g[GroupSmile]
	raw[domain.Sad] = frown + s.coef.SadBrowRaise*g[GroupBrowRaise]
	raw[domain.Angry] = s.coef.BrowDown*g[GroupBrowDown] + s.coef.AngryFrown*frown
	raw[domain.Surprised] = (g[GroupEyeWide] + g[GroupJawOpen]) / 2
	raw[domain.Neutral] = math.Max(0, 1-raw.Sum())

	return Normalize(raw), nil
}

// Vector scores a frame. Confidence is the first category's score clamped to [0,1].
func (s *BlendshapeScorer) Vector(frame domain.BlendshapeFrame) (domain.EmotionVector, error) {
	scores, err := s.Score(frame.Categories)
	if err != nil {
		return domain.EmotionVector{}, err
	}
	return domain.EmotionVector{
		Timestamp:  frame.Timestamp,
		Confidence: clamp01(frame.Categories[0].Score),
		Emotions:   scores,
	}, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}
