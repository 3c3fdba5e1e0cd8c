package fusion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/emofusion/internal/domain"
)

func cats(kv ...any) []domain.BlendshapeCategory {
	out := make([]domain.BlendshapeCategory, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, domain.BlendshapeCategory{CategoryName: kv[i].(string), Score: kv[i+1].(float64)})
	}
	return out
}

func TestBlendshapeTable_CoversFullVocabulary(t *testing.T) {
	assert.Len(t, KnownBlendshapes(), 52)
	require.NoError(t, ValidateVocabulary(KnownBlendshapes()))
}

func TestValidateVocabulary_ListsUnknownNames(t *testing.T) {
	err := ValidateVocabulary([]string{"mouthSmileLeft", "tongueOut", "browRaise"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tongueOut")
	assert.Contains(t, err.Error(), "browRaise")
	assert.NotContains(t, err.Error(), "mouthSmileLeft")
}

func TestLookupBlendshape_CaseInsensitive(t *testing.T) {
	g, ok := LookupBlendshape("MOUTHSMILERIGHT")
	require.True(t, ok)
	assert.Equal(t, GroupSmile, g)

	_, ok = LookupBlendshape("mouthSmile")
	assert.False(t, ok, "prefixes are not identifiers")
}

func TestBlendshapeScorer_EmptyIsNoDetection(t *testing.T) {
	s := NewBlendshapeScorer(DefaultCoefficients())

	_, err := s.Score(nil)
	assert.ErrorIs(t, err, domain.ErrNoDetection)

	_, err = s.Vector(domain.BlendshapeFrame{})
	assert.ErrorIs(t, err, domain.ErrNoDetection)
}

func TestBlendshapeScorer_RestingFaceIsNeutral(t *testing.T) {
	s := NewBlendshapeScorer(DefaultCoefficients())

	out, err := s.Score(cats("_neutral", 0.9, "eyeBlinkLeft", 0.4, "cheekPuff", 0.1))
	require.NoError(t, err)
	assert.Equal(t, domain.NeutralScores(), out)
}

func TestBlendshapeScorer_Smile(t *testing.T) {
	s := NewBlendshapeScorer(DefaultCoefficients())

	out, err := s.Score(cats("mouthSmileLeft", 0.5, "mouthSmileRight", 0.3))
	require.NoError(t, err)

	// smile = 0.4, happy = 0.48, neutral = 0.52
	assert.InDelta(t, 0.48, out[domain.Happy], 1e-9)
	assert.InDelta(t, 0.52, out[domain.Neutral], 1e-9)
	assert.InDelta(t, 1.0, out.Sum(), 1e-9)
}

func TestBlendshapeScorer_LinearCombination(t *testing.T) {
	s := NewBlendshapeScorer(DefaultCoefficients())

	out, err := s.Score(cats(
		"mouthFrownLeft", 0.4, "mouthFrownRight", 0.4,
		"browInnerUp", 0.6, "browOuterUpLeft", 0.0, "browOuterUpRight", 0.0,
		"browDownLeft", 0.5, "browDownRight", 0.3,
		"eyeWideLeft", 0.2, "eyeWideRight", 0.2, "jawOpen", 0.6,
	))
	require.NoError(t, err)

	frown := 1.1 * 0.4
	sad := frown + 0.3*0.2
	angry := 1.1*0.4 + 0.4*frown
	surprised := (0.2 + 0.6) / 2
	total := sad + angry + surprised // > 1, so neutral clips to 0

	assert.Equal(t, 0.0, out[domain.Happy])
	assert.InDelta(t, sad/total, out[domain.Sad], 1e-9)
	assert.InDelta(t, angry/total, out[domain.Angry], 1e-9)
	assert.InDelta(t, surprised/total, out[domain.Surprised], 1e-9)
	assert.Equal(t, 0.0, out[domain.Neutral])
}

func TestBlendshapeScorer_UnknownNamesContributeNothing(t *testing.T) {
	s := NewBlendshapeScorer(DefaultCoefficients())

	with, err := s.Score(cats("mouthSmileLeft", 0.5, "mouthSmileFancy", 1.0))
	require.NoError(t, err)
	without, err := s.Score(cats("mouthSmileLeft", 0.5))
	require.NoError(t, err)

	assert.Equal(t, without, with)
}

func TestBlendshapeScorer_CustomCoefficients(t *testing.T) {
	coef := DefaultCoefficients()
	coef.Smile = 2
	s := NewBlendshapeScorer(coef)

	out, err := s.Score(cats("mouthSmileLeft", 0.5, "mouthSmileRight", 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[domain.Happy], 1e-9)
}

func TestBlendshapeScorer_VectorConfidenceFromFirstCategory(t *testing.T) {
	s := NewBlendshapeScorer(DefaultCoefficients())
	frame := domain.BlendshapeFrame{Timestamp: epoch, Categories: cats("_neutral", 0.75, "jawOpen", 0.2)}

	v, err := s.Vector(frame)
	require.NoError(t, err)
	assert.Equal(t, epoch, v.Timestamp)
	assert.Equal(t, 0.75, v.Confidence)
	require.NoError(t, domain.ValidateVector(v))

	frame.Categories[0].Score = 1.5
	v, err = s.Vector(frame)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Confidence)
}

func TestCoefficients_Validate(t *testing.T) {
	require.NoError(t, DefaultCoefficients().Validate())

	bad := DefaultCoefficients()
	bad.AngryFrown = -1
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "angryFrown"))
}
