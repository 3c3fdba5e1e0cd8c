package fusion

import (
	"time"

	"github.com/pscheid92/emofusion/internal/domain"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func scores(happy, sad, angry, surprised, neutral float64) domain.Scores {
	return domain.Scores{happy, sad, angry, surprised, neutral}
}

func vec(at time.Time, s domain.Scores) domain.EmotionVector {
	return domain.EmotionVector{Timestamp: at, Confidence: 1, Emotions: s}
}

// faceOnly builds a sample whose voice and text are neutral.
func faceOnly(at time.Time, face domain.Scores) domain.ModalitySample {
	return domain.ModalitySample{
		At:    at,
		Face:  vec(at, face),
		Voice: vec(at, domain.NeutralScores()),
		Text:  vec(at, domain.NeutralScores()),
	}
}

func tick(i int) time.Time {
	return epoch.Add(time.Duration(i) * 2 * time.Second)
}
