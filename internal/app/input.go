package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/emofusion/internal/domain"
)

// LatestValue is a push-fed Producer: clients Set readings whenever they have one and the
// sampling loop takes whatever is current at tick time. A reading older than maxAge counts as
// absent, so a client that stopped sending cannot keep a session alive with stale data.
type LatestValue struct {
	clock  clockwork.Clock
	maxAge time.Duration

	mu    sync.Mutex
	value domain.EmotionVector
	setAt time.Time
	set   bool
}

// NewLatestValue creates an empty holder. maxAge <= 0 disables staleness.
func NewLatestValue(clock clockwork.Clock, maxAge time.Duration) *LatestValue {
	return &LatestValue{clock: clock, maxAge: maxAge}
}

func (l *LatestValue) Set(v domain.EmotionVector) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.setAt = l.clock.Now()
	l.set = true
}

// Clear marks the modality absent, e.g. when the face left the frame.
func (l *LatestValue) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set = false
}

func (l *LatestValue) Produce(ctx context.Context) (domain.EmotionVector, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmotionVector{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.set {
		return domain.EmotionVector{}, domain.ErrNoDetection
	}
	if l.maxAge > 0 && l.clock.Since(l.setAt) > l.maxAge {
		return domain.EmotionVector{}, domain.ErrNoDetection
	}
	return l.value, nil
}
