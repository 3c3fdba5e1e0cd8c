package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/emofusion/internal/domain"
)

// TextClassifier scores an utterance. Implementations own their model or remote connection.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (domain.EmotionVector, error)
}

// TextProducer classifies the session's latest utterance. Each utterance is classified at
// most once; later ticks reuse the cached vector until a new utterance arrives or it expires.
type TextProducer struct {
	classifier TextClassifier
	clock      clockwork.Clock
	maxAge     time.Duration

	mu     sync.Mutex
	text   string
	setAt  time.Time
	gen    uint64
	cached *domain.EmotionVector
}

func NewTextProducer(classifier TextClassifier, clock clockwork.Clock, maxAge time.Duration) *TextProducer {
	return &TextProducer{classifier: classifier, clock: clock, maxAge: maxAge}
}

// SetUtterance replaces the current utterance. Blank text clears it.
func (p *TextProducer) SetUtterance(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
	p.setAt = p.clock.Now()
	p.gen++
	p.cached = nil
}

func (p *TextProducer) Produce(ctx context.Context) (domain.EmotionVector, error) {
	p.mu.Lock()
	text, gen, cached := p.text, p.gen, p.cached
	stale := p.maxAge > 0 && p.clock.Since(p.setAt) > p.maxAge
	p.mu.Unlock()

	if text == "" || stale {
		return domain.EmotionVector{}, domain.ErrNoDetection
	}
	if cached != nil {
		return *cached, nil
	}

	v, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return domain.EmotionVector{}, fmt.Errorf("classify utterance: %w", err)
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = p.clock.Now()
	}

	p.mu.Lock()
	if p.gen == gen {
		p.cached = &v
	}
	p.mu.Unlock()

	return v, nil
}
