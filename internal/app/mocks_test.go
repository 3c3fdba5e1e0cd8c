package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/emofusion/internal/domain"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type mockPublisher struct {
	mu      sync.Mutex
	updates []domain.FusionUpdate
	alerts  []domain.Alert
	closed  []uuid.UUID
	err     error
}

func (m *mockPublisher) SessionClosed(_ context.Context, session uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, session)
	return nil
}

func (m *mockPublisher) getClosed() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.closed...)
}

func (m *mockPublisher) PublishFusion(_ context.Context, update domain.FusionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, update)
	return m.err
}

func (m *mockPublisher) PublishAlert(_ context.Context, _ uuid.UUID, alert domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return m.err
}

func (m *mockPublisher) getUpdates() []domain.FusionUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.FusionUpdate, len(m.updates))
	copy(out, m.updates)
	return out
}

func (m *mockPublisher) getAlerts() []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

type mockRecorder struct {
	mu        sync.Mutex
	recorded  int
	dropped   map[string]int
	failures  map[domain.Modality]int
	alerts    map[domain.AlertLevel]int
	active    int
	deviation map[domain.Label]float64
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		dropped:   map[string]int{},
		failures:  map[domain.Modality]int{},
		alerts:    map[domain.AlertLevel]int{},
		deviation: map[domain.Label]float64{},
	}
}

func (m *mockRecorder) TickRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded++
}

func (m *mockRecorder) TickDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *mockRecorder) ProducerFailed(mod domain.Modality) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[mod]++
}

func (m *mockRecorder) DeviationObserved(l domain.Label, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviation[l] = delta
}

func (m *mockRecorder) AlertRaised(level domain.AlertLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[level]++
}

func (m *mockRecorder) SessionsActive(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func (m *mockRecorder) activeSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

type mockClassifier struct {
	mu       sync.Mutex
	calls    []string
	classify func(ctx context.Context, text string) (domain.EmotionVector, error)
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (domain.EmotionVector, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	return m.classify(ctx, text)
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func fixed(s domain.Scores) domain.Producer {
	return domain.ProducerFunc(func(context.Context) (domain.EmotionVector, error) {
		return domain.EmotionVector{Timestamp: epoch, Confidence: 0.9, Emotions: s}, nil
	})
}

func absent() domain.Producer {
	return domain.ProducerFunc(func(context.Context) (domain.EmotionVector, error) {
		return domain.EmotionVector{}, domain.ErrNoDetection
	})
}

func happy() domain.Scores   { return domain.Scores{1, 0, 0, 0, 0} }
func angry() domain.Scores   { return domain.Scores{0, 0, 1, 0, 0} }
func neutral() domain.Scores { return domain.NeutralScores() }
