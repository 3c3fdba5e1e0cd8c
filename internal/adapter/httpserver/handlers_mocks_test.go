package httpserver

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/platform/config"
)

type mockAppService struct {
	createSessionFn    func(ctx context.Context) (uuid.UUID, error)
	stopSessionFn      func(ctx context.Context, id uuid.UUID) error
	submitFaceFn       func(id uuid.UUID, frame domain.BlendshapeFrame) error
	submitVoiceFn      func(id uuid.UUID, v domain.EmotionVector) error
	submitTextFn       func(id uuid.UUID, text string) error
	submitTextVectorFn func(id uuid.UUID, v domain.EmotionVector) error
	latestFn           func(id uuid.UUID) (domain.FusionResult, bool, error)
	trendFn            func(id uuid.UUID, sizes []int) ([]domain.TrendPoint, error)
	historyFn          func(id uuid.UUID, n int) ([]domain.ModalitySample, error)
	sessionCount       int
}

func (m *mockAppService) CreateSession(ctx context.Context) (uuid.UUID, error) {
	if m.createSessionFn != nil {
		return m.createSessionFn(ctx)
	}
	return uuid.New(), nil
}

func (m *mockAppService) StopSession(ctx context.Context, id uuid.UUID) error {
	if m.stopSessionFn != nil {
		return m.stopSessionFn(ctx, id)
	}
	return nil
}

func (m *mockAppService) SessionCount() int { return m.sessionCount }

func (m *mockAppService) SubmitFace(id uuid.UUID, frame domain.BlendshapeFrame) error {
	if m.submitFaceFn != nil {
		return m.submitFaceFn(id, frame)
	}
	return nil
}

func (m *mockAppService) SubmitVoice(id uuid.UUID, v domain.EmotionVector) error {
	if m.submitVoiceFn != nil {
		return m.submitVoiceFn(id, v)
	}
	return nil
}

func (m *mockAppService) SubmitText(id uuid.UUID, text string) error {
	if m.submitTextFn != nil {
		return m.submitTextFn(id, text)
	}
	return nil
}

func (m *mockAppService) SubmitTextVector(id uuid.UUID, v domain.EmotionVector) error {
	if m.submitTextVectorFn != nil {
		return m.submitTextVectorFn(id, v)
	}
	return nil
}

func (m *mockAppService) Latest(id uuid.UUID) (domain.FusionResult, bool, error) {
	if m.latestFn != nil {
		return m.latestFn(id)
	}
	return domain.FusionResult{}, false, nil
}

func (m *mockAppService) Trend(id uuid.UUID, sizes []int) ([]domain.TrendPoint, error) {
	if m.trendFn != nil {
		return m.trendFn(id, sizes)
	}
	return nil, nil
}

func (m *mockAppService) History(id uuid.UUID, n int) ([]domain.ModalitySample, error) {
	if m.historyFn != nil {
		return m.historyFn(id, n)
	}
	return nil, nil
}

// mockHub writes one message to each served connection and records the session.
type mockHub struct {
	mu       sync.Mutex
	served   []uuid.UUID
	greeting []byte
	clients  int
}

func (m *mockHub) Serve(_ context.Context, session uuid.UUID, conn *websocket.Conn) error {
	m.mu.Lock()
	m.served = append(m.served, session)
	greeting := m.greeting
	m.mu.Unlock()

	if greeting != nil {
		_ = conn.WriteMessage(websocket.TextMessage, greeting)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (m *mockHub) ClientCount(uuid.UUID) int { return m.clients }

func (m *mockHub) getServed() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.served...)
}

type fixedViewers int

func (f fixedViewers) Viewers(uuid.UUID) int { return int(f) }

type mockSnapshots struct {
	update domain.FusionUpdate
	err    error
}

func (m *mockSnapshots) Snapshot(context.Context, uuid.UUID) (domain.FusionUpdate, error) {
	return m.update, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:              "development",
		Port:                "0",
		AppURL:              "http://localhost:8080",
		IngestRatePerSecond: 1000,
		IngestBurst:         1000,

		MaxStreamConnections:      100,
		MaxStreamConnectionsPerIP: 100,
	}
}

func newTestServer(t *testing.T, app appService, opts ...func(*Dependencies, *config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	deps := Dependencies{App: app, Hub: &mockHub{}}
	for _, opt := range opts {
		opt(&deps, cfg)
	}
	return NewServer(cfg, deps)
}

func withStreamLimits(total, perIP int) func(*Dependencies, *config.Config) {
	return func(_ *Dependencies, c *config.Config) {
		c.MaxStreamConnections = total
		c.MaxStreamConnectionsPerIP = perIP
	}
}

func withHealthChecks(checks ...HealthCheck) func(*Dependencies, *config.Config) {
	return func(d *Dependencies, _ *config.Config) { d.HealthChecks = checks }
}

func withHub(h streamHub) func(*Dependencies, *config.Config) {
	return func(d *Dependencies, _ *config.Config) { d.Hub = h }
}

func withViewers(v viewerCounter) func(*Dependencies, *config.Config) {
	return func(d *Dependencies, _ *config.Config) { d.Viewers = v }
}

func withSnapshots(s snapshotStore) func(*Dependencies, *config.Config) {
	return func(d *Dependencies, _ *config.Config) { d.Snapshots = s }
}

func withIngestLimit(ratePerSecond float64, burst int) func(*Dependencies, *config.Config) {
	return func(_ *Dependencies, c *config.Config) {
		c.IngestRatePerSecond = ratePerSecond
		c.IngestBurst = burst
	}
}
