package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/emofusion/internal/adapter/metrics"
	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/platform/config"
)

type appService interface {
	CreateSession(ctx context.Context) (uuid.UUID, error)
	StopSession(ctx context.Context, id uuid.UUID) error
	SessionCount() int
	SubmitFace(id uuid.UUID, frame domain.BlendshapeFrame) error
	SubmitVoice(id uuid.UUID, v domain.EmotionVector) error
	SubmitText(id uuid.UUID, text string) error
	SubmitTextVector(id uuid.UUID, v domain.EmotionVector) error
	Latest(id uuid.UUID) (domain.FusionResult, bool, error)
	Trend(id uuid.UUID, sizes []int) ([]domain.TrendPoint, error)
	History(id uuid.UUID, n int) ([]domain.ModalitySample, error)
}

type streamHub interface {
	Serve(ctx context.Context, session uuid.UUID, conn *websocket.Conn) error
	ClientCount(session uuid.UUID) int
}

type viewerCounter interface {
	Viewers(session uuid.UUID) int
}

type snapshotStore interface {
	Snapshot(ctx context.Context, session uuid.UUID) (domain.FusionUpdate, error)
}

// Dependencies are the collaborators the server routes to. App and Hub are required.
type Dependencies struct {
	App               appService
	Hub               streamHub
	CentrifugeHandler http.Handler
	Viewers           viewerCounter
	Snapshots         snapshotStore
	HTTPMetrics       *metrics.HTTPMetrics
	MetricsHandler    http.Handler
	HealthChecks      []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app               appService
	hub               streamHub
	centrifugeHandler http.Handler
	viewers           viewerCounter
	snapshots         snapshotStore
	httpMetrics       *metrics.HTTPMetrics
	metricsHandler    http.Handler
	upgrader          websocket.Upgrader
	streamLimits      *connectionLimits

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:              e,
		config:            cfg,
		app:               deps.App,
		hub:               deps.Hub,
		centrifugeHandler: deps.CentrifugeHandler,
		viewers:           deps.Viewers,
		snapshots:         deps.Snapshots,
		httpMetrics:       deps.HTTPMetrics,
		metricsHandler:    deps.MetricsHandler,
		healthChecks:      deps.HealthChecks,
		streamLimits:      newConnectionLimits(cfg.MaxStreamConnections, cfg.MaxStreamConnectionsPerIP),
		startTime:         time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted under httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
