package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/emofusion/internal/adapter/emotionclient"
	"github.com/pscheid92/emofusion/internal/adapter/eventpublisher"
	"github.com/pscheid92/emofusion/internal/adapter/httpserver"
	"github.com/pscheid92/emofusion/internal/adapter/metrics"
	"github.com/pscheid92/emofusion/internal/adapter/redis"
	"github.com/pscheid92/emofusion/internal/adapter/websocket"
	"github.com/pscheid92/emofusion/internal/app"
	"github.com/pscheid92/emofusion/internal/platform/config"
	"github.com/pscheid92/emofusion/internal/platform/logging"
	"github.com/pscheid92/emofusion/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

type components struct {
	srv         *httpserver.Server
	appSvc      *app.Service
	broadcaster *websocket.Broadcaster
	node        *centrifuge.Node
	classifier  *emotionclient.Client
	redisClient *goredis.Client
}

func runGracefulShutdown(c components) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		c.appSvc.Stop()
		c.broadcaster.Stop()

		if err := c.node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}
		if c.classifier != nil {
			c.classifier.Close()
		}
		if c.redisClient != nil {
			if err := c.redisClient.Close(); err != nil {
				slog.Error("Redis close error", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupNode(cfg *config.Config, sessions websocket.SessionLookup, wsMetrics *metrics.WebSocketMetrics, redisClient *goredis.Client) *centrifuge.Node {
	node, err := websocket.NewNode(sessions, wsMetrics, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		if err := websocket.SetupRedis(node, redisClient.Options().Addr); err != nil {
			slog.Error("Failed to set up centrifuge Redis engine", "error", err)
			os.Exit(1)
		}
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to start centrifuge node", "error", err)
		os.Exit(1)
	}
	return node
}

func serviceConfig(cfg *config.Config) app.ServiceConfig {
	fs, err := cfg.Fusion()
	if err != nil {
		slog.Error("Invalid fusion settings", "error", err)
		os.Exit(1)
	}

	return app.ServiceConfig{
		Loop: app.LoopConfig{
			TickInterval:       cfg.TickInterval,
			WindowCapacity:     cfg.WindowCapacity,
			WindowSize:         fs.WindowSize,
			TrendWindows:       fs.TrendWindows,
			Weights:            fs.Weights,
			DeviationThreshold: fs.DeviationThreshold,
			Alerts:             fs.Alerts,
		},
		Coefficients: fs.Coefficients,
		InputMaxAge:  cfg.InputMaxAge,
		TextMaxAge:   cfg.TextMaxAge,
		MaxSessions:  cfg.MaxSessions,
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	svcCfg := serviceConfig(cfg)

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	fusionMetrics := metrics.NewFusionMetrics(reg)
	externalMetrics := metrics.NewExternalMetrics(reg)

	var healthChecks []httpserver.HealthCheck

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(context.Background(), cfg, metrics.NewRedisMetrics(reg))
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		slog.Info("REDIS_URL not set, running single-instance")
	}

	// The node is built before the service, so its session lookup resolves lazily.
	var appSvc *app.Service
	node := setupNode(cfg, websocket.SessionLookupFunc(func(id uuid.UUID) bool {
		return appSvc != nil && appSvc.HasSession(id)
	}), wsMetrics, redisClient)

	broadcaster := websocket.NewBroadcaster(clock, cfg.MaxWebSocketClients, wsMetrics)
	targets := []eventpublisher.Target{
		{Name: "websocket", Publisher: broadcaster},
		{Name: "centrifuge", Publisher: websocket.NewPublisher(node, wsMetrics)},
	}

	var snapshots *redis.Publisher
	if redisClient != nil {
		snapshots = redis.NewPublisher(redisClient)
		targets = append(targets, eventpublisher.Target{Name: "redis", Publisher: snapshots})
	}

	// Leave the interface nil, not a typed nil pointer, when no service is configured.
	var classifier app.TextClassifier
	var emotionClient *emotionclient.Client
	if cfg.EmotionServiceURL != "" {
		emotionClient = emotionclient.New(emotionclient.Config{
			BaseURL: cfg.EmotionServiceURL,
			Timeout: cfg.EmotionServiceTimeout,
			Clock:   clock,
		}, externalMetrics)
		classifier = emotionClient
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "emotion_service", Check: emotionClient.Check})
	}

	appSvc = app.NewService(svcCfg, eventpublisher.New(targets...), classifier, clock, fusionMetrics)

	deps := httpserver.Dependencies{
		App: appSvc,
		Hub: broadcaster,
		CentrifugeHandler: centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
			CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.AppEnv == "development"),
		}),
		Viewers:        websocket.NewViewerCounter(node),
		HTTPMetrics:    httpMetrics,
		MetricsHandler: metrics.Handler(reg),
		HealthChecks:   healthChecks,
	}
	if snapshots != nil {
		deps.Snapshots = snapshots
	}
	srv := httpserver.NewServer(cfg, deps)

	done := runGracefulShutdown(components{
		srv:         srv,
		appSvc:      appSvc,
		broadcaster: broadcaster,
		node:        node,
		classifier:  emotionClient,
		redisClient: redisClient,
	})

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
