package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"

	"github.com/pscheid92/emofusion/internal/adapter/metrics"
)

const redisPrefix = "emofusion"

// SessionLookup reports whether a fusion session is running.
type SessionLookup interface {
	HasSession(id uuid.UUID) bool
}

// SessionLookupFunc adapts a function to SessionLookup.
type SessionLookupFunc func(id uuid.UUID) bool

func (f SessionLookupFunc) HasSession(id uuid.UUID) bool { return f(id) }

// Channel is the centrifuge channel carrying a session's fusion updates and alerts.
func Channel(session uuid.UUID) string {
	return "fusion:" + session.String()
}

// NewNode creates a centrifuge node that subscribes each connection to the channel of the
// session named in its credentials.
func NewNode(sessions SessionLookup, wsMetrics *metrics.WebSocketMetrics, logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting(sessions, wsMetrics))
	node.OnConnect(onConnect(wsMetrics))

	return node, nil
}

func onConnecting(sessions SessionLookup, wsMetrics *metrics.WebSocketMetrics) func(context.Context, centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	reject := func(reason string) (centrifuge.ConnectReply, error) {
		if wsMetrics != nil {
			wsMetrics.Rejected.WithLabelValues(reason).Inc()
		}
		return centrifuge.ConnectReply{}, centrifuge.DisconnectInvalidToken
	}

	return func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		cred, ok := centrifuge.GetCredentials(ctx)
		if !ok || cred.UserID == "" {
			return reject("missing_session")
		}

		session, err := uuid.Parse(cred.UserID)
		if err != nil {
			slog.Warn("Invalid session id on connect", "session", cred.UserID, "error", err)
			return reject("invalid_session")
		}
		if !sessions.HasSession(session) {
			return reject("unknown_session")
		}

		return centrifuge.ConnectReply{
			Subscriptions: map[string]centrifuge.SubscribeOptions{
				Channel(session): {EmitPresence: true},
			},
		}, nil
	}
}

func onConnect(wsMetrics *metrics.WebSocketMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		slog.Debug("Client connected", "client_id", client.ID(), "session", client.UserID())
		if wsMetrics != nil {
			wsMetrics.ActiveConnections.Inc()
		}

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			if wsMetrics != nil {
				wsMetrics.ActiveConnections.Dec()
			}
		})
	}
}

// SetupRedis moves the node's broker and presence manager to Redis so every instance
// delivers updates for sessions fused elsewhere.
func SetupRedis(node *centrifuge.Node, redisAddr string) error {
	shard, err := centrifuge.NewRedisShard(node, centrifuge.RedisShardConfig{Address: redisAddr})
	if err != nil {
		return fmt.Errorf("create redis shard: %w", err)
	}
	shards := []*centrifuge.RedisShard{shard}

	broker, err := centrifuge.NewRedisBroker(node, centrifuge.RedisBrokerConfig{Prefix: redisPrefix, Shards: shards})
	if err != nil {
		return fmt.Errorf("create redis broker: %w", err)
	}
	node.SetBroker(broker)

	presence, err := centrifuge.NewRedisPresenceManager(node, centrifuge.RedisPresenceManagerConfig{Prefix: redisPrefix, Shards: shards})
	if err != nil {
		return fmt.Errorf("create redis presence manager: %w", err)
	}
	node.SetPresenceManager(presence)

	return nil
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelTrace, centrifuge.LogLevelDebug:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}

// ViewerCounter reports how many centrifuge clients watch a session.
type ViewerCounter struct {
	node *centrifuge.Node
}

func NewViewerCounter(node *centrifuge.Node) *ViewerCounter {
	return &ViewerCounter{node: node}
}

func (v *ViewerCounter) Viewers(session uuid.UUID) int {
	stats, err := v.node.PresenceStats(Channel(session))
	if err != nil {
		return 0
	}
	return stats.NumClients
}
