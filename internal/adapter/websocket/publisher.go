package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"

	"github.com/pscheid92/emofusion/internal/adapter/metrics"
	"github.com/pscheid92/emofusion/internal/domain"
)

var _ domain.SessionCloser = (*Publisher)(nil)

// sessionEnded tells clients not to reconnect; the session will not come back.
var sessionEnded = centrifuge.Disconnect{Code: 4500, Reason: "session ended"}

// Publisher sends fusion output to centrifuge subscribers. It satisfies domain.Publisher and
// domain.SessionCloser.
type Publisher struct {
	node      *centrifuge.Node
	wsMetrics *metrics.WebSocketMetrics
}

func NewPublisher(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{node: node, wsMetrics: wsMetrics}
}

func (p *Publisher) PublishFusion(_ context.Context, update domain.FusionUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal fusion update: %w", err)
	}
	return p.publish(update.Session, data)
}

func (p *Publisher) PublishAlert(_ context.Context, session uuid.UUID, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return p.publish(session, data)
}

func (p *Publisher) publish(session uuid.UUID, data []byte) error {
	channel := Channel(session)
	if _, err := p.node.Publish(channel, data); err != nil {
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}
	if p.wsMetrics != nil {
		p.wsMetrics.MessagesPublished.WithLabelValues("centrifuge").Inc()
	}
	return nil
}

// SessionClosed disconnects every client watching session, on all nodes. Connections carry
// the session id as their user id.
func (p *Publisher) SessionClosed(_ context.Context, session uuid.UUID) error {
	if err := p.node.Disconnect(session.String(), centrifuge.WithCustomDisconnect(sessionEnded)); err != nil {
		return fmt.Errorf("disconnect session %s: %w", session, err)
	}
	return nil
}
