package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/emofusion/internal/domain"
)

const (
	keyPrefix   = "emofusion:"
	snapshotTTL = 10 * time.Minute
)

// FusionChannel is the Redis Pub/Sub channel for a session's fusion updates.
func FusionChannel(session uuid.UUID) string { return keyPrefix + "fusion:" + session.String() }

// AlertChannel is the Redis Pub/Sub channel for a session's alerts.
func AlertChannel(session uuid.UUID) string { return keyPrefix + "alerts:" + session.String() }

func snapshotKey(session uuid.UUID) string { return keyPrefix + "latest:" + session.String() }

// Publisher forwards fusion output to Redis for consumers outside this process. Each update is
// published and also kept as the session's latest snapshot so late subscribers can catch up.
// It satisfies domain.Publisher.
type Publisher struct {
	rdb *goredis.Client
}

func NewPublisher(rdb *goredis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) PublishFusion(ctx context.Context, update domain.FusionUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal fusion update: %w", err)
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey(update.Session), data, snapshotTTL)
		pipe.Publish(ctx, FusionChannel(update.Session), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish fusion update: %w", err)
	}
	return nil
}

func (p *Publisher) PublishAlert(ctx context.Context, session uuid.UUID, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := p.rdb.Publish(ctx, AlertChannel(session), data).Err(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Snapshot returns the most recent fusion update stored for a session.
func (p *Publisher) Snapshot(ctx context.Context, session uuid.UUID) (domain.FusionUpdate, error) {
	data, err := p.rdb.Get(ctx, snapshotKey(session)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.FusionUpdate{}, domain.ErrSessionNotFound
		}
		return domain.FusionUpdate{}, fmt.Errorf("get snapshot: %w", err)
	}

	var update domain.FusionUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return domain.FusionUpdate{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return update, nil
}

// SessionClosed drops the snapshot of a stopped session.
func (p *Publisher) SessionClosed(ctx context.Context, session uuid.UUID) error {
	if err := p.rdb.Del(ctx, snapshotKey(session)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
