package eventpublisher

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/emofusion/internal/domain"
)

type recordingPublisher struct {
	updates int
	alerts  int
	err     error
}

func (r *recordingPublisher) PublishFusion(context.Context, domain.FusionUpdate) error {
	r.updates++
	return r.err
}

func (r *recordingPublisher) PublishAlert(context.Context, uuid.UUID, domain.Alert) error {
	r.alerts++
	return r.err
}

type closingPublisher struct {
	recordingPublisher
	closed []uuid.UUID
}

func (c *closingPublisher) SessionClosed(_ context.Context, session uuid.UUID) error {
	c.closed = append(c.closed, session)
	return nil
}

func TestEventPublisher_FansOutToAllTargets(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	ep := New(Target{"a", a}, Target{"b", b}, Target{"missing", nil})

	require.NoError(t, ep.PublishFusion(context.Background(), domain.FusionUpdate{}))
	require.NoError(t, ep.PublishAlert(context.Background(), uuid.New(), domain.Alert{}))

	assert.Equal(t, 1, a.updates)
	assert.Equal(t, 1, b.updates)
	assert.Equal(t, 1, a.alerts)
	assert.Equal(t, 1, b.alerts)
}

func TestEventPublisher_FailingTargetDoesNotBlockOthers(t *testing.T) {
	broken := &recordingPublisher{err: errors.New("redis down")}
	healthy := &recordingPublisher{}
	ep := New(Target{"redis", broken}, Target{"websocket", healthy})

	err := ep.PublishFusion(context.Background(), domain.FusionUpdate{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: redis down")
	assert.Equal(t, 1, healthy.updates)
}

func TestEventPublisher_SessionClosedOnlyReachesClosers(t *testing.T) {
	plain := &recordingPublisher{}
	closer := &closingPublisher{}
	ep := New(Target{"plain", plain}, Target{"closer", closer})
	session := uuid.New()

	require.NoError(t, ep.SessionClosed(context.Background(), session))
	assert.Equal(t, []uuid.UUID{session}, closer.closed)
}
