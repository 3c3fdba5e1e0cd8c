package eventpublisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pscheid92/emofusion/internal/domain"
)

// Target is one named destination for fusion output.
type Target struct {
	Name      string
	Publisher domain.Publisher
}

// EventPublisher implements domain.Publisher by fanning out to every configured target.
// A failing target does not stop delivery to the others; their errors are joined.
type EventPublisher struct {
	targets []Target
}

func New(targets ...Target) *EventPublisher {
	var kept []Target
	for _, t := range targets {
		if t.Publisher != nil {
			kept = append(kept, t)
		}
	}
	return &EventPublisher{targets: kept}
}

func (ep *EventPublisher) PublishFusion(ctx context.Context, update domain.FusionUpdate) error {
	return ep.each(func(p domain.Publisher) error { return p.PublishFusion(ctx, update) })
}

func (ep *EventPublisher) PublishAlert(ctx context.Context, session uuid.UUID, alert domain.Alert) error {
	return ep.each(func(p domain.Publisher) error { return p.PublishAlert(ctx, session, alert) })
}

// SessionClosed forwards to targets that keep per-session state.
func (ep *EventPublisher) SessionClosed(ctx context.Context, session uuid.UUID) error {
	return ep.each(func(p domain.Publisher) error {
		if closer, ok := p.(domain.SessionCloser); ok {
			return closer.SessionClosed(ctx, session)
		}
		return nil
	})
}

func (ep *EventPublisher) each(fn func(domain.Publisher) error) error {
	var errs []error
	for _, t := range ep.targets {
		if err := fn(t.Publisher); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
