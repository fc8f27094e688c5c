package services

import (
	"context"

	"microfin-loans/internal/core/domain"
)

// EventPublisher delivers domain events to the outside world
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }
func (NopPublisher) Close() error                                { return nil }
