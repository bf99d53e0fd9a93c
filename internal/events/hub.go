package events

import (
	"context"

	"adminauth-service/internal/domain/auth"
)

// Broadcaster pushes an event to live subscribers.
type Broadcaster interface {
	BroadcastAuditEvent(ev auth.Event) error
}

// HubPublisher forwards events to the realtime audit stream.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, ev auth.Event) error {
	return p.hub.BroadcastAuditEvent(ev)
}
