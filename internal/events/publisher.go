// Package events delivers authentication audit events to their sinks.
package events

import (
	"context"
	"errors"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/pkg/logger"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when a sink's buffer is full and the event was
// dropped.
var ErrQueueFull = errors.New("event queue is full")

// Publisher delivers one event. Delivery is attempted at most once; callers
// log the error and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev auth.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev auth.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev auth.Event) error {
	return f(ctx, ev)
}

// Nop drops every event.
var Nop Publisher = PublisherFunc(func(context.Context, auth.Event) error { return nil })

// LogPublisher writes each event to the structured log.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("audit")}
}

func (p *LogPublisher) Publish(_ context.Context, ev auth.Event) error {
	level := zap.InfoLevel
	switch ev.Type {
	case auth.EventFailedLoginAttempt, auth.EventInactiveUserTriesToLogIn, auth.EventLockedUserTriesToLogIn:
		level = zap.WarnLevel
	case auth.EventUserLockedOut:
		level = zap.ErrorLevel
	}

	if ce := p.logger.Check(level, "auth event"); ce != nil {
		ce.Write(
			zap.String("event", string(ev.Type)),
			zap.Int64("user_id", ev.UserID),
			logger.Email(ev.Email),
			zap.Time("occurred_at", ev.OccurredAt),
		)
	}
	return nil
}

// Multi fans an event out to every publisher. All are attempted even if one
// fails.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev auth.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
