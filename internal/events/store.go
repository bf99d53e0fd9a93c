package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"adminauth-service/internal/domain/auth"

	"go.uber.org/zap"
)

// storeQueueSize bounds the audit rows waiting for the database. Beyond it
// rows are dropped rather than slowing down logins.
const storeQueueSize = 256

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// EventStore appends events to durable storage.
type EventStore interface {
	Insert(ctx context.Context, ev auth.Event) error
}

// StorePublisher queues events for the audit log table and writes them one at
// a time from a single goroutine. Publish never waits for the database.
type StorePublisher struct {
	store   EventStore
	timeout time.Duration
	logger  *zap.Logger

	queue     chan auth.Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewStorePublisher(store EventStore, timeout time.Duration, logger *zap.Logger) *StorePublisher {
	return newStorePublisher(store, timeout, storeQueueSize, logger)
}

func newStorePublisher(store EventStore, timeout time.Duration, size int, logger *zap.Logger) *StorePublisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &StorePublisher{
		store:   store,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan auth.Event, size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.drain()
	return p
}

func (p *StorePublisher) Publish(_ context.Context, ev auth.Event) error {
	select {
	case <-p.stop:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.queue <- ev:
		return nil
	default:
		p.logger.Warn("audit queue full, dropping event",
			zap.String("event", string(ev.Type)),
			zap.Int64("user_id", ev.UserID),
		)
		return ErrQueueFull
	}
}

// drain writes queued events until Close, then flushes what is left.
func (p *StorePublisher) drain() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.queue:
			p.write(ev)
		case <-p.stop:
			for {
				select {
				case ev := <-p.queue:
					p.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *StorePublisher) write(ev auth.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.store.Insert(ctx, ev); err != nil {
		p.logger.Error("audit log write failed",
			zap.String("event", string(ev.Type)),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}

// Close stops accepting events and waits for the queue to be written.
func (p *StorePublisher) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
	return nil
}
