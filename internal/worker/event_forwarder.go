package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/events"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

// EventForwarder moves audit events to a Publisher on a background
// goroutine so request handling never waits on the broker.
type EventForwarder struct {
	publisher events.Publisher
	logger    *zap.Logger
	queue     chan events.Event
	timeout   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEventForwarder builds a forwarder with a bounded queue.
func NewEventForwarder(publisher events.Publisher, logger *zap.Logger, queueSize int) *EventForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &EventForwarder{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan events.Event, queueSize),
		timeout:   defaultPublishTimeout,
	}
}

// Enqueue schedules event for publishing. A full queue drops the event.
func (f *EventForwarder) Enqueue(event events.Event) bool {
	select {
	case f.queue <- event:
		return true
	default:
		f.logger.Warn("event queue full; dropping event",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		return false
	}
}

// Start launches the delivery loop.
func (f *EventForwarder) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go f.run(ctx)
}

func (f *EventForwarder) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return
		case event := <-f.queue:
			f.forward(event)
		}
	}
}

func (f *EventForwarder) drain() {
	for {
		select {
		case event := <-f.queue:
			f.forward(event)
		default:
			return
		}
	}
}

func (f *EventForwarder) forward(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.publisher.Publish(ctx, event); err != nil {
		f.logger.Warn("event publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// Stop flushes queued events and closes the publisher.
func (f *EventForwarder) Stop() {
	f.once.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		f.wg.Wait()
		if err := f.publisher.Close(); err != nil {
			f.logger.Warn("event publisher close failed", zap.Error(err))
		}
	})
}
