package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-guard/internal/events"
	"github.com/spec-kit/user-guard/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	fail   bool
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func TestAuditWorkerForwardsEvents(t *testing.T) {
	pub := &recordingPublisher{}
	dispatcher := events.NewInMemoryDispatcher()
	forwarder := NewEventForwarder(pub, nil, 8)
	audit := service.NewAuditService(dispatcher, nil, forwarder)

	StartAuditWorker(context.Background(), audit, forwarder)

	for _, typ := range events.AllTypes() {
		require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(typ)))
	}
	forwarder.Stop()

	assert.ElementsMatch(t, events.AllTypes(), pub.types())
	assert.True(t, pub.closed)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	forwarder := NewEventForwarder(pub, nil, 1)

	assert.True(t, forwarder.Enqueue(events.NewEvent(events.EventUserLoggedIn)))
	assert.False(t, forwarder.Enqueue(events.NewEvent(events.EventUserLoggedOut)))

	forwarder.Start(context.Background())
	forwarder.Stop()
	assert.Equal(t, []events.EventType{events.EventUserLoggedIn}, pub.types())
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	forwarder := NewEventForwarder(pub, nil, 4)
	forwarder.Start(context.Background())

	assert.True(t, forwarder.Enqueue(events.NewEvent(events.EventUserRegistered)))
	forwarder.Stop()
	forwarder.Stop()

	assert.Empty(t, pub.types())
	assert.True(t, pub.closed)
}
