package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/events"
)

// EventSink accepts events for delivery outside the process.
type EventSink interface {
	Enqueue(event events.Event) bool
}

// AuditService records auth events and hands them to an optional sink.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	sink       EventSink
}

// NewAuditService creates the service. sink may be nil.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, sink EventSink) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		sink:       sink,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.SubscribeAll(a.handle)
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}

	if event.Type == events.EventUserLoginFailed {
		a.logger.Warn("auth event", fields...)
	} else {
		a.logger.Info("auth event", fields...)
	}

	if a.sink != nil {
		a.sink.Enqueue(event)
	}
	return nil
}
