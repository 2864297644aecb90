package worker

import (
	"context"

	"github.com/spec-kit/user-guard/internal/service"
)

// StartAuditWorker registers audit handlers and starts event forwarding.
func StartAuditWorker(ctx context.Context, audit *service.AuditService, forwarder *EventForwarder) {
	if audit != nil {
		audit.RegisterHandlers()
	}
	if forwarder != nil {
		forwarder.Start(ctx)
	}
}
