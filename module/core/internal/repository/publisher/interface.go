package publisher

import (
	"context"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
)

type EventPublisher interface {
	PublishTransition(ctx context.Context, t *domain.GeofenceTransition) error
	PublishSOS(ctx context.Context, a *domain.SOSAudit) error
}
