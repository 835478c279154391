package service

import (
	"context"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// changeFeed forwards committed writes to local live subscribers and to the
// other service instances. Both sinks are optional.
type changeFeed struct {
	hub       *live.Hub
	publisher *events.InventoryEventPublisher
}

func (f changeFeed) emit(ctx context.Context, resource, id, action string) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return
	}

	c := live.Change{
		TenantID:   tenantID,
		Resource:   resource,
		ResourceID: id,
		Action:     action,
		At:         time.Now().UTC(),
	}
	if f.hub != nil {
		f.hub.Publish(c)
	}
	f.publisher.PublishChange(ctx, c)
}
