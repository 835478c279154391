// Package events publishes inventory changes to RabbitMQ and relays changes
// made by other service instances to the local live hub.
package events

import (
	"context"

	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
)

// Publisher is satisfied by *messaging.Publisher.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory-related events. A nil
// publisher is valid and drops every event, which is how the service runs
// without a broker.
type InventoryEventPublisher struct {
	publisher Publisher
	instance  string
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a publisher on the inventory exchange
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, instance string, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "medistock-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, instance, log), nil
}

// NewWithPublisher wraps an existing publisher.
func NewWithPublisher(p Publisher, instance string, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{publisher: p, instance: instance, logger: log}
}

// Instance returns the id stamped on every published event.
func (p *InventoryEventPublisher) Instance() string {
	if p == nil {
		return ""
	}
	return p.instance
}

// PublishChange publishes an item or hierarchy change.
func (p *InventoryEventPublisher) PublishChange(ctx context.Context, c live.Change) {
	if p == nil {
		return
	}

	eventType := messaging.EventHierarchyChanged
	if c.Resource == live.ResourceItem {
		eventType = messaging.EventItemChanged
	}

	data := messaging.InventoryChangedEvent{
		TenantID:   c.TenantID,
		Instance:   p.instance,
		Resource:   c.Resource,
		ResourceID: c.ResourceID,
		Action:     c.Action,
	}
	if a := actor.FromContext(ctx); a != nil {
		data.ActorID = a.ID
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("resource", c.Resource).Str("resource_id", c.ResourceID).Msg("failed to publish inventory change")
	}
}

// PublishCheckCompleted publishes a stored inventory check.
func (p *InventoryEventPublisher) PublishCheckCompleted(ctx context.Context, tenantID, checkID, checkedBy string, changedItems int) {
	if p == nil {
		return
	}

	data := messaging.CheckCompletedEvent{
		TenantID:     tenantID,
		Instance:     p.instance,
		CheckID:      checkID,
		CheckedBy:    checkedBy,
		ChangedItems: changedItems,
	}
	if err := p.publisher.Publish(ctx, messaging.EventCheckCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("check_id", checkID).Msg("failed to publish check completed event")
	}
}

// PublishExpiryNotified publishes the outcome of one tenant's expiration run.
func (p *InventoryEventPublisher) PublishExpiryNotified(ctx context.Context, data messaging.ExpiryNotifiedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventExpiryNotified, data); err != nil {
		p.logger.Error().Err(err).Str("tenant_id", data.TenantID).Msg("failed to publish expiry notified event")
	}
}

// PublishSettingsChanged tells other instances to drop cached settings.
func (p *InventoryEventPublisher) PublishSettingsChanged(ctx context.Context, tenantID string) {
	if p == nil {
		return
	}

	data := messaging.InventoryChangedEvent{
		TenantID: tenantID,
		Instance: p.instance,
		Resource: "settings",
		Action:   live.ActionUpdated,
	}
	if err := p.publisher.Publish(ctx, messaging.EventSettingsChanged, data); err != nil {
		p.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to publish settings changed event")
	}
}
