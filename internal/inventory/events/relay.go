package events

import (
	"context"

	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
)

// ChangeRelay forwards inventory events from other instances to the local
// hub. Events published by this instance were already delivered locally and
// are skipped.
type ChangeRelay struct {
	consumer          *messaging.Consumer
	hub               *live.Hub
	instance          string
	onSettingsChanged func(ctx context.Context, tenantID string)
	logger            *logger.Logger
}

// NewChangeRelay declares an exclusive queue so every instance receives all
// inventory events.
func NewChangeRelay(rmq *messaging.RabbitMQ, hub *live.Hub, instance string, log *logger.Logger) (*ChangeRelay, error) {
	consumer, err := messaging.NewExclusiveConsumer(rmq, log)
	if err != nil {
		return nil, err
	}
	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.#"); err != nil {
		return nil, err
	}

	r := newChangeRelay(hub, instance, log)
	r.consumer = consumer

	consumer.RegisterHandler(messaging.EventItemChanged, r.handleChange)
	consumer.RegisterHandler(messaging.EventHierarchyChanged, r.handleChange)
	consumer.RegisterHandler(messaging.EventCheckCompleted, r.handleCheckCompleted)
	consumer.RegisterHandler(messaging.EventSettingsChanged, r.handleSettingsChanged)

	return r, nil
}

func newChangeRelay(hub *live.Hub, instance string, log *logger.Logger) *ChangeRelay {
	return &ChangeRelay{hub: hub, instance: instance, logger: log}
}

// OnSettingsChanged registers a callback for settings changes made elsewhere.
func (r *ChangeRelay) OnSettingsChanged(fn func(ctx context.Context, tenantID string)) {
	r.onSettingsChanged = fn
}

// Start starts consuming messages
func (r *ChangeRelay) Start(ctx context.Context) error {
	return r.consumer.Start(ctx)
}

func (r *ChangeRelay) handleChange(ctx context.Context, event *messaging.Event) error {
	var data messaging.InventoryChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.Instance == r.instance {
		return nil
	}

	r.hub.Publish(live.Change{
		TenantID:   data.TenantID,
		Resource:   data.Resource,
		ResourceID: data.ResourceID,
		Action:     data.Action,
		At:         event.Timestamp,
	})
	return nil
}

func (r *ChangeRelay) handleCheckCompleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.CheckCompletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.Instance == r.instance || data.ChangedItems == 0 {
		return nil
	}

	r.hub.Publish(live.Change{
		TenantID:   data.TenantID,
		Resource:   live.ResourceCheck,
		ResourceID: data.CheckID,
		Action:     live.ActionCreated,
		At:         event.Timestamp,
	})
	return nil
}

func (r *ChangeRelay) handleSettingsChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.InventoryChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.Instance == r.instance || r.onSettingsChanged == nil {
		return nil
	}

	r.logger.Debug().Str("tenant_id", data.TenantID).Msg("settings changed on another instance")
	r.onSettingsChanged(ctx, data.TenantID)
	return nil
}
