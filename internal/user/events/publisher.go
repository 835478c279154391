package events

import (
	"context"

	"github.com/medistock/medistock-backend/internal/user/domain"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
)

// Publisher is satisfied by *messaging.Publisher.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// UserEventPublisher publishes user-related events. A nil publisher drops
// every event.
type UserEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewUserEventPublisher creates a new user event publisher
func NewUserEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*UserEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeUserEvents, "medistock-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps an existing publisher.
func NewWithPublisher(p Publisher, log *logger.Logger) *UserEventPublisher {
	return &UserEventPublisher{publisher: p, logger: log}
}

// PublishUserCreated publishes a user created event
func (p *UserEventPublisher) PublishUserCreated(ctx context.Context, user *domain.User) {
	if p == nil {
		return
	}

	data := messaging.UserCreatedEvent{
		UserID:   user.UID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		TenantID: user.TenantID,
	}
	if err := p.publisher.Publish(ctx, messaging.EventUserCreated, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", user.UID).Msg("failed to publish user created event")
	}
}

// PublishUserDeleted publishes a user deleted event
func (p *UserEventPublisher) PublishUserDeleted(ctx context.Context, user *domain.User) {
	if p == nil {
		return
	}

	data := messaging.UserDeletedEvent{
		UserID:   user.UID,
		Email:    user.Email,
		TenantID: user.TenantID,
	}
	if err := p.publisher.Publish(ctx, messaging.EventUserDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", user.UID).Msg("failed to publish user deleted event")
	}
}

// PublishUserRoleChanged publishes a user role changed event
func (p *UserEventPublisher) PublishUserRoleChanged(ctx context.Context, tenantID, userID, oldRole, newRole string) {
	if p == nil {
		return
	}

	data := messaging.UserRoleChangedEvent{
		UserID:   userID,
		OldRole:  oldRole,
		NewRole:  newRole,
		TenantID: tenantID,
	}
	if err := p.publisher.Publish(ctx, messaging.EventUserRoleChanged, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", userID).Msg("failed to publish user role changed event")
	}
}
