package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// User events
	EventUserCreated     = "user.created"
	EventUserDeleted     = "user.deleted"
	EventUserRoleChanged = "user.role.changed"

	// Inventory events
	EventItemChanged      = "inventory.item.changed"
	EventHierarchyChanged = "inventory.hierarchy.changed"
	EventCheckCompleted   = "inventory.check.completed"
	EventExpiryNotified   = "inventory.expiry.notified"
	EventSettingsChanged  = "inventory.settings.changed"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// UserRoleChangedEvent is published when a user's role changes
type UserRoleChangedEvent struct {
	UserID   string `json:"user_id"`
	OldRole  string `json:"old_role"`
	NewRole  string `json:"new_role"`
	TenantID string `json:"tenant_id"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

// Inventory Events

// InventoryChangedEvent is published whenever an item, a container or the
// settings of a tenant change. Instance identifies the publishing process so
// it can skip its own events when relaying to live subscribers.
type InventoryChangedEvent struct {
	TenantID   string `json:"tenant_id"`
	Instance   string `json:"instance"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resource_id"`
	Action     string `json:"action"`
	ActorID    string `json:"actor_id,omitempty"`
}

// CheckCompletedEvent is published when an inventory check is stored
type CheckCompletedEvent struct {
	TenantID     string `json:"tenant_id"`
	Instance     string `json:"instance"`
	CheckID      string `json:"check_id"`
	CheckedBy    string `json:"checked_by"`
	ChangedItems int    `json:"changed_items"`
}

// ExpiryNotifiedEvent is published after the expiration job ran for a tenant
type ExpiryNotifiedEvent struct {
	TenantID   string `json:"tenant_id"`
	Outcome    string `json:"outcome"`
	Batches    int    `json:"batches"`
	Recipients int    `json:"recipients"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
