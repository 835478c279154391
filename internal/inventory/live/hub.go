// Package live fans inventory changes out to the subscribers of a tenant.
package live

import (
	"sync"
	"time"
)

// Change describes a write that may alter derived inventory views.
type Change struct {
	TenantID   string    `json:"tenant_id"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Action     string    `json:"action"`
	At         time.Time `json:"at"`
}

// Resources and actions carried by a Change.
const (
	ResourceItem      = "item"
	ResourceVehicle   = "vehicle"
	ResourceCase      = "case"
	ResourceModuleBag = "module_bag"
	ResourceCheck     = "inventory_check"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

type subscriber struct {
	id int
	fn func(Change)
}

// Hub keeps one subscriber list per tenant. Callbacks run synchronously on
// the publishing goroutine and must not block.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for changes of tenantID. The returned function
// removes the subscription and is safe to call more than once.
func (h *Hub) Subscribe(tenantID string, fn func(Change)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[tenantID] = append(h.subs[tenantID], subscriber{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(tenantID, id) })
	}
}

func (h *Hub) remove(tenantID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[tenantID]
	for i, s := range list {
		if s.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.subs, tenantID)
		return
	}
	h.subs[tenantID] = list
}

// Publish delivers c to every subscriber of c.TenantID.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.RLock()
	list := h.subs[c.TenantID]
	h.mu.RUnlock()

	for _, s := range list {
		s.fn(c)
	}
}

// Subscribers returns the number of active subscriptions for tenantID.
func (h *Hub) Subscribers(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tenantID])
}
