// Package actor identifies the user or system performing an action.
//
// Services read the actor from the request context to stamp the
// created_by/updated_by audit fields on every inventory document and
// to record who performed an inventory check.
package actor

import (
	"context"
	"fmt"
)

// SystemID is the actor id used for scheduled and system-initiated work.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
}

// DisplayName returns the name shown in audit fields, falling back to the email.
func (a *Actor) DisplayName() string {
	if a == nil {
		return "System"
	}
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.DisplayName(), a.Email)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// FromContextOrSystem returns the context actor or SystemActor when absent.
func FromContextOrSystem(ctx context.Context) *Actor {
	if a := FromContext(ctx); a != nil {
		return a
	}
	return SystemActor()
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActor returns an Actor representing the system itself.
// Use this for background jobs, scheduled tasks, and system-initiated operations.
func SystemActor() *Actor {
	return &Actor{
		ID:    SystemID,
		Name:  "System",
		Email: "system@medistock.local",
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemID
}
