// Package domain holds the user profile model.
package domain

import (
	"time"

	"github.com/medistock/medistock-backend/pkg/permissions"
)

// User is the profile of a login identity within a tenant. UID equals the
// identity uid.
type User struct {
	UID       string    `json:"uid" db:"uid"`
	TenantID  string    `json:"-" db:"tenant_id"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	FullName  string    `json:"full_name" db:"full_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether the user holds the Admin role.
func (u *User) IsAdmin() bool {
	return u.Role == permissions.RoleAdmin
}

// Permissions returns the permission set granted by the user's role.
func (u *User) Permissions() []string {
	return permissions.ForRole(u.Role)
}
