// Package permissions maps user roles to permission sets and checks them
// with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "inventory.*")
//   - "resource.action" - Specific action (e.g., "inventory.read")
package permissions

import (
	"strings"
)

// Roles known to the system.
const (
	RoleAdmin = "Admin"
	RoleStaff = "Staff"
)

// Permissions checked by route middleware.
const (
	InventoryRead   = "inventory.read"
	InventoryWrite  = "inventory.write"
	InventoryDelete = "inventory.delete"
	VehiclesRead    = "vehicles.read"
	VehiclesWrite   = "vehicles.write"
	VehiclesDelete  = "vehicles.delete"
	ChecksRead      = "checks.read"
	ChecksWrite     = "checks.write"
	ReportsRead     = "reports.read"
	SuggestionsRead = "suggestions.read"
	UsersRead       = "users.read"
	UsersWrite      = "users.write"
	UsersDelete     = "users.delete"
	SettingsRead    = "settings.read"
	SettingsWrite   = "settings.write"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {"*"},
	RoleStaff: {
		"inventory.*",
		"vehicles.*",
		"checks.*",
		"reports.*",
		"suggestions.*",
	},
}

// ForRole returns the permission set granted to a role. Unknown roles get none.
func ForRole(role string) []string {
	return rolePermissions[role]
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// RoleHas is a shorthand for HasPermission(ForRole(role), required).
func RoleHas(role, required string) bool {
	return HasPermission(ForRole(role), required)
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "inventory.*" matches "inventory.read", "inventory.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}
