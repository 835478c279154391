package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty requirement", nil, "", true},
		{"full access", []string{"*"}, SettingsWrite, true},
		{"exact match", []string{UsersRead}, UsersRead, true},
		{"wildcard resource", []string{"inventory.*"}, InventoryDelete, true},
		{"wildcard does not leak to prefix-sharing resource", []string{"inventory.*"}, "inventorycheck.read", false},
		{"missing", []string{"inventory.*"}, UsersWrite, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.perms, tt.required))
		})
	}
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleHas(RoleAdmin, UsersWrite))
	assert.True(t, RoleHas(RoleAdmin, SettingsWrite))

	assert.True(t, RoleHas(RoleStaff, InventoryWrite))
	assert.True(t, RoleHas(RoleStaff, VehiclesDelete))
	assert.True(t, RoleHas(RoleStaff, ChecksWrite))
	assert.False(t, RoleHas(RoleStaff, UsersRead))
	assert.False(t, RoleHas(RoleStaff, UsersWrite))
	assert.False(t, RoleHas(RoleStaff, SettingsRead))

	assert.False(t, RoleHas("Guest", InventoryRead))
	assert.False(t, IsValidRole("Guest"))
	assert.True(t, IsValidRole(RoleStaff))
}

func TestHasAnyPermission(t *testing.T) {
	assert.True(t, HasAnyPermission(ForRole(RoleStaff), []string{SettingsWrite, ReportsRead}))
	assert.False(t, HasAnyPermission(ForRole(RoleStaff), []string{SettingsWrite, UsersDelete}))
}
