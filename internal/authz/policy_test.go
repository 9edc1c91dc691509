// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package authz provides role-based access control decisions.
package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/traceagent/internal/model"
)

func superAdmin() *model.Identity {
	return &model.Identity{Username: "root", Role: model.RoleSuperAdmin, Permissions: []model.Permission{model.PermAll}}
}

func clientAdmin(clientID string) *model.Identity {
	return &model.Identity{Username: clientID + "_admin", Role: model.RoleClientAdmin, ClientID: clientID}
}

func plainUser(clientID string) *model.Identity {
	return &model.Identity{Username: clientID + "_user1", Role: model.RoleUser, ClientID: clientID}
}

// =============================================================================
// TIER PREDICATE TESTS
// =============================================================================

func TestTierPredicates(t *testing.T) {
	assert.True(t, IsSuperAdmin(superAdmin()))
	assert.False(t, IsSuperAdmin(clientAdmin("maze_bank")))
	assert.False(t, IsSuperAdmin(nil))

	assert.True(t, IsClientAdmin(clientAdmin("maze_bank")))
	assert.False(t, IsClientAdmin(superAdmin()))
	assert.False(t, IsClientAdmin(plainUser("maze_bank")))
}

func TestCanSwitchClient(t *testing.T) {
	assert.True(t, CanSwitchClient(superAdmin()))
	assert.False(t, CanSwitchClient(clientAdmin("maze_bank")))
	assert.False(t, CanSwitchClient(plainUser("maze_bank")))
	assert.False(t, CanSwitchClient(nil))
}

// =============================================================================
// USER MANAGEMENT TESTS
// =============================================================================

func TestCanManageUsers_SuperAdmin(t *testing.T) {
	id := superAdmin()

	// Top tier manages any scope, including ones it does not belong to.
	assert.True(t, CanManageUsers(id, ""))
	assert.True(t, CanManageUsers(id, "maze_bank"))
	assert.True(t, CanManageUsers(id, "lifeinvader"))
}

func TestCanManageUsers_ClientAdmin(t *testing.T) {
	id := clientAdmin("maze_bank")

	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"own scope explicit", "maze_bank", true},
		{"scope omitted", "", true},
		{"foreign scope", "lifeinvader", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanManageUsers(id, tt.target))
		})
	}
}

func TestCanManageUsers_User(t *testing.T) {
	id := plainUser("maze_bank")

	assert.False(t, CanManageUsers(id, ""))
	assert.False(t, CanManageUsers(id, "maze_bank"))
	assert.False(t, CanManageUsers(nil, "maze_bank"))
}

func TestCanManageUsers_UnknownRole(t *testing.T) {
	id := &model.Identity{Username: "ghost", Role: model.ParseRole("root"), ClientID: "maze_bank"}

	// Fail-safe default: unrecognized roles can do nothing.
	assert.False(t, CanManageUsers(id, ""))
	assert.False(t, CanManageUsers(id, "maze_bank"))
}

// =============================================================================
// PERMISSION MATRIX TESTS
// =============================================================================

func TestHasPermission(t *testing.T) {
	// Explicit grant list wins.
	granted := &model.Identity{Username: "u", Role: model.RoleUser, ClientID: "c", Permissions: []model.Permission{model.PermAdminLogs}}
	assert.True(t, HasPermission(granted, model.PermAdminLogs))

	// Matrix floor applies when the grant list is empty.
	bare := &model.Identity{Username: "u", Role: model.RoleUser, ClientID: "c"}
	assert.True(t, HasPermission(bare, model.PermChat))
	assert.False(t, HasPermission(bare, model.PermAdminLogs))

	// Wildcard from the matrix.
	assert.True(t, HasPermission(superAdmin(), model.PermAdminLogs))

	assert.False(t, HasPermission(nil, model.PermChat))
}

func TestPermissionsForRole(t *testing.T) {
	assert.Equal(t, []model.Permission{model.PermAll}, PermissionsForRole(model.RoleSuperAdmin))
	assert.Contains(t, PermissionsForRole(model.RoleClientAdmin), model.PermAdminLogs)
	assert.NotContains(t, PermissionsForRole(model.RoleUser), model.PermAdminLogs)
	assert.Empty(t, PermissionsForRole(model.RoleUnknown))

	// Returned slice is a copy, not the matrix itself.
	perms := PermissionsForRole(model.RoleUser)
	perms[0] = model.PermAll
	assert.NotContains(t, PermissionsForRole(model.RoleUser), model.PermAll)
}
