// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package authz provides role-based access control decisions.
package authz

import (
	"github.com/jeranaias/traceagent/internal/model"
)

// =============================================================================
// ROLE PERMISSIONS MATRIX
// =============================================================================

// rolePermissions defines the baseline permissions granted to each tier.
// Identities also carry an explicit grant list from the backend; the matrix
// is the fail-safe floor used when that list is empty.
var rolePermissions = map[model.Role][]model.Permission{
	model.RoleSuperAdmin: {
		model.PermAll,
	},
	model.RoleClientAdmin: {
		model.PermReadLogs,
		model.PermChat,
		model.PermAdminLogs,
	},
	model.RoleUser: {
		model.PermReadLogs,
		model.PermChat,
	},
}

// PermissionsForRole returns the baseline permission set for a role.
// Unknown roles get no permissions.
func PermissionsForRole(role model.Role) []model.Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	return append([]model.Permission(nil), perms...)
}

// =============================================================================
// TIER PREDICATES
// =============================================================================

// IsSuperAdmin reports whether the identity holds the top tier role.
// Alias strings ("vendor") are already collapsed at decode time, so this is
// a single comparison.
func IsSuperAdmin(id *model.Identity) bool {
	return id != nil && id.Role == model.RoleSuperAdmin
}

// IsClientAdmin reports whether the identity holds the mid tier role.
func IsClientAdmin(id *model.Identity) bool {
	return id != nil && id.Role == model.RoleClientAdmin
}

// =============================================================================
// CAPABILITY CHECKS
// =============================================================================

// CanSwitchClient reports whether the identity may change the active client
// context. Only the top tier works across clients.
func CanSwitchClient(id *model.Identity) bool {
	return IsSuperAdmin(id)
}

// CanManageUsers reports whether the identity may manage user accounts for
// the given client. An empty targetClientID means "the identity's own
// scope".
//
// Super admin is checked before client admin: when a legacy record carries
// an ambiguous role the higher capability wins.
func CanManageUsers(id *model.Identity, targetClientID string) bool {
	if id == nil {
		return false
	}

	// Top tier manages users for every client.
	if IsSuperAdmin(id) {
		return true
	}

	// Mid tier manages users only inside its own client scope.
	if IsClientAdmin(id) {
		return targetClientID == "" || targetClientID == id.ClientID
	}

	return false
}

// HasPermission reports whether the identity carries the named permission,
// consulting both the explicit grant list and the role matrix floor.
func HasPermission(id *model.Identity, p model.Permission) bool {
	if id == nil {
		return false
	}
	if id.HasPermission(p) {
		return true
	}
	for _, held := range rolePermissions[id.Role] {
		if held == model.PermAll || held == p {
			return true
		}
	}
	return false
}
