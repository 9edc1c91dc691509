// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for identities, messages,
// and log payloads.
package model

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents a canonical user role. Legacy alias strings from the
// backend ("vendor", "admin") are collapsed to one canonical value per tier
// at decode time, so downstream checks never branch on aliases.
type Role string

const (
	// RoleSuperAdmin is the top tier: cross-client access, user management
	// for every client, and client-context switching.
	RoleSuperAdmin Role = "super_admin"

	// RoleClientAdmin is the mid tier: admin rights inside a single client
	// scope only.
	RoleClientAdmin Role = "client_admin"

	// RoleUser is the bottom tier: read-only log access and chat.
	RoleUser Role = "user"

	// RoleUnknown is the fail-safe value for unrecognized role strings.
	// Every capability check denies it.
	RoleUnknown Role = ""
)

// roleAliases maps legacy wire strings to canonical roles.
// The backend historically issued "vendor" for the top tier and plain
// "admin" for the mid tier.
var roleAliases = map[string]Role{
	"super_admin":  RoleSuperAdmin,
	"vendor":       RoleSuperAdmin,
	"client_admin": RoleClientAdmin,
	"admin":        RoleClientAdmin,
	"user":         RoleUser,
}

// ParseRole normalizes a wire role string to its canonical Role.
// Unrecognized strings return RoleUnknown rather than an error so that a
// bad role degrades to zero capability instead of failing the decode.
func ParseRole(s string) Role {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return role
	}
	return RoleUnknown
}

// String returns the canonical string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleClientAdmin:
		return "Client Admin"
	case RoleUser:
		return "User"
	default:
		return "Unknown"
	}
}

// UnmarshalJSON decodes a role from its wire string, applying alias
// normalization.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

// =============================================================================
// PERMISSION TYPE
// =============================================================================

// Permission represents a named capability granted to an identity.
type Permission string

const (
	// PermAll is the wildcard permission held by super admins.
	PermAll Permission = "all"

	// PermReadLogs allows browsing the log tables for the identity's scope.
	PermReadLogs Permission = "read_logs"

	// PermChat allows submitting chat queries to the assistant.
	PermChat Permission = "chat"

	// PermAdminLogs allows access to administrative log views.
	PermAdminLogs Permission = "admin_logs"
)
