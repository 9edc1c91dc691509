// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for identities, messages,
// and log payloads.
package model

import (
	"errors"
	"time"
)

// =============================================================================
// IDENTITY TYPE
// =============================================================================

// ErrScopeRequired indicates a non-super-admin identity arrived without a
// client scope.
var ErrScopeRequired = errors.New("identity below super admin requires a client scope")

// Identity is the authenticated principal: its role, client scope, granted
// permissions, and session credentials.
//
// An empty ClientID means cross-client access and is only valid for
// RoleSuperAdmin. The session lifecycle manager is the single writer of the
// current Identity; every other component only reads it.
type Identity struct {
	Username     string       `json:"username"`
	Role         Role         `json:"role"`
	ClientID     string       `json:"client_id"`
	Permissions  []Permission `json:"permissions"`
	SessionToken string       `json:"session_token"`
	JWTToken     string       `json:"jwt_token,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the identity's structural invariants.
func (id *Identity) Validate() error {
	if id.Username == "" {
		return errors.New("identity missing username")
	}
	if id.Role != RoleSuperAdmin && id.ClientID == "" {
		return ErrScopeRequired
	}
	return nil
}

// HasPermission reports whether the identity carries the given permission.
// PermAll implies every other permission.
func (id *Identity) HasPermission(p Permission) bool {
	if id == nil {
		return false
	}
	for _, held := range id.Permissions {
		if held == PermAll || held == p {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Readers get copies so the lifecycle manager
// stays the only writer.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	dup := *id
	dup.Permissions = append([]Permission(nil), id.Permissions...)
	return &dup
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// UserInfo is the backend's public projection of a user record, as returned
// by the user listing and token verification endpoints.
type UserInfo struct {
	Username    string       `json:"username"`
	Role        Role         `json:"role"`
	ClientID    string       `json:"client_id"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Client describes one tenant configured on the backend.
type Client struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Folder string            `json:"folder"`
	Logs   map[string]string `json:"logs"`
}

// TokenVerification is the result of re-validating a stored session token.
type TokenVerification struct {
	Valid bool      `json:"valid"`
	User  *UserInfo `json:"user,omitempty"`
}

// LogBundle is the columns+rows payload returned by the log endpoints and
// embedded in some chat replies. The core passes it through opaquely to the
// log-table collaborator; row contents are never interpreted here.
type LogBundle struct {
	Client       string           `json:"client"`
	LogType      string           `json:"log_type"`
	TotalEntries int              `json:"total_entries"`
	Columns      []string         `json:"columns"`
	SampleData   []map[string]any `json:"sample_data,omitempty"`
	FullData     []map[string]any `json:"full_data,omitempty"`
	URL          string           `json:"url,omitempty"`
}
