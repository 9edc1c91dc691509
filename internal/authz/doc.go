// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package authz provides role-based access control decisions.
//
// Every function here is a pure predicate over an Identity: no I/O, no side
// effects, no stored state. A false result is an ordinary authorization
// denial for the caller to surface, never an error path.
//
// # Key Functions
//
//   - IsSuperAdmin / IsClientAdmin: tier predicates
//   - CanSwitchClient: whether the identity may change client context
//   - CanManageUsers: whether the identity may manage users, optionally
//     scoped to a target client
//   - HasPermission: permission-matrix lookup with the identity's grants
//
// # Usage
//
//	if !authz.CanManageUsers(id, targetClient) {
//	    return errors.New("access denied")
//	}
package authz
