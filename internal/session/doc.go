// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the client's authentication lifecycle.
//
// The Manager is the single writer of the current Identity; every other
// component reads it through the Identity accessor. State moves between
// Unauthenticated, Initializing, and Authenticated only through the
// Manager's operations:
//
//   - Bootstrap re-validates a stored session token at startup, clearing
//     any session the backend rejects.
//   - Login exchanges credentials for an identity and persists it.
//   - Logout clears identity and store unconditionally; it cannot fail.
//
// # Key Types
//
//   - Manager: lifecycle owner; holds state, identity, and the last error.
//   - Backend: the two network calls the lifecycle needs. The api.Client
//     satisfies it.
//   - State: the three lifecycle states.
//
// # Usage
//
//	mgr := session.NewManager(apiClient, sessionStore)
//	mgr.Bootstrap(ctx)
//	if err := mgr.Login(ctx, username, password); err != nil {
//	    // mgr.Err() carries the human-readable message for display
//	}
//	id := mgr.Identity() // nil unless Authenticated
package session
