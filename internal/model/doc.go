// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for identities, messages,
// and log payloads.
//
// This package defines the core domain types used throughout the client
// for representing the authenticated principal, render-ready chat turns,
// and the payloads attached to them.
//
// # Key Types
//
//   - Identity: The authenticated principal with role, client scope, and tokens
//   - Role: Canonical role enumeration (super admin, client admin, user)
//   - DisplayMessage: A single render-ready chat turn
//   - LogBundle: Columns+rows log payload passed through to the log viewer
//   - InsightSummary: Security-metric rollup attached to a DisplayMessage
//
// # Usage
//
// Create a pending turn and resolve it later:
//
//	msg := model.NewPendingMessage()
//	// ... backend call completes ...
//	msg.Resolve("3 errors found")
//
// Decode a role string from the wire:
//
//	role := model.ParseRole("vendor") // model.RoleSuperAdmin
package model
