// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the traceagent backend.
//
// The backend owns authentication, log storage, and assistant inference;
// this package only implements the request/response contract: JSON over
// HTTP with retry, typed error mapping, and response size limits. Chat
// replies are returned as raw JSON because their shape is untrusted — the
// chat package normalizes them.
//
// # Key Types
//
//   - Client: HTTP client with TLS, retry, and structured logging
//   - APIError: typed error carrying the backend status and message
//
// # Usage
//
// Create a client and log in:
//
//	client := api.NewClient("https://trace.example.com").
//	    WithTimeout(30 * time.Second).
//	    WithLogger(logger)
//	identity, err := client.Login(ctx, username, password)
//
// # Security
//
// Credentials are never logged; request logging records method, path,
// status, and duration only. All connections require TLS 1.2+.
package api
