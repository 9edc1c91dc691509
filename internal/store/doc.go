// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists the current session across restarts.
//
// A stored session is the durable projection of an Identity: the opaque
// session token plus the serialized identity record, written together and
// cleared together. At most one stored session exists at a time.
//
// # Implementations
//
//   - FileStore: JSON record on disk, written atomically with 0600 perms
//   - EncryptedStore: FileStore contents sealed with AES-256-GCM
//   - MemoryStore: in-process store for tests and embedding
//
// Absence is a valid, non-error result: Load returns (nil, nil) when no
// session has been saved.
package store
