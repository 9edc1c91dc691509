// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the traceagent client.
//
// This package contains common helper functions used throughout the client
// for string manipulation and file operations.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateRunesNoEllipsis: UTF-8 safe truncation without a suffix
//
// File Operations:
//   - AtomicWriteFileWithDir: Crash-safe file writing with fsync
//
// # Usage
//
//	// Truncate long strings safely for display
//	display := util.TruncateRunes(longText, 50)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFileWithDir(path, data, 0600, 0700)
package util
