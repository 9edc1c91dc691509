// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists the current session across restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/traceagent/internal/model"
	"github.com/jeranaias/traceagent/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// DefaultSessionFile is the session record location under the user's home
// directory.
const DefaultSessionFile = ".traceagent/session.json"

// FileStore persists the session as a single JSON record on disk.
// Writes are atomic with fsync, the file is 0600 and its directory 0700.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewDefaultFileStore creates a store at ~/.traceagent/session.json.
func NewDefaultFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return NewFileStore(filepath.Join(home, DefaultSessionFile)), nil
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save persists the identity and token, replacing any prior record.
// RELIABILITY: Atomic write with fsync prevents a torn record on crash.
func (s *FileStore) Save(id *model.Identity) error {
	record := StoredSession{
		Token:    id.SessionToken,
		Identity: *id.Clone(),
		SavedAt:  time.Now(),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// SECURITY: Session token on disk gets owner-only permissions.
	if err := util.AtomicWriteFileWithDir(s.path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load returns the stored session, or (nil, nil) when there is none.
func (s *FileStore) Load() (*StoredSession, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var record StoredSession
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if record.Token == "" {
		// A record without a token cannot be re-validated; treat as absent.
		return nil, nil
	}
	return &record, nil
}

// Clear removes the session file. Missing files are not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
