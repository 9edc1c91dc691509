// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists the current session across restarts.
package store

import (
	"sync"
	"time"

	"github.com/jeranaias/traceagent/internal/model"
)

// =============================================================================
// STORED SESSION TYPE
// =============================================================================

// StoredSession is the durable projection of an Identity.
// Token duplicates Identity.SessionToken so a reader can check for a stored
// credential without deserializing the whole identity.
type StoredSession struct {
	Token    string         `json:"token"`
	Identity model.Identity `json:"identity"`
	SavedAt  time.Time      `json:"saved_at"`
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the persistence contract for the current session.
//
// All three operations are synchronous. Load returns (nil, nil) when
// nothing is stored; only genuine I/O or corruption surfaces as an error.
type Store interface {
	// Save persists the identity and its token, replacing any prior value.
	Save(id *model.Identity) error

	// Load returns the last saved session, or (nil, nil) if absent.
	Load() (*StoredSession, error)

	// Clear removes any saved session. Clearing an empty store is a no-op.
	Clear() error
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps the session in process memory. Used by tests and by
// embedders that manage persistence themselves.
type MemoryStore struct {
	mu      sync.Mutex
	current *StoredSession
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a copy of the identity.
func (s *MemoryStore) Save(id *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &StoredSession{
		Token:    id.SessionToken,
		Identity: *id.Clone(),
		SavedAt:  time.Now(),
	}
	return nil
}

// Load returns the stored session, or (nil, nil) if absent.
func (s *MemoryStore) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, nil
	}
	dup := *s.current
	dup.Identity = *s.current.Identity.Clone()
	return &dup, nil
}

// Clear removes the stored session.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return nil
}
