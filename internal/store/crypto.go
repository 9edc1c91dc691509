// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists the current session across restarts.
package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/traceagent/internal/model"
	"github.com/jeranaias/traceagent/internal/util"
)

// =============================================================================
// ENCRYPTION CONSTANTS
// =============================================================================

const (
	// nonceSize is the AES-GCM nonce size (96 bits).
	nonceSize = 12

	// keySize is the AES-256 key size.
	keySize = 32

	// saltSize is the key-derivation salt size.
	saltSize = 32

	// secretSize is the size of the random master secret in the key file.
	secretSize = 32

	// pbkdf2Iterations follows OWASP guidance for PBKDF2-SHA-256.
	pbkdf2Iterations = 600000
)

var (
	// ErrDecryptionFailed indicates the sealed record could not be opened
	// (wrong key or tampered data).
	ErrDecryptionFailed = errors.New("session decryption failed: authentication tag mismatch")

	// errInvalidSealedRecord indicates the on-disk format is malformed.
	errInvalidSealedRecord = errors.New("invalid sealed session format")
)

// =============================================================================
// ENCRYPTED STORE
// =============================================================================

// sealedRecord is the on-disk envelope: salt and nonce in the clear, the
// JSON session record sealed inside the ciphertext.
type sealedRecord struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// EncryptedStore seals the session record with AES-256-GCM before it
// touches disk. The key is derived with PBKDF2-SHA-256 from a random
// master secret kept in a separate 0600 key file, so stealing the session
// file alone yields nothing.
type EncryptedStore struct {
	path    string
	keyPath string
}

// NewEncryptedStore creates a store writing the sealed record to path and
// the master secret to keyPath. The secret is generated on first save.
func NewEncryptedStore(path, keyPath string) *EncryptedStore {
	return &EncryptedStore{path: path, keyPath: keyPath}
}

// Save seals and persists the identity, replacing any prior record.
func (s *EncryptedStore) Save(id *model.Identity) error {
	record := StoredSession{
		Token:    id.SessionToken,
		Identity: *id.Clone(),
		SavedAt:  time.Now(),
	}
	plaintext, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	secret, err := s.loadOrCreateSecret()
	if err != nil {
		return err
	}
	defer zeroBytes(secret)

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := sealedRecord{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
	}
	data, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("failed to marshal sealed session: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(s.path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write sealed session: %w", err)
	}
	return nil
}

// Load opens the sealed record, or returns (nil, nil) when absent.
// A record that fails authentication is reported as ErrDecryptionFailed so
// the caller can clear it and fall back to an unauthenticated start.
func (s *EncryptedStore) Load() (*StoredSession, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sealed session: %w", err)
	}

	var sealed sealedRecord
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, errInvalidSealedRecord
	}
	if len(sealed.Salt) != saltSize || len(sealed.Nonce) != nonceSize {
		return nil, errInvalidSealedRecord
	}

	secret, err := os.ReadFile(s.keyPath)
	if os.IsNotExist(err) {
		// Sealed record without its key cannot be opened.
		return nil, ErrDecryptionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}
	defer zeroBytes(secret)

	key := pbkdf2.Key(secret, sealed.Salt, pbkdf2Iterations, keySize, sha256.New)
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var record StoredSession
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, errInvalidSealedRecord
	}
	if record.Token == "" {
		return nil, nil
	}
	return &record, nil
}

// Clear removes the sealed record. The key file is kept so future sessions
// reuse it.
func (s *EncryptedStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove sealed session: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadOrCreateSecret reads the master secret, generating one on first use.
func (s *EncryptedStore) loadOrCreateSecret() ([]byte, error) {
	secret, err := os.ReadFile(s.keyPath)
	if err == nil && len(secret) == secretSize {
		return secret, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}

	secret = make([]byte, secretSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(s.keyPath, secret, 0600, 0700); err != nil {
		return nil, fmt.Errorf("failed to write session key: %w", err)
	}
	return secret, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// zeroBytes zeros key material to prevent memory disclosure.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
