// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history archives chat transcripts in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/traceagent/internal/model"
)

// =============================================================================
// ERRORS AND DEFAULTS
// =============================================================================

var (
	ErrNotFound = errors.New("conversation not found")
	ErrClosed   = errors.New("history archive is closed")
)

// DefaultHistoryFile is the archive location relative to the user's home
// directory.
const DefaultHistoryFile = ".traceagent/history.db"

// schema is idempotent; applied on every Open.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    username   TEXT NOT NULL,
    client_id  TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    sender          TEXT NOT NULL,
    text            TEXT NOT NULL,
    is_error        INTEGER NOT NULL DEFAULT 0,
    insights        TEXT,
    created_at      INTEGER NOT NULL,
    FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_conversations_updated
    ON conversations(updated_at);
`

// =============================================================================
// ARCHIVE
// =============================================================================

// ConversationMeta is the listing projection of a stored conversation.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Username     string    `json:"username"`
	ClientID     string    `json:"client_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Archive stores chat transcripts in SQLite. Safe for concurrent use; the
// underlying pool is capped at one connection because SQLite allows a
// single writer.
type Archive struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// Open creates or opens an archive at path, creating parent directories
// as needed.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db, path: path, logger: zerolog.Nop()}, nil
}

// OpenDefault opens the archive at its default home-directory location.
func OpenDefault() (*Archive, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return Open(filepath.Join(home, DefaultHistoryFile))
}

// WithLogger sets the archive's logger and returns the archive.
func (a *Archive) WithLogger(logger zerolog.Logger) *Archive {
	a.logger = logger
	return a
}

// Close releases the database handle. Further calls fail with ErrClosed.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Path returns the archive's database path.
func (a *Archive) Path() string {
	return a.path
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// BeginConversation creates a conversation record and returns its ID. The
// title is typically the first user prompt, truncated by the caller.
func (a *Archive) BeginConversation(ctx context.Context, title, username, clientID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return "", ErrClosed
	}

	id := "conv_" + uuid.NewString()
	now := time.Now().Unix()
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, username, client_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, title, username, clientID, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// AppendMessage records a resolved message in a conversation. Pending
// placeholders are skipped; only final turns are archived.
func (a *Archive) AppendMessage(ctx context.Context, convID string, m *model.DisplayMessage) error {
	if m == nil || m.IsPending {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return ErrClosed
	}

	var insights any
	if m.Insights != nil {
		data, err := json.Marshal(m.Insights)
		if err != nil {
			return fmt.Errorf("failed to encode insights: %w", err)
		}
		insights = string(data)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender, text, is_error, insights, created_at)
		 SELECT ?, id, ?, ?, ?, ?, ? FROM conversations WHERE id = ?`,
		m.ID, string(m.Sender), m.Text, boolToInt(m.IsError), insights,
		m.Timestamp.Unix(), convID)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().Unix(), convID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return tx.Commit()
}

// Delete removes a conversation and its messages.
func (a *Archive) Delete(ctx context.Context, convID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return ErrClosed
	}

	res, err := a.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, convID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune keeps the most recently updated max conversations and deletes the
// rest. Returns the number deleted.
func (a *Archive) Prune(ctx context.Context, max int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return 0, ErrClosed
	}

	res, err := a.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id NOT IN (
		     SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
		 )`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// List returns all conversations, most recently updated first.
func (a *Archive) List(ctx context.Context) ([]ConversationMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, ErrClosed
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.username, c.client_id, c.created_at, c.updated_at,
		        COUNT(m.id)
		 FROM conversations c
		 LEFT JOIN messages m ON m.conversation_id = c.id
		 GROUP BY c.id
		 ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		var created, updated int64
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Username, &meta.ClientID,
			&created, &updated, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		meta.CreatedAt = time.Unix(created, 0)
		meta.UpdatedAt = time.Unix(updated, 0)
		out = append(out, meta)
	}
	return out, rows.Err()
}

// Messages returns a conversation's transcript in chronological order.
func (a *Archive) Messages(ctx context.Context, convID string) ([]model.DisplayMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, ErrClosed
	}

	var exists int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE id = ?`, convID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, sender, text, is_error, insights, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at, id`, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []model.DisplayMessage
	for rows.Next() {
		var m model.DisplayMessage
		var sender string
		var isError int
		var insights sql.NullString
		var created int64
		if err := rows.Scan(&m.ID, &sender, &m.Text, &isError, &insights, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = model.Sender(sender)
		m.IsError = isError != 0
		m.Timestamp = time.Unix(created, 0)
		if insights.Valid && insights.String != "" {
			var summary model.InsightSummary
			if err := json.Unmarshal([]byte(insights.String), &summary); err != nil {
				a.logger.Warn().Err(err).Str("message", m.ID).Msg("dropping unreadable insights")
			} else {
				m.Insights = &summary
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
