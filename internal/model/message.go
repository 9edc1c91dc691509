// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for identities, messages,
// and log payloads.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/traceagent/internal/util"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a chat turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAssistant:
		return "TraceAgent"
	default:
		return string(s)
	}
}

// =============================================================================
// DISPLAY MESSAGE TYPE
// =============================================================================

// DisplayMessage is one canonical, render-ready chat turn. Exactly one
// exists per conversation turn; once IsPending is cleared the message is
// treated as immutable.
type DisplayMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	// IsPending marks a provisional placeholder inserted while the backend
	// call is in flight. Cleared exactly once by Resolve.
	IsPending bool `json:"is_pending,omitempty"`

	// IsError marks a turn whose text is a formatted backend error. The
	// error itself travels on the normalizer's side channel; this flag only
	// lets the renderer style the bubble.
	IsError bool `json:"is_error,omitempty"`

	// Insights is the optional security-metric rollup for this turn.
	Insights *InsightSummary `json:"insights,omitempty"`
}

// NewUserMessage creates a resolved user turn.
func NewUserMessage(text string) *DisplayMessage {
	return &DisplayMessage{
		ID:        generateMessageID(),
		Sender:    SenderUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewPendingMessage creates a provisional assistant turn shown while the
// chat call is in flight.
func NewPendingMessage() *DisplayMessage {
	return &DisplayMessage{
		ID:        generateMessageID(),
		Sender:    SenderAssistant,
		Timestamp: time.Now(),
		IsPending: true,
	}
}

// NewAssistantMessage creates a resolved assistant turn.
func NewAssistantMessage(text string) *DisplayMessage {
	return &DisplayMessage{
		ID:        generateMessageID(),
		Sender:    SenderAssistant,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Resolve fills in the final text and clears the pending flag.
// Resolving an already-resolved message is a no-op: resolved turns are
// immutable.
func (m *DisplayMessage) Resolve(text string) {
	if !m.IsPending {
		return
	}
	m.Text = text
	m.IsPending = false
}

// Preview returns a truncated, single-purpose preview of the message text
// for listings. Rune-based so multi-byte characters are never split.
func (m *DisplayMessage) Preview(maxRunes int) string {
	return util.TruncateRunes(m.Text, maxRunes)
}

// IsEmpty reports whether the message has no content yet.
func (m *DisplayMessage) IsEmpty() bool {
	return m.Text == ""
}

// generateMessageID creates a unique message ID.
func generateMessageID() string {
	return "msg_" + uuid.NewString()
}
