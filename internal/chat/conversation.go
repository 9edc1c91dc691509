// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/traceagent/internal/model"
)

// =============================================================================
// CONVERSATION
// =============================================================================

// MaxMessages bounds the in-memory transcript. Oldest turns are pruned
// once the bound is hit.
const MaxMessages = 1000

// Turn is the pair of messages created when the user submits a prompt: the
// resolved user turn and the provisional assistant placeholder, plus the
// in-flight token the eventual reply must present.
type Turn struct {
	User    *model.DisplayMessage
	Pending *model.DisplayMessage
	Token   uint64
}

// Conversation owns one chat transcript and its in-flight request state.
//
// By default concurrent submissions are independent: each reply resolves
// its own placeholder by token, whatever order the replies land in
// (last-resolved-wins). With strict ordering enabled, each Begin
// supersedes any outstanding request: the orphaned placeholder is removed
// and a reply presenting a superseded token is silently discarded.
type Conversation struct {
	mu         sync.Mutex
	messages   []*model.DisplayMessage
	normalizer *Normalizer
	logger     zerolog.Logger
	strict     bool

	latest  uint64
	pending map[uint64]string // token -> placeholder message ID
}

// NewConversation creates an empty conversation. A nil normalizer gets the
// default one.
func NewConversation(n *Normalizer) *Conversation {
	if n == nil {
		n = NewNormalizer()
	}
	return &Conversation{
		normalizer: n,
		logger:     zerolog.Nop(),
		pending:    make(map[uint64]string),
	}
}

// WithLogger sets the conversation's logger and returns the conversation.
func (c *Conversation) WithLogger(logger zerolog.Logger) *Conversation {
	c.logger = logger
	return c
}

// WithStrictOrdering makes each Begin supersede any outstanding request,
// so only the latest reply is ever accepted.
func (c *Conversation) WithStrictOrdering() *Conversation {
	c.strict = true
	return c
}

// Begin appends a resolved user turn and a pending assistant placeholder,
// and issues the in-flight token for the reply.
func (c *Conversation) Begin(userText string) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.strict {
		for token, id := range c.pending {
			c.removeLocked(id)
			delete(c.pending, token)
			c.logger.Debug().Uint64("token", token).Msg("superseded in-flight chat request")
		}
	}

	user := model.NewUserMessage(userText)
	pending := model.NewPendingMessage()

	c.latest++
	c.pending[c.latest] = pending.ID

	c.messages = append(c.messages, user, pending)
	c.pruneLocked()

	return Turn{User: user, Pending: pending, Token: c.latest}
}

// ResolveReply normalizes a raw backend reply and fills the matching
// placeholder in place. A reply whose token is no longer accepted is
// discarded and (nil, nil) returned. When the reply is a structured
// backend error the resolved message still renders and the returned error
// wraps ErrBackendReported.
func (c *Conversation) ResolveReply(token uint64, raw json.RawMessage) (*model.DisplayMessage, error) {
	// Normalization is pure; do it outside the lock.
	normalized, backendErr := c.normalizer.Normalize(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.acceptLocked(token)
	if pending == nil {
		return nil, nil
	}

	pending.Resolve(normalized.Text)
	pending.IsError = normalized.IsError
	pending.Insights = normalized.Insights
	return pending, backendErr
}

// ResolveTransportFailure fills the matching placeholder with the fixed
// fallback text after the chat call itself failed. The reply token rules
// are the same as ResolveReply's. Returns the resolved message, or nil if
// the token was not accepted.
func (c *Conversation) ResolveTransportFailure(token uint64) *model.DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.acceptLocked(token)
	if pending == nil {
		return nil
	}

	pending.Resolve(FallbackText)
	pending.IsError = true
	return pending
}

// Messages returns a snapshot of the transcript in order.
func (c *Conversation) Messages() []*model.DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.DisplayMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of turns in the transcript.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// HasPending reports whether any chat call is currently in flight.
func (c *Conversation) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

// acceptLocked validates a reply token and, on success, consumes it and
// returns the matching placeholder. Each token resolves at most once; in
// strict mode only the latest token is ever accepted. Caller holds the
// lock.
func (c *Conversation) acceptLocked(token uint64) *model.DisplayMessage {
	id, ok := c.pending[token]
	if !ok || (c.strict && token != c.latest) {
		c.logger.Debug().Uint64("token", token).Uint64("latest", c.latest).
			Msg("discarding stale chat reply")
		return nil
	}
	delete(c.pending, token)

	for _, m := range c.messages {
		if m.ID == id {
			return m
		}
	}

	// Placeholder was pruned; nothing left to resolve.
	return nil
}

// removeLocked drops a message from the transcript by ID. Caller holds
// the lock.
func (c *Conversation) removeLocked(id string) {
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

// pruneLocked enforces MaxMessages by dropping the oldest turns. Caller
// holds the lock.
func (c *Conversation) pruneLocked() {
	if len(c.messages) <= MaxMessages {
		return
	}
	excess := len(c.messages) - MaxMessages
	c.messages = append([]*model.DisplayMessage(nil), c.messages[excess:]...)
}
