// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/traceagent/internal/model"
)

func TestConversationBegin(t *testing.T) {
	c := NewConversation(nil)

	turn := c.Begin("show me failed logins")

	require.NotNil(t, turn.User)
	require.NotNil(t, turn.Pending)
	assert.Equal(t, model.SenderUser, turn.User.Sender)
	assert.Equal(t, "show me failed logins", turn.User.Text)
	assert.Equal(t, model.SenderAssistant, turn.Pending.Sender)
	assert.True(t, turn.Pending.IsPending)
	assert.NotZero(t, turn.Token)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, turn.User.ID, msgs[0].ID)
	assert.Equal(t, turn.Pending.ID, msgs[1].ID)
	assert.True(t, c.HasPending())
}

func TestConversationResolveReplyInPlace(t *testing.T) {
	c := NewConversation(nil)
	turn := c.Begin("any injections today?")

	msg, err := c.ResolveReply(turn.Token, json.RawMessage(`{"response": "none detected"}`))

	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, turn.Pending.ID, msg.ID, "placeholder is resolved in place, not replaced")
	assert.Equal(t, "none detected", msg.Text)
	assert.False(t, msg.IsPending)
	assert.False(t, c.HasPending())
	assert.Len(t, c.Messages(), 2)
}

func TestConversationResolveBackendError(t *testing.T) {
	c := NewConversation(nil)
	turn := c.Begin("hello")

	msg, err := c.ResolveReply(turn.Token, json.RawMessage(`{"error": "overloaded", "provider": "openai"}`))

	require.ErrorIs(t, err, ErrBackendReported)
	require.NotNil(t, msg)
	assert.Equal(t, "[OPENAI] Error: overloaded", msg.Text)
	assert.True(t, msg.IsError)
	assert.False(t, msg.IsPending)
}

func TestConversationConcurrentSubmissions(t *testing.T) {
	c := NewConversation(nil)

	first := c.Begin("first question")
	second := c.Begin("second question")

	require.Len(t, c.Messages(), 4)

	// Replies land out of order; each resolves its own placeholder.
	msg, err := c.ResolveReply(second.Token, json.RawMessage(`{"response": "answer two"}`))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, second.Pending.ID, msg.ID)
	assert.True(t, c.HasPending(), "first request is still in flight")

	msg, err = c.ResolveReply(first.Token, json.RawMessage(`{"response": "answer one"}`))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, first.Pending.ID, msg.ID)
	assert.Equal(t, "answer one", msg.Text)
	assert.False(t, c.HasPending())
}

func TestConversationStrictOrderingDiscardsStale(t *testing.T) {
	c := NewConversation(nil).WithStrictOrdering()

	first := c.Begin("first question")
	second := c.Begin("second question")

	// First request was superseded; its placeholder is gone.
	msgs := c.Messages()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.NotEqual(t, first.Pending.ID, m.ID)
	}

	// Its late reply must be silently discarded.
	msg, err := c.ResolveReply(first.Token, json.RawMessage(`{"response": "stale"}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.True(t, c.HasPending())

	// The latest token still resolves normally.
	msg, err = c.ResolveReply(second.Token, json.RawMessage(`{"response": "fresh"}`))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "fresh", msg.Text)
	assert.False(t, c.HasPending())
}

func TestConversationDoubleResolveRejected(t *testing.T) {
	c := NewConversation(nil)
	turn := c.Begin("hi")

	first, err := c.ResolveReply(turn.Token, json.RawMessage(`{"response": "a"}`))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.ResolveReply(turn.Token, json.RawMessage(`{"response": "b"}`))
	require.NoError(t, err)
	assert.Nil(t, second, "a token is consumed by its first resolution")
	assert.Equal(t, "a", first.Text)
}

func TestConversationTransportFailure(t *testing.T) {
	c := NewConversation(nil)
	turn := c.Begin("is the backend alive?")

	msg := c.ResolveTransportFailure(turn.Token)

	require.NotNil(t, msg)
	assert.Equal(t, turn.Pending.ID, msg.ID)
	assert.Equal(t, FallbackText, msg.Text)
	assert.True(t, msg.IsError)
	assert.False(t, msg.IsPending)
	assert.False(t, c.HasPending())
}

func TestConversationTransportFailureStaleToken(t *testing.T) {
	c := NewConversation(nil).WithStrictOrdering()
	old := c.Begin("one")
	c.Begin("two")

	assert.Nil(t, c.ResolveTransportFailure(old.Token))
	assert.True(t, c.HasPending())
}

func TestConversationPrune(t *testing.T) {
	c := NewConversation(nil)

	for i := 0; i < MaxMessages/2+10; i++ {
		turn := c.Begin(fmt.Sprintf("question %d", i))
		_, err := c.ResolveReply(turn.Token, json.RawMessage(`{"response": "ok"}`))
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, c.Len(), MaxMessages)

	// Newest turns survive pruning.
	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, "ok", last.Text)
}
