// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history archives chat transcripts in a local SQLite database so
// past conversations survive restarts. Only resolved turns are stored;
// pending placeholders and the in-flight request state never touch disk.
//
// The archive is an optional collaborator: the chat core works without
// it, and archive failures are logged rather than surfaced to the
// conversation flow.
//
// # Usage
//
//	archive, err := history.OpenDefault()
//	if err != nil { ... }
//	defer archive.Close()
//
//	convID, _ := archive.BeginConversation(ctx, "failed logins", "alice", "maze_bank")
//	_ = archive.AppendMessage(ctx, convID, userMsg)
//	_ = archive.AppendMessage(ctx, convID, assistantMsg)
package history
