// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat turns untrusted assistant replies into render-ready turns.
//
// The backend's chat endpoint has accumulated several reply shapes over
// time: current text replies with optional log bundles and security
// insights, provider error envelopes, and a handful of legacy forms. This
// package decodes a raw reply against those known shapes in a fixed
// precedence order and reduces whatever arrives to one canonical, bounded
// DisplayMessage. Normalization never panics: any input, including
// non-JSON, produces a usable message.
//
// # Key Types
//
//   - Normalizer: reply classification and reduction to a DisplayMessage
//   - Conversation: ordered chat turns with pending-placeholder handling
//
// # Usage
//
//	conv := chat.NewConversation(chat.NewNormalizer())
//	turn := conv.Begin("show me all errors")
//	raw, err := client.Chat(ctx, "show me all errors", "maze_bank", token)
//	if err != nil {
//	    conv.ResolveTransportFailure(turn.Token)
//	} else {
//	    conv.ResolveReply(turn.Token, raw)
//	}
package chat
