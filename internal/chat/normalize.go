// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/traceagent/internal/model"
	"github.com/jeranaias/traceagent/internal/util"
)

// =============================================================================
// NORMALIZATION CONSTANTS
// =============================================================================

const (
	// MaxMessageRunes is the hard upper bound on DisplayMessage text.
	MaxMessageRunes = 5000

	// TruncationMarker is appended when a message hits the bound.
	TruncationMarker = "[Message truncated...]"

	// alertMarker prefixes security-alert and suspicious-activity
	// paragraphs.
	alertMarker = "⚠ "

	// queryLabel prefixes the diagnostic query paragraph.
	queryLabel = "Query: "

	// defaultProvider is used when an error reply names no provider.
	defaultProvider = "unknown"

	// FallbackText replaces the reply when the transport itself failed and
	// no reply body exists to normalize.
	FallbackText = "I apologize, but I'm having trouble connecting to the backend. " +
		"Please check if the backend server is running and try again."
)

// ErrBackendReported signals that the reply itself was a structured backend
// error. The DisplayMessage still renders (with the formatted error text);
// this error travels beside it so callers can surface the failure.
var ErrBackendReported = errors.New("backend reported an error")

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer reduces raw backend replies to canonical DisplayMessages.
//
// OnLogs, when set, receives any embedded log bundles as a side effect;
// bundles are never embedded in the DisplayMessage itself.
type Normalizer struct {
	OnLogs func(map[string]model.LogBundle)
	Logger zerolog.Logger
}

// NewNormalizer creates a Normalizer with no collaborators wired.
func NewNormalizer() *Normalizer {
	return &Normalizer{Logger: zerolog.Nop()}
}

// Normalize reduces a raw reply to a DisplayMessage.
//
// The returned message is always non-nil and always within the text bound.
// When the reply is a structured backend error the second return value
// wraps ErrBackendReported; the message still carries the formatted error
// text for rendering.
func (n *Normalizer) Normalize(raw json.RawMessage) (*model.DisplayMessage, error) {
	decoded := classifyReply(raw)

	var text string
	var errSignal error
	var insights *model.InsightSummary

	switch decoded.Kind {
	case kindError:
		text = formatBackendError(decoded)
		errSignal = fmt.Errorf("%w: %s", ErrBackendReported, decoded.ErrorText)
		n.Logger.Warn().Str("provider", decoded.Provider).Str("error", decoded.ErrorText).
			Msg("backend reported error")

	case kindText:
		text = decoded.Text

		// Log bundles go to the collaborator, not into the message.
		if len(decoded.Logs) > 0 && n.OnLogs != nil {
			n.OnLogs(decoded.Logs)
		}

		if decoded.Insights != nil {
			insights = extractInsights(decoded.Insights)
		}

		// Alert annotations become their own paragraphs, alert first.
		if decoded.SecurityAlert != "" {
			text += "\n\n" + alertMarker + decoded.SecurityAlert
		}
		if decoded.SuspiciousActivity != "" {
			text += "\n\n" + alertMarker + decoded.SuspiciousActivity
		}

		// Executed diagnostic query closes the message.
		if decoded.SQLQuery != "" {
			text += "\n\n" + queryLabel + decoded.SQLQuery
		}

	default:
		text = decoded.Text
	}

	msg := model.NewAssistantMessage(boundText(text))
	msg.IsError = errSignal != nil
	msg.Insights = insights
	return msg, errSignal
}

// formatBackendError renders an error reply as display text:
// "[PROVIDER] Error: message (details)". The parenthetical is omitted when
// no details arrived.
func formatBackendError(decoded reply) string {
	provider := decoded.Provider
	if provider == "" {
		provider = defaultProvider
	}
	text := "[" + strings.ToUpper(provider) + "] Error: " + decoded.ErrorText
	if decoded.Details != "" {
		text += " (" + decoded.Details + ")"
	}
	return text
}

// boundText enforces the hard message bound: text longer than
// MaxMessageRunes is cut at the bound and the truncation marker appended.
func boundText(text string) string {
	if util.RuneLen(text) <= MaxMessageRunes {
		return text
	}
	return util.TruncateRunesNoEllipsis(text, MaxMessageRunes) + TruncationMarker
}

// =============================================================================
// INSIGHT EXTRACTION
// =============================================================================

// extractInsights lifts the wire insights payload into the fixed-shape
// summary. The full IP and user sets are retained in source order; display
// capping is the renderer's concern.
func extractInsights(wire *wireInsights) *model.InsightSummary {
	return &model.InsightSummary{
		SecurityEvents:     wire.SecurityEvents,
		FailedLogins:       wire.FailedLogins,
		SQLInjections:      wire.SQLInjections,
		BlockedConnections: wire.BlockedConnections,
		SuspiciousIPs:      append([]string(nil), wire.SuspiciousIPs...),
		AffectedUsers:      append([]string(nil), wire.AffectedUsers...),
	}
}
