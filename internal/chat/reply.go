// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jeranaias/traceagent/internal/model"
)

// =============================================================================
// REPLY VARIANTS
// =============================================================================

// replyKind tags the decoded variant of a raw reply.
type replyKind int

const (
	// kindError: the reply carries an explicit error field.
	kindError replyKind = iota
	// kindText: the reply carries a primary response-text field.
	kindText
	// kindBare: the whole reply is a bare string or unrecognized value.
	kindBare
)

// reply is the closed decoded form of a raw backend reply. Classification
// happens once, at the boundary; downstream code switches on Kind instead
// of probing fields.
type reply struct {
	Kind replyKind

	// Error variant
	ErrorText string
	Provider  string
	Details   string

	// Text variant
	Text               string
	Logs               map[string]model.LogBundle
	Insights           *wireInsights
	SecurityAlert      string
	SuspiciousActivity string
	SQLQuery           string
}

// envelope mirrors every field any known reply shape may carry. All
// value-typed fields stay raw so a non-string where a string is expected
// cannot fail the decode.
type envelope struct {
	Error    json.RawMessage `json:"error"`
	Provider json.RawMessage `json:"provider"`
	Details  json.RawMessage `json:"details"`

	Response json.RawMessage `json:"response"`
	Message  json.RawMessage `json:"message"`
	Content  json.RawMessage `json:"content"`

	Logs               map[string]model.LogBundle `json:"logs"`
	Insights           *wireInsights              `json:"insights"`
	SecurityAlert      json.RawMessage            `json:"security_alert"`
	SuspiciousActivity json.RawMessage            `json:"suspicious_activity"`
	SQLQuery           json.RawMessage            `json:"sql_query"`
}

// wireInsights is the insights payload as the backend sends it. The wire
// carries more counters than the summary reports; extras are decoded but
// only the four rollup counters and the two sets are lifted.
type wireInsights struct {
	TotalEvents        int      `json:"total_events"`
	SecurityEvents     int      `json:"security_events"`
	FailedLogins       int      `json:"failed_logins"`
	SQLInjections      int      `json:"sql_injections"`
	BlockedConnections int      `json:"blocked_connections"`
	SystemWarnings     int      `json:"system_warnings"`
	SuspiciousIPs      []string `json:"suspicious_ips"`
	AffectedUsers      []string `json:"affected_users"`
	CriticalEndpoints  []string `json:"critical_endpoints"`
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// classifyReply decodes a raw reply into its variant, in precedence order:
// explicit error, then primary response text, then the legacy bare forms.
// It never fails; anything unrecognized becomes a bare-text variant.
func classifyReply(raw json.RawMessage) reply {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return reply{Kind: kindBare, Text: ""}
	}

	// A bare JSON string is its own message text.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return reply{Kind: kindBare, Text: s}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Not an object (array, number, or invalid JSON): coerce the raw
		// bytes to text. This path must never fail.
		return reply{Kind: kindBare, Text: trimmed}
	}

	// Precedence 1: explicit error field wins over everything else.
	if present(env.Error) {
		return reply{
			Kind:      kindError,
			ErrorText: coerceString(env.Error),
			Provider:  coerceString(env.Provider),
			Details:   coerceString(env.Details),
		}
	}

	// Precedence 2: primary response-text field, current or legacy name.
	if present(env.Response) || present(env.Message) {
		text := coerceString(env.Response)
		if !present(env.Response) {
			text = coerceString(env.Message)
		}
		return reply{
			Kind:               kindText,
			Text:               text,
			Logs:               env.Logs,
			Insights:           env.Insights,
			SecurityAlert:      coerceString(env.SecurityAlert),
			SuspiciousActivity: coerceString(env.SuspiciousActivity),
			SQLQuery:           coerceString(env.SQLQuery),
		}
	}

	// Precedence 3: legacy object shapes — a content sub-field, or
	// failing that a readable serialization of the whole object.
	if present(env.Content) {
		return reply{Kind: kindBare, Text: coerceString(env.Content)}
	}
	return reply{Kind: kindBare, Text: readableObject(raw)}
}

// present reports whether a raw field was set to something other than null.
func present(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

// coerceString converts any raw JSON value to display text.
// DEFENSIVE: Must never fail — a number, bool, or object where a string
// was expected still renders.
func coerceString(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return readableObject(raw)
	}
}

// readableObject serializes an object to a stable, human-readable form.
func readableObject(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	return string(pretty)
}
