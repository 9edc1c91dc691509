// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for identities, messages,
// and log payloads.
package model

import "strconv"

// =============================================================================
// INSIGHT SUMMARY TYPE
// =============================================================================

// DisplayCap is the number of suspicious IPs / affected users shown inline
// before the renderer collapses the rest into a "+N more" suffix. The
// summary itself always retains the full sets; only display is capped.
const DisplayCap = 5

// InsightSummary is the fixed-shape security-metric rollup lifted from a
// chat reply. Derived per reply, never persisted by the core.
type InsightSummary struct {
	SecurityEvents     int `json:"security_events"`
	FailedLogins       int `json:"failed_logins"`
	SQLInjections      int `json:"sql_injections"`
	BlockedConnections int `json:"blocked_connections"`

	// Full sets, source order preserved. No entry is ever dropped here.
	SuspiciousIPs []string `json:"suspicious_ips"`
	AffectedUsers []string `json:"affected_users"`
}

// HasFindings reports whether the summary carries anything worth rendering.
func (s *InsightSummary) HasFindings() bool {
	if s == nil {
		return false
	}
	return s.SecurityEvents > 0 || s.FailedLogins > 0 || s.SQLInjections > 0 ||
		s.BlockedConnections > 0 || len(s.SuspiciousIPs) > 0 || len(s.AffectedUsers) > 0
}

// DisplayIPs returns at most DisplayCap suspicious IPs plus a "+N more"
// marker when the set is larger.
func (s *InsightSummary) DisplayIPs() []string {
	return capList(s.SuspiciousIPs)
}

// DisplayUsers returns at most DisplayCap affected users plus a "+N more"
// marker when the set is larger.
func (s *InsightSummary) DisplayUsers() []string {
	return capList(s.AffectedUsers)
}

// capList truncates display only; cardinality beyond the cap is still
// reported via the trailing marker.
func capList(items []string) []string {
	if len(items) <= DisplayCap {
		return append([]string(nil), items...)
	}
	out := append([]string(nil), items[:DisplayCap]...)
	return append(out, "+"+strconv.Itoa(len(items)-DisplayCap)+" more")
}
