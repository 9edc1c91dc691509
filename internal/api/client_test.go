// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the traceagent backend.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/traceagent/internal/model"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL).WithHTTPClient(srv.Client())
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestClient_Login_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "maze_bank_admin", req["username"])

		json.NewEncoder(w).Encode(map[string]any{
			"username":      "maze_bank_admin",
			"role":          "admin", // legacy alias for client_admin
			"client_id":     "maze_bank",
			"permissions":   []string{"read_logs", "chat", "admin_logs"},
			"session_token": "maze-admin-session-001",
		})
	}))

	id, err := client.Login(context.Background(), "maze_bank_admin", "maze123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleClientAdmin, id.Role)
	assert.Equal(t, "maze_bank", id.ClientID)
	assert.Equal(t, "maze-admin-session-001", id.SessionToken)
}

func TestClient_Login_BadCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
	}))

	_, err := client.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestClient_Login_MalformedIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Client admin without a client scope violates the identity
		// invariant.
		json.NewEncoder(w).Encode(map[string]any{
			"username":      "broken",
			"role":          "client_admin",
			"session_token": "tok",
		})
	}))

	_, err := client.Login(context.Background(), "broken", "pw")
	assert.Error(t, err)
}

// =============================================================================
// VERIFY TESTS
// =============================================================================

func TestClient_VerifyToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/verify", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req["token"] == "good-token" {
			json.NewEncoder(w).Encode(map[string]any{
				"valid": true,
				"user": map[string]any{
					"username":  "maze_bank_user1",
					"role":      "user",
					"client_id": "maze_bank",
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"valid": false})
	}))

	ctx := context.Background()

	verification, err := client.VerifyToken(ctx, "good-token")
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	require.NotNil(t, verification.User)
	assert.Equal(t, model.RoleUser, verification.User.Role)

	verification, err = client.VerifyToken(ctx, "stale-token")
	require.NoError(t, err)
	assert.False(t, verification.Valid)
	assert.Nil(t, verification.User)
}

// =============================================================================
// CONFIG AND LOG TESTS
// =============================================================================

func TestClient_GetClients_Sorted(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/config", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"clients": map[string]any{
				"trevor_phillips": map[string]any{"name": "Trevor Phillips Industries", "folder": "trevor"},
				"maze_bank":       map[string]any{"name": "Maze Bank", "folder": "maze"},
				"lifeinvader":     map[string]any{"name": "LifeInvader", "folder": "life"},
			},
		})
	}))

	clients, err := client.GetClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, "lifeinvader", clients[0].ID)
	assert.Equal(t, "maze_bank", clients[1].ID)
	assert.Equal(t, "Maze Bank", clients[1].Name)
}

func TestClient_GetLogs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs/maze_bank/app_logs", r.URL.Path)
		require.Equal(t, "failed login", r.URL.Query().Get("search"))
		require.Equal(t, "tok-1", r.URL.Query().Get("token"))

		json.NewEncoder(w).Encode(map[string]any{
			"client":        "maze_bank",
			"log_type":      "app_logs",
			"total_entries": 2,
			"columns":       []string{"timestamp", "level", "message"},
			"full_data": []map[string]any{
				{"timestamp": "2024-01-01", "level": "WARN", "message": "failed login"},
				{"timestamp": "2024-01-02", "level": "WARN", "message": "failed login"},
			},
		})
	}))

	bundle, err := client.GetLogs(context.Background(), "maze_bank", "app_logs", "failed login", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.TotalEntries)
	assert.Equal(t, []string{"timestamp", "level", "message"}, bundle.Columns)
	assert.Len(t, bundle.FullData, 2)
}

func TestClient_GetLogs_InBandError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown log type"})
	}))

	_, err := client.GetLogs(context.Background(), "maze_bank", "nope", "", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unknown log type", apiErr.Message)
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestClient_Chat_RawPassthrough(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "show me all errors", req["message"])
		require.Equal(t, "maze_bank", req["client_id"])

		// Variant reply shape goes through untouched.
		w.Write([]byte(`{"response":"3 errors found","security_alert":"possible brute force"}`))
	}))

	raw, err := client.Chat(context.Background(), "show me all errors", "maze_bank", "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"3 errors found","security_alert":"possible brute force"}`, string(raw))
}

// =============================================================================
// ERROR MAPPING AND RETRY TESTS
// =============================================================================

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			_, err := client.ListUsers(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_RetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]model.UserInfo{})
	}))

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})).WithMaxRetries(2)

	_, err := client.ListUsers(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoRetryOnAuthFailure(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not retry")
}

func TestClient_HealthCheck(t *testing.T) {
	healthy := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	assert.True(t, healthy.HealthCheck(context.Background()))

	down := NewClient("http://127.0.0.1:1").WithMaxRetries(1)
	assert.False(t, down.HealthCheck(context.Background()))
}
