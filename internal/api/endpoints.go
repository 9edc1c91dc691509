// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/jeranaias/traceagent/internal/model"
)

// =============================================================================
// AUTHENTICATION ENDPOINTS
// =============================================================================

// loginRequest is the POST /api/auth/login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates with username and password and returns the resulting
// identity. Bad credentials surface as ErrAuthFailed.
func (c *Client) Login(ctx context.Context, username, password string) (*model.Identity, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var id model.Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("backend returned malformed identity: %w", err)
	}
	return &id, nil
}

// verifyRequest is the POST /api/auth/verify payload.
type verifyRequest struct {
	Token string `json:"token"`
}

// VerifyToken re-validates a stored session token.
func (c *Client) VerifyToken(ctx context.Context, token string) (*model.TokenVerification, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/verify", verifyRequest{Token: token})
	if err != nil {
		return nil, err
	}

	var verification model.TokenVerification
	if err := json.Unmarshal(body, &verification); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}
	return &verification, nil
}

// ListUsers returns all user records visible to the backend.
func (c *Client) ListUsers(ctx context.Context) ([]model.UserInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/auth/users", nil)
	if err != nil {
		return nil, err
	}

	var users []model.UserInfo
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users response: %w", err)
	}
	return users, nil
}

// GetUser returns a single user record by username.
func (c *Client) GetUser(ctx context.Context, username string) (*model.UserInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/auth/users/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}

	var user model.UserInfo
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	return &user, nil
}

// =============================================================================
// CONFIG AND LOG ENDPOINTS
// =============================================================================

// configResponse is the GET /api/config envelope.
type configResponse struct {
	Clients map[string]struct {
		Name   string            `json:"name"`
		Folder string            `json:"folder"`
		Logs   map[string]string `json:"logs"`
	} `json:"clients"`
}

// GetClients returns the configured tenants, sorted by ID for stable
// display order.
func (c *Client) GetClients(ctx context.Context) ([]model.Client, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/config", nil)
	if err != nil {
		return nil, err
	}

	var cfg configResponse
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config response: %w", err)
	}

	clients := make([]model.Client, 0, len(cfg.Clients))
	for id, entry := range cfg.Clients {
		clients = append(clients, model.Client{
			ID:     id,
			Name:   entry.Name,
			Folder: entry.Folder,
			Logs:   entry.Logs,
		})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients, nil
}

// GetLogs fetches a log bundle for a client and log type. search filters
// rows server-side; token is the caller's session token.
//
// A 200 reply carrying an error field is an authorization or lookup
// failure reported in-band by the backend; it surfaces as an *APIError
// rather than a half-empty bundle.
func (c *Client) GetLogs(ctx context.Context, clientID, logType, search, token string) (*model.LogBundle, error) {
	path := "/api/logs/" + url.PathEscape(clientID) + "/" + url.PathEscape(logType)
	params := url.Values{}
	if search != "" {
		params.Set("search", search)
	}
	if token != "" {
		params.Set("token", token)
	}
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var probe apiErrorResponse
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != "" {
		return nil, &APIError{Status: http.StatusOK, Message: probe.Error}
	}

	var bundle model.LogBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse log response: %w", err)
	}
	return &bundle, nil
}

// =============================================================================
// CHAT ENDPOINT
// =============================================================================

// chatRequest is the POST /api/chat payload.
type chatRequest struct {
	Message      string `json:"message"`
	ClientID     string `json:"client_id"`
	SessionToken string `json:"session_token,omitempty"`
}

// Chat submits a message to the assistant and returns the raw reply body.
// The reply shape is untrusted and variant; normalization happens in the
// chat package, not here.
func (c *Client) Chat(ctx context.Context, message, clientID, sessionToken string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/chat", chatRequest{
		Message:      message,
		ClientID:     clientID,
		SessionToken: sessionToken,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// =============================================================================
// HEALTH ENDPOINT
// =============================================================================

// HealthCheck reports whether the backend is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	return err == nil
}
