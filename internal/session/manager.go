// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/traceagent/internal/api"
	"github.com/jeranaias/traceagent/internal/authz"
	"github.com/jeranaias/traceagent/internal/model"
	"github.com/jeranaias/traceagent/internal/store"
)

// =============================================================================
// STATES AND ERRORS
// =============================================================================

// State is the lifecycle state of the session.
type State int

const (
	// StateUnauthenticated: no identity; login required.
	StateUnauthenticated State = iota
	// StateInitializing: startup verification of a stored token is in
	// progress.
	StateInitializing
	// StateAuthenticated: a verified identity is adopted.
	StateAuthenticated
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// ErrLoginThrottled is returned when login attempts exceed the local rate
// limit. SECURITY: throttling happens before any network call, so a
// scripted credential sweep never reaches the backend at full speed.
var ErrLoginThrottled = errors.New("too many login attempts, slow down")

// loginFailedMessage is the human-readable error recorded for bad
// credentials and backend rejections.
const loginFailedMessage = "Login failed. Please check your username and password."

// connectFailedMessage is recorded when the login call itself failed.
const connectFailedMessage = "Unable to reach the backend. Please try again."

// =============================================================================
// BACKEND CONTRACT
// =============================================================================

// Backend is the slice of the API surface the lifecycle needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (*model.Identity, error)
	VerifyToken(ctx context.Context, token string) (*model.TokenVerification, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the current identity and is its only writer. All accessors
// return defensive copies; mutation happens only through Bootstrap, Login,
// and Logout.
type Manager struct {
	mu sync.RWMutex

	backend Backend
	store   store.Store
	logger  zerolog.Logger

	state    State
	identity *model.Identity
	lastErr  string

	// limiter throttles Login attempts locally.
	limiter *rate.Limiter

	// lastActivity supports the optional idle timeout.
	lastActivity time.Time
	idleTimeout  time.Duration
}

// NewManager creates a Manager in the Unauthenticated state. A nil store
// falls back to an in-memory one.
func NewManager(backend Backend, st store.Store) *Manager {
	if st == nil {
		st = store.NewMemoryStore()
	}
	return &Manager{
		backend:      backend,
		store:        st,
		logger:       zerolog.Nop(),
		state:        StateUnauthenticated,
		limiter:      rate.NewLimiter(rate.Every(2*time.Second), 5),
		lastActivity: time.Now(),
	}
}

// WithLogger sets the manager's logger and returns the manager.
func (m *Manager) WithLogger(logger zerolog.Logger) *Manager {
	m.logger = logger
	return m
}

// WithIdleTimeout enables automatic session expiry after the given idle
// duration. Zero disables it (the default).
func (m *Manager) WithIdleTimeout(d time.Duration) *Manager {
	m.idleTimeout = d
	return m
}

// WithLoginLimiter replaces the default login rate limiter.
func (m *Manager) WithLoginLimiter(l *rate.Limiter) *Manager {
	m.limiter = l
	return m
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Bootstrap restores a stored session at startup. It verifies the stored
// token with the backend and adopts the identity only if verification
// succeeds; a rejected, expired, or unreadable session is cleared so no
// stale identity remains visible. Absent any stored session the manager
// simply ends Unauthenticated.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.setState(StateInitializing)

	saved, err := m.store.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("stored session unreadable, clearing")
		m.clearSession()
		return
	}
	if saved == nil || saved.Token == "" {
		m.setState(StateUnauthenticated)
		return
	}

	// Cheap local check first: a JWT whose exp has passed cannot verify,
	// so skip the network round trip. Signature validation stays with the
	// backend; only the expiry claim is read here.
	if jwtExpired(saved.Identity.JWTToken, time.Now()) {
		m.logger.Info().Str("user", saved.Identity.Username).Msg("stored token expired locally")
		m.clearSession()
		return
	}

	verification, err := m.backend.VerifyToken(ctx, saved.Token)
	if err != nil || verification == nil || !verification.Valid {
		if err != nil {
			m.logger.Warn().Err(err).Msg("token verification failed")
		}
		m.clearSession()
		return
	}

	id := saved.Identity.Clone()
	if verification.User != nil {
		// The backend's view of the principal wins over the stored copy.
		id.Username = verification.User.Username
		id.Role = verification.User.Role
		if verification.User.ClientID != "" {
			id.ClientID = verification.User.ClientID
		}
		id.Permissions = authz.PermissionsForRole(verification.User.Role)
	}

	m.mu.Lock()
	m.identity = id
	m.state = StateAuthenticated
	m.lastErr = ""
	m.lastActivity = time.Now()
	m.mu.Unlock()

	m.logger.Info().Str("user", id.Username).Str("role", string(id.Role)).
		Msg("session restored")
}

// Login authenticates with the backend and adopts the returned identity.
// Failures record a human-readable error retrievable via Err; when no
// session is held the manager stays Unauthenticated, and a failed re-login
// from Authenticated keeps the existing session. Concurrent calls are not
// coalesced; the last call to resolve wins the stored identity.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if !m.limiter.Allow() {
		m.recordError(ErrLoginThrottled.Error())
		return ErrLoginThrottled
	}

	id, err := m.backend.Login(ctx, username, password)
	if err != nil {
		msg := connectFailedMessage
		if isAuthRejection(err) {
			msg = loginFailedMessage
		}
		m.recordError(msg)
		m.logger.Warn().Err(err).Str("user", username).Msg("login failed")
		return err
	}

	if len(id.Permissions) == 0 {
		id.Permissions = authz.PermissionsForRole(id.Role)
	}

	if err := m.store.Save(id); err != nil {
		// A broken store degrades to a memory-only session.
		m.logger.Warn().Err(err).Msg("session not persisted")
	}

	m.mu.Lock()
	m.identity = id.Clone()
	m.state = StateAuthenticated
	m.lastErr = ""
	m.lastActivity = time.Now()
	m.mu.Unlock()

	m.logger.Info().Str("user", id.Username).Str("role", string(id.Role)).
		Msg("login succeeded")
	return nil
}

// Logout clears the identity and the stored session. It is local-only,
// idempotent, and cannot fail.
func (m *Manager) Logout() {
	m.clearSession()
	m.logger.Info().Msg("logged out")
}

// ClearError resets the stored error message without touching state.
func (m *Manager) ClearError() {
	m.mu.Lock()
	m.lastErr = ""
	m.mu.Unlock()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns a copy of the current identity, or nil when not
// authenticated.
func (m *Manager) Identity() *model.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.Clone()
}

// Token returns the current session token, or "" when not authenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return ""
	}
	return m.identity.SessionToken
}

// Err returns the last recorded human-readable error, or "".
func (m *Manager) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// =============================================================================
// AUTHORIZATION PASSTHROUGHS
// =============================================================================

// CanManageUsers reports whether the current identity may manage users in
// the given client scope.
func (m *Manager) CanManageUsers(targetClientID string) bool {
	return authz.CanManageUsers(m.Identity(), targetClientID)
}

// CanSwitchClient reports whether the current identity may change client
// scope.
func (m *Manager) CanSwitchClient() bool {
	return authz.CanSwitchClient(m.Identity())
}

// HasPermission reports whether the current identity holds the permission.
func (m *Manager) HasPermission(p model.Permission) bool {
	return authz.HasPermission(m.Identity(), p)
}

// DefaultClientID resolves which client scope a fresh view should open
// with: the identity's own scope when it has one, otherwise the first of
// the available clients. Returns "" when neither exists.
func (m *Manager) DefaultClientID(available []model.Client) string {
	id := m.Identity()
	if id != nil && id.ClientID != "" {
		return id.ClientID
	}
	if len(available) > 0 {
		return available[0].ID
	}
	return ""
}

// =============================================================================
// IDLE TIMEOUT
// =============================================================================

// Touch records user activity for idle-timeout purposes.
func (m *Manager) Touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// ExpireIfIdle logs the session out if the idle timeout has elapsed since
// the last activity. Returns true if it logged out. A zero timeout never
// expires.
func (m *Manager) ExpireIfIdle() bool {
	m.mu.RLock()
	idle := m.idleTimeout > 0 &&
		m.state == StateAuthenticated &&
		time.Since(m.lastActivity) >= m.idleTimeout
	m.mu.RUnlock()

	if !idle {
		return false
	}
	m.logger.Info().Dur("timeout", m.idleTimeout).Msg("session expired after inactivity")
	m.clearSession()
	return true
}

// =============================================================================
// INTERNAL
// =============================================================================

// clearSession drops the identity, clears the store, and returns to
// Unauthenticated without recording an error.
func (m *Manager) clearSession() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn().Err(err).Msg("session store clear failed")
	}
	m.mu.Lock()
	m.identity = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()
}

// setState transitions state without touching identity.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// recordError stores the human-readable error. With no identity held the
// manager drops to Unauthenticated; an established session stays intact so
// that state, Identity, and Token never disagree after a failed re-login.
func (m *Manager) recordError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	if m.identity == nil {
		m.state = StateUnauthenticated
	}
	m.mu.Unlock()
}

// isAuthRejection reports whether a login error means the backend rejected
// the credentials, as opposed to the call itself failing.
func isAuthRejection(err error) bool {
	return errors.Is(err, api.ErrAuthFailed) || errors.Is(err, api.ErrForbidden)
}

// jwtExpired reports whether an optional JWT carries an exp claim in the
// past. The token is parsed without signature verification: this is a
// local freshness check only, never an authentication decision.
func jwtExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
