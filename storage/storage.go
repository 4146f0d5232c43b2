// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Package storage persists the two pieces of state a provider keeps across
// page loads: the short-lived OAuth handshake state and the longer-lived
// session. Backends implement KV; Handler layers the key scheme and wire
// formats on top.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNotFound is returned by a KV when the key is missing or expired.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")
)

const (
	// OAuthStateLifetime is how long a pending OAuth handshake stays valid.
	// It is recorded in the handshake as ExpiresAt.
	OAuthStateLifetime = 5 * time.Minute

	// OAuthStateTTL is how long a backend retains a pending handshake. It
	// outlives OAuthStateLifetime so a late callback still finds the record
	// and is reported as expired rather than missing.
	OAuthStateTTL = OAuthStateLifetime + time.Minute
)

// KV is a key-value backend. A ttl of zero means the value does not expire.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error

	// Take atomically reads and removes key. It returns ErrNotFound when the
	// key is missing or expired.
	Take(ctx context.Context, key string) ([]byte, error)
}

// OAuthState is the pending handshake for one login attempt. Field names are
// abbreviated to keep entries small for size constrained backends such as
// cookies.
type OAuthState struct {
	// ExpiresAt is epoch milliseconds
	ExpiresAt    int64             `json:"e"`
	CSRFToken    string            `json:"c"`
	CodeVerifier string            `json:"v"`
	PageState    map[string]string `json:"s,omitempty"`
}

// SessionState is the compact serialization of an authenticated session.
type SessionState struct {
	UserInfo            GroupedUserInfo `json:"ui"`
	AccessToken         string          `json:"at"`
	RefreshToken        string          `json:"rf,omitempty"`
	AuthorizationHeader string          `json:"ah"`
	// ExpiresAt is epoch milliseconds
	ExpiresAt int64 `json:"ea"`
}

// GroupedUserInfo holds userinfo claims bucketed by claim prefix, with the
// prefix stripped from each key.
type GroupedUserInfo struct {
	ResourceOwner map[string]interface{} `json:"ro,omitempty"`
	Client        map[string]interface{} `json:"cl,omitempty"`
	WSO2          map[string]interface{} `json:"wso2,omitempty"`
	Other         map[string]interface{} `json:"o,omitempty"`
}

// OAuthKey returns the key the pending OAuth state for clientID is stored
// under.
func OAuthKey(clientID string) string {
	return "oauth-state-" + url.QueryEscape(clientID)
}

// SessionKey returns the key the session for clientID is stored under.
func SessionKey(clientID string) string {
	return OAuthKey(clientID) + "-active-session"
}

// Handler implements the storage operations a provider consumes over two KV
// backends: a conservative one for the handshake and a larger-capacity one
// for sessions. Both may be the same KV.
type Handler struct {
	oauth   KV
	session KV
}

// NewHandler creates a Handler.
func NewHandler(oauth, session KV) (*Handler, error) {
	const op = "storage.NewHandler"
	if oauth == nil {
		return nil, fmt.Errorf("%s: oauth state store is nil: %w", op, ErrInvalidParameter)
	}
	if session == nil {
		return nil, fmt.Errorf("%s: session state store is nil: %w", op, ErrInvalidParameter)
	}
	return &Handler{oauth: oauth, session: session}, nil
}

// SaveOAuthState stores s, replacing any pending state for clientID.
func (h *Handler) SaveOAuthState(ctx context.Context, clientID string, s *OAuthState) error {
	const op = "storage.(Handler).SaveOAuthState"
	if s == nil {
		return fmt.Errorf("%s: oauth state is nil: %w", op, ErrInvalidParameter)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: unable to encode oauth state: %w", op, err)
	}
	if err := h.oauth.Set(ctx, OAuthKey(clientID), b, OAuthStateTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetOAuthState returns the pending state for clientID, or nil if there is
// none.
func (h *Handler) GetOAuthState(ctx context.Context, clientID string) (*OAuthState, error) {
	const op = "storage.(Handler).GetOAuthState"
	b, err := h.oauth.Get(ctx, OAuthKey(clientID))
	return decodeOAuthState(op, b, err)
}

// TakeOAuthState atomically returns and removes the pending state for
// clientID, or returns nil if there is none.
func (h *Handler) TakeOAuthState(ctx context.Context, clientID string) (*OAuthState, error) {
	const op = "storage.(Handler).TakeOAuthState"
	b, err := h.oauth.Take(ctx, OAuthKey(clientID))
	return decodeOAuthState(op, b, err)
}

// ClearOAuthState removes the pending state for clientID.
func (h *Handler) ClearOAuthState(ctx context.Context, clientID string) error {
	const op = "storage.(Handler).ClearOAuthState"
	if err := h.oauth.Remove(ctx, OAuthKey(clientID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SaveSessionState stores s as the session for clientID.
func (h *Handler) SaveSessionState(ctx context.Context, clientID string, s *SessionState) error {
	const op = "storage.(Handler).SaveSessionState"
	if s == nil {
		return fmt.Errorf("%s: session state is nil: %w", op, ErrInvalidParameter)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: unable to encode session state: %w", op, err)
	}
	if err := h.session.Set(ctx, SessionKey(clientID), b, 0); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSessionState returns the session for clientID, or nil if there is none.
func (h *Handler) GetSessionState(ctx context.Context, clientID string) (*SessionState, error) {
	const op = "storage.(Handler).GetSessionState"
	b, err := h.session.Get(ctx, SessionKey(clientID))
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var s SessionState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%s: unable to decode session state: %w", op, err)
	}
	return &s, nil
}

// ClearSessionState removes the session for clientID.
func (h *Handler) ClearSessionState(ctx context.Context, clientID string) error {
	const op = "storage.(Handler).ClearSessionState"
	if err := h.session.Remove(ctx, SessionKey(clientID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close closes the backends that implement io.Closer. A backend shared by
// both stores is closed once.
func (h *Handler) Close() error {
	const op = "storage.(Handler).Close"
	var result *multierror.Error
	closed := map[KV]bool{}
	for _, kv := range []KV{h.oauth, h.session} {
		c, ok := kv.(io.Closer)
		if !ok || closed[kv] {
			continue
		}
		closed[kv] = true
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
		}
	}
	return result.ErrorOrNil()
}

func decodeOAuthState(op string, b []byte, err error) (*OAuthState, error) {
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var s OAuthState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%s: unable to decode oauth state: %w", op, err)
	}
	return &s, nil
}
