// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"fmt"
	"time"

	"github.com/byuweb/browser-oauth/storage"
)

// serializeSession produces the compact persisted form of a session. Claims
// are regrouped by prefix so the long prefix strings are stored once per
// group instead of once per claim.
func serializeSession(u *User, t *Token) (*storage.SessionState, error) {
	const op = "authn.serializeSession"
	if u == nil || t == nil {
		return nil, fmt.Errorf("%s: user and token are required: %w", op, ErrNilParameter)
	}
	return &storage.SessionState{
		UserInfo:            groupClaims(t.RawUserInfo),
		AccessToken:         t.Bearer,
		RefreshToken:        string(t.Refresh),
		AuthorizationHeader: t.AuthorizationHeader,
		ExpiresAt:           t.ExpiresAt.UnixMilli(),
	}, nil
}

// deserializeSession rebuilds the User and Token from a persisted session.
func deserializeSession(s *storage.SessionState) (*User, *Token, error) {
	const op = "authn.deserializeSession"
	if s == nil {
		return nil, nil, fmt.Errorf("%s: session state is nil: %w", op, ErrNilParameter)
	}
	if s.AccessToken == "" {
		return nil, nil, fmt.Errorf("%s: session has no access token: %w", op, ErrInvalidParameter)
	}
	userInfo := ungroupClaims(s.UserInfo)
	u := newUser(userInfo)
	t := newToken(userInfo, s.AccessToken, RefreshToken(s.RefreshToken), time.UnixMilli(s.ExpiresAt))
	if s.AuthorizationHeader != "" {
		t.AuthorizationHeader = s.AuthorizationHeader
	}
	return u, t, nil
}
