// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"time"

	"github.com/byuweb/browser-oauth/storage"
)

// PendingStateLifetime is how long a started login may take to come back.
const PendingStateLifetime = storage.OAuthStateLifetime

// newPendingState builds the handshake record saved when a login starts.
func newPendingState(now time.Time, csrf string, v *CodeVerifier, pageState map[string]string) *storage.OAuthState {
	return &storage.OAuthState{
		ExpiresAt:    now.Add(PendingStateLifetime).UnixMilli(),
		CSRFToken:    csrf,
		CodeVerifier: v.Verifier(),
		PageState:    pageState,
	}
}

// validatePendingState checks a consumed handshake record against the state
// parameter returned by the identity provider.
func validatePendingState(s *storage.OAuthState, csrf string, now time.Time) error {
	switch {
	case s == nil:
		return NewOAuthError(ErrorTypeNoOAuthState,
			"No saved authentication information was found. Please try again.", nil)
	case s.CSRFToken != csrf:
		return NewOAuthError(ErrorTypeOAuthStateMismatch,
			"Your saved authentication information does not match. Please try again.", nil)
	case s.ExpiresAt < now.UnixMilli():
		return NewOAuthError(ErrorTypeOAuthStateExpired,
			"Your login attempt has timed out. Please try again.", nil)
	}
	return nil
}
