// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"errors"
	"testing"
	"time"

	"github.com/byuweb/browser-oauth/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingState(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	now := time.UnixMilli(1700000000000)
	v, err := NewCodeVerifier()
	require.NoError(err)
	s := newPendingState(now, "xyz", v, map[string]string{"tab": "2"})
	assert.Equal(&storage.OAuthState{
		ExpiresAt:    now.Add(5 * time.Minute).UnixMilli(),
		CSRFToken:    "xyz",
		CodeVerifier: v.Verifier(),
		PageState:    map[string]string{"tab": "2"},
	}, s)
}

func TestValidatePendingState(t *testing.T) {
	t.Parallel()
	now := time.UnixMilli(1700000000000)
	future := now.Add(time.Minute).UnixMilli()
	past := now.Add(-time.Millisecond).UnixMilli()
	tests := []struct {
		name      string
		stored    *storage.OAuthState
		state     string
		wantIsErr error
		wantType  ErrorType
	}{
		{
			name:   "valid",
			stored: &storage.OAuthState{CSRFToken: "xyz", ExpiresAt: future},
			state:  "xyz",
		},
		{
			name:      "mismatch",
			stored:    &storage.OAuthState{CSRFToken: "xyz", ExpiresAt: future},
			state:     "abc",
			wantIsErr: ErrOAuthStateMismatch,
			wantType:  ErrorTypeOAuthStateMismatch,
		},
		{
			name:      "expired",
			stored:    &storage.OAuthState{CSRFToken: "xyz", ExpiresAt: past},
			state:     "xyz",
			wantIsErr: ErrOAuthStateExpired,
			wantType:  ErrorTypeOAuthStateExpired,
		},
		{
			name:      "missing",
			state:     "xyz",
			wantIsErr: ErrNoOAuthState,
			wantType:  ErrorTypeNoOAuthState,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			err := validatePendingState(tt.stored, tt.state, now)
			if tt.wantIsErr == nil {
				assert.NoError(err)
				return
			}
			require.Error(err)
			assert.ErrorIs(err, tt.wantIsErr)
			var oe *OAuthError
			require.True(errors.As(err, &oe))
			assert.Equal(tt.wantType, oe.Type)
			assert.NotEmpty(oe.Description)
		})
	}
}
