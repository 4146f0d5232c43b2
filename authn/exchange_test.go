// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestProvider_tokenExpiresAt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	p := env.newProvider(t, env.config(t), env.window)
	now := env.clock.Now()

	tests := []struct {
		name  string
		token *oauth2.Token
		want  time.Time
	}{
		{
			name:  "expires-in",
			token: &oauth2.Token{AccessToken: "at", ExpiresIn: 3600},
			want:  now.Add(time.Hour - expiryBuffer),
		},
		{
			name:  "absolute-expiry-on-provider-clock",
			token: &oauth2.Token{AccessToken: "at", Expiry: now.Add(30 * time.Minute)},
			want:  now.Add(30*time.Minute - expiryBuffer),
		},
		{
			name:  "expires-in-wins",
			token: &oauth2.Token{AccessToken: "at", ExpiresIn: 600, Expiry: now.Add(time.Hour)},
			want:  now.Add(10*time.Minute - expiryBuffer),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.tokenExpiresAt(tt.token))
		})
	}
}
