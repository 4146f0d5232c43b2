// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig(t *testing.T) {
	t.Parallel()
	rules := Rules{
		"https://example.com/":          {ClientID: "root"},
		"https://example.com/app/":      {ClientID: "app"},
		"https://example.com/app/beta/": {ClientID: "beta", CallbackURL: "https://example.com/app/beta/cb"},
		"localhost":                     {ClientID: "ignored"},
	}
	tests := []struct {
		name         string
		rules        Rules
		location     string
		wantClientID string
		wantCallback string
		wantIsErr    error
	}{
		{
			name:         "longest-prefix",
			rules:        rules,
			location:     "https://example.com/app/page?x=1",
			wantClientID: "app",
			wantCallback: "https://example.com/app/",
		},
		{
			name:         "shortest-prefix",
			rules:        rules,
			location:     "https://example.com/other",
			wantClientID: "root",
			wantCallback: "https://example.com/",
		},
		{
			name:         "rule-callback-wins",
			rules:        rules,
			location:     "https://example.com/app/beta/x",
			wantClientID: "beta",
			wantCallback: "https://example.com/app/beta/cb",
		},
		{
			name:      "no-match",
			rules:     rules,
			location:  "https://evil.com/app/",
			wantIsErr: ErrNoConfigMatch,
		},
		{
			name:         "any-location",
			rules:        Rules{AnyLocation: {ClientID: "any"}},
			location:     "https://evil.com/app/",
			wantClientID: "any",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			loc, err := url.Parse(tt.location)
			require.NoError(err)
			got, err := ResolveConfig(tt.rules, loc)
			if tt.wantIsErr != nil {
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantClientID, got.ClientID)
			assert.Equal(tt.wantCallback, got.CallbackURL)
			assert.Equal(DefaultBaseURL, got.BaseURL)
			assert.Equal(DefaultCASLogoutURL, got.CASLogoutURL)
		})
	}

	t.Run("nil-location", func(t *testing.T) {
		_, err := ResolveConfig(rules, nil)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
}

func TestLoadRules(t *testing.T) {
	t.Parallel()
	t.Run("table", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		rules, err := LoadRules(strings.NewReader(`
https://example.com/app/:
  clientId: app
  autoRefreshOnTimeout: true
https://localhost:8080/:
  clientId: dev
  baseUrl: https://api-dev.example.com
`))
		require.NoError(err)
		require.Len(rules, 2)
		assert.Equal("app", rules["https://example.com/app/"].ClientID)
		assert.True(rules["https://example.com/app/"].AutoRefreshOnTimeout)
		assert.Equal("https://api-dev.example.com", rules["https://localhost:8080/"].BaseURL)
	})
	t.Run("single", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		rules, err := LoadRules(strings.NewReader("clientId: only\nlogoutRedirect: https://example.com/bye\n"))
		require.NoError(err)
		assert.Equal(Rules{AnyLocation: {ClientID: "only", LogoutRedirect: "https://example.com/bye"}}, rules)
	})
	t.Run("not-a-mapping", func(t *testing.T) {
		_, err := LoadRules(strings.NewReader("- a\n- b\n"))
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("invalid-yaml", func(t *testing.T) {
		_, err := LoadRules(strings.NewReader("a: [b"))
		assert.Error(t, err)
	})
}
