// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package desktop

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenCallback(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		callbackURL string
		wantErr     error
	}{
		{name: "valid", callbackURL: "http://127.0.0.1:0/callback"},
		{name: "root-path", callbackURL: "http://127.0.0.1:0"},
		{name: "https", callbackURL: "https://127.0.0.1:0/callback", wantErr: authn.ErrInvalidParameter},
		{name: "no-port", callbackURL: "http://127.0.0.1/callback", wantErr: authn.ErrInvalidParameter},
		{name: "unparsable", callbackURL: "http://[::1", wantErr: authn.ErrInvalidParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			srv, err := ListenCallback(tt.callbackURL)
			if tt.wantErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErr)
				return
			}
			require.NoError(err)
			defer srv.Close()
			assert.True(strings.HasPrefix(srv.URL(), "http://127.0.0.1:"))
			assert.NotContains(srv.URL(), ":0/")
		})
	}
}

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestCallbackServer_Await(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	srv, err := ListenCallback("http://127.0.0.1:0/callback")
	require.NoError(err)
	defer srv.Close()

	status, _ := get(t, srv.URL()+"?state=only")
	assert.Equal(http.StatusBadRequest, status)

	status, _ = get(t, strings.TrimSuffix(srv.URL(), "/callback")+"/elsewhere?code=c&state=s")
	assert.Equal(http.StatusNotFound, status)

	status, body := get(t, srv.URL()+"?code=c1&state=s1")
	assert.Equal(http.StatusOK, status)
	assert.Contains(body, "You are signed in")

	// only the first redirect is handed over
	status, _ = get(t, srv.URL()+"?code=c2&state=s2")
	assert.Equal(http.StatusOK, status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	loc, err := srv.Await(ctx)
	require.NoError(err)
	assert.Equal("c1", loc.Query().Get("code"))
	assert.Equal("s1", loc.Query().Get("state"))
	assert.True(strings.HasPrefix(loc.String(), srv.URL()+"?"))

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = srv.Await(short)
	assert.ErrorIs(err, context.DeadlineExceeded)
}

func TestCallbackServer_ErrorResponse(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	srv, err := ListenCallback("http://127.0.0.1:0/callback")
	require.NoError(err)
	defer srv.Close()

	status, body := get(t, srv.URL()+"?error=access_denied&error_description=denied")
	assert.Equal(http.StatusOK, status)
	assert.Contains(body, "did not complete")

	loc, err := srv.Await(context.Background())
	require.NoError(err)
	assert.Equal("access_denied", loc.Query().Get("error"))
}

func TestCallbackServer_Close(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	srv, err := ListenCallback("http://127.0.0.1:0/callback")
	require.NoError(err)
	u := srv.URL()
	require.NoError(srv.Close())

	_, err = http.Get(u + "?code=c&state=s")
	assert.Error(err)
}
