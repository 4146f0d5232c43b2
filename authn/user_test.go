// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserInfo(surnamePosition string) map[string]interface{} {
	return map[string]interface{}{
		ClaimsPrefixResourceOwner + "person_id":        "123456789",
		ClaimsPrefixResourceOwner + "byu_id":           "987654321",
		ClaimsPrefixResourceOwner + "net_id":           "cosmo",
		ClaimsPrefixResourceOwner + "sort_name":        "Cougar, Cosmo",
		ClaimsPrefixResourceOwner + "surname_position": surnamePosition,
		ClaimsPrefixClient + "byu_id":                  "111111111",
		ClaimsPrefixWSO2 + "client_id":                 "client",
		ClaimsPrefixWSO2 + "applicationname":           "app",
		"given_name":                                   "Cosmo",
		"family_name":                                  "Cougar",
	}
}

func TestNewUser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		position    string
		wantDisplay string
	}{
		{name: "given-first", position: "L", wantDisplay: "Cosmo Cougar"},
		{name: "family-first", position: "F", wantDisplay: "Cougar Cosmo"},
		{name: "unset", position: "", wantDisplay: "Cosmo Cougar"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			info := testUserInfo(tt.position)
			u := newUser(info)
			assert.Equal(&User{
				PersonID: "123456789",
				BYUID:    "987654321",
				NetID:    "cosmo",
				Name: Name{
					SortName:           "Cougar, Cosmo",
					DisplayName:        tt.wantDisplay,
					GivenName:          "Cosmo",
					FamilyName:         "Cougar",
					FamilyNamePosition: tt.position,
				},
				RawUserInfo: info,
			}, u)
		})
	}
}

func TestNewToken(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	exp := time.UnixMilli(1700000000000)
	tk := newToken(testUserInfo("L"), "at", "rt", exp)
	assert.Equal("at", tk.Bearer)
	assert.Equal(RefreshToken("rt"), tk.Refresh)
	assert.Equal("Bearer at", tk.AuthorizationHeader)
	assert.Equal(exp, tk.ExpiresAt)
	assert.Equal(Client{ID: "client", BYUID: "111111111", AppName: "app"}, tk.Client)
}

func TestToken_withRefresh(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	exp := time.UnixMilli(1700000000000)
	tk := newToken(testUserInfo("L"), "at", "rt", exp)

	next := tk.withRefresh("at2", "rt2", exp.Add(time.Hour))
	assert.Equal("at2", next.Bearer)
	assert.Equal("Bearer at2", next.AuthorizationHeader)
	assert.Equal(RefreshToken("rt2"), next.Refresh)
	assert.Equal(exp.Add(time.Hour), next.ExpiresAt)
	assert.Equal(tk.Client, next.Client)
	assert.Equal("at", tk.Bearer, "original is unchanged")

	kept := tk.withRefresh("at3", "", exp)
	assert.Equal(RefreshToken("rt"), kept.Refresh)
}

func TestRefreshToken_Redacted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	rt := RefreshToken("super-secret")
	assert.Equal(RedactedRefreshToken, rt.String())
	assert.Equal(RedactedRefreshToken, fmt.Sprintf("%v", rt))
	b, err := json.Marshal(rt)
	require.NoError(err)
	assert.JSONEq(`"[REDACTED: refresh_token]"`, string(b))
}
