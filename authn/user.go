// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the authenticated person, derived from userinfo claims.
type User struct {
	PersonID    string
	BYUID       string
	NetID       string
	Name        Name
	RawUserInfo map[string]interface{}
}

// Name holds the user's name parts.
type Name struct {
	SortName           string
	DisplayName        string
	GivenName          string
	FamilyName         string
	FamilyNamePosition string
}

// surnameFirst is the surname_position claim value for names written family
// name first.
const surnameFirst = "F"

func newUser(userInfo map[string]interface{}) *User {
	ro := claims(userInfo, ClaimsPrefixResourceOwner)
	given := claimString(userInfo, "given_name")
	family := claimString(userInfo, "family_name")
	position := claimString(ro, "surname_position")

	display := fmt.Sprintf("%s %s", given, family)
	if position == surnameFirst {
		display = fmt.Sprintf("%s %s", family, given)
	}
	return &User{
		PersonID: claimString(ro, "person_id"),
		BYUID:    claimString(ro, "byu_id"),
		NetID:    claimString(ro, "net_id"),
		Name: Name{
			SortName:           claimString(ro, "sort_name"),
			DisplayName:        display,
			GivenName:          given,
			FamilyName:         family,
			FamilyNamePosition: position,
		},
		RawUserInfo: userInfo,
	}
}

// Token is the access token held for the session.
type Token struct {
	Bearer              string
	Refresh             RefreshToken
	AuthorizationHeader string
	ExpiresAt           time.Time
	Client              Client
	RawUserInfo         map[string]interface{}
}

// Client identifies the OAuth client the token was issued to.
type Client struct {
	ID      string
	BYUID   string
	AppName string
}

func newToken(userInfo map[string]interface{}, bearer string, refresh RefreshToken, expiresAt time.Time) *Token {
	cl := claims(userInfo, ClaimsPrefixClient)
	wso2 := claims(userInfo, ClaimsPrefixWSO2)
	return &Token{
		Bearer:              bearer,
		Refresh:             refresh,
		AuthorizationHeader: authorizationHeader(bearer),
		ExpiresAt:           expiresAt,
		Client: Client{
			ID:      claimString(wso2, "client_id"),
			BYUID:   claimString(cl, "byu_id"),
			AppName: claimString(wso2, "applicationname"),
		},
		RawUserInfo: userInfo,
	}
}

func authorizationHeader(bearer string) string {
	return "Bearer " + bearer
}

// withRefresh returns a copy of t carrying the refreshed credentials.
func (t *Token) withRefresh(bearer string, refresh RefreshToken, expiresAt time.Time) *Token {
	nt := *t
	nt.Bearer = bearer
	nt.AuthorizationHeader = authorizationHeader(bearer)
	nt.ExpiresAt = expiresAt
	if refresh != "" {
		nt.Refresh = refresh
	}
	return &nt
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}
