// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// GracePeriod is how long the identity provider keeps honouring a token
	// after it has issued a replacement.
	GracePeriod = 5 * time.Minute

	// clockSkew pads expiry against drift between this host and the
	// identity provider.
	clockSkew = 5 * time.Second

	// expiryBuffer is subtracted from expires_in when computing ExpiresAt.
	expiryBuffer = GracePeriod + clockSkew

	// maxUserInfoBody caps how much of a userinfo response is read.
	maxUserInfoBody = 1 << 20

	// notSubscribedCode is the gateway fault code returned when the client
	// is not subscribed to the userinfo API.
	notSubscribedCode = "<ams:code>900908</ams:code>"

	notSubscribedHelp = "You may not be subscribed to the OpenID UserInfo endpoint. " +
		"Please visit https://api.byu.edu/store/apis/info?name=OpenID-Userinfo&version=v1&provider=BYU%2Fjmooreoa to subscribe."
)

// newOAuth2Config wires the identity provider's fixed endpoints into an
// oauth2 config for a public client.
func newOAuth2Config(ctx context.Context, c *Config) (oauth2.Config, error) {
	const op = "authn.newOAuth2Config"
	pc := oidc.ProviderConfig{
		IssuerURL:   c.BaseURL,
		AuthURL:     c.AuthorizeURL(),
		TokenURL:    c.TokenURL(),
		UserInfoURL: c.UserInfoURL(),
	}
	provider := pc.NewProvider(ctx)
	if provider == nil {
		return oauth2.Config{}, fmt.Errorf("%s: unable to create provider for %s: %w", op, c.BaseURL, ErrInvalidParameter)
	}
	endpoint := provider.Endpoint()
	// public client: client_id travels in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.CallbackURL,
		Endpoint:    endpoint,
		Scopes:      []string{oidc.ScopeOpenID},
	}, nil
}

// handleCallback runs the code exchange for a callback location and returns
// the resulting store, either authenticated or carrying an OAuthError.
func (p *Provider) handleCallback(ctx context.Context, loc *url.URL) Store {
	q := loc.Query()
	csrf := q.Get("state")

	pending, err := consumeOAuthState(ctx, p.storage, p.config.ClientID)
	if err != nil {
		p.logger.Warn("unable to read oauth state", "error", err)
		pending = nil
	}
	if err := validatePendingState(pending, csrf, p.clock.Now()); err != nil {
		return p.failure(err)
	}

	tk, err := p.exchange(ctx, q.Get("code"), pending.CodeVerifier)
	if err != nil {
		return p.failure(err)
	}
	expiresAt := p.tokenExpiresAt(tk)

	userInfo, err := p.fetchUserInfo(ctx, tk.AccessToken)
	if err != nil {
		return p.failure(err)
	}
	return Store{
		State:     StateAuthenticated,
		User:      newUser(userInfo),
		Token:     newToken(userInfo, tk.AccessToken, RefreshToken(tk.RefreshToken), expiresAt),
		PageState: pending.PageState,
	}
}

// failure logs and counts an OAuth failure and returns the error store.
func (p *Provider) failure(err error) Store {
	typ := failureType(err)
	p.metrics.failure(typ)
	if typ == string(ErrorTypeNotSubscribedToUserInfo) {
		p.logger.Error("DEVELOPER ERROR: " + notSubscribedHelp)
	}
	p.logger.Error("authentication callback failed", "error", err)
	return Store{State: StateError, Error: err}
}

// exchange trades an authorization code and its PKCE verifier for a token.
func (p *Provider) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	tk, err := p.oauth2Config.Exchange(oidc.ClientContext(ctx, p.client), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, NewOAuthError(ErrorTypeUnableToExchangeCode,
			"Unable to complete your login. Please try again.", err)
	}
	return tk, nil
}

// refresh trades a refresh token for a new token.
func (p *Provider) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	const op = "authn.(Provider).refresh"
	ts := p.oauth2Config.TokenSource(oidc.ClientContext(ctx, p.client), &oauth2.Token{RefreshToken: refreshToken})
	tk, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tk, nil
}

// tokenExpiresAt returns when tk should be treated as expired: its lifetime
// less the grace period and clock skew.
func (p *Provider) tokenExpiresAt(tk *oauth2.Token) time.Time {
	lifetime := time.Duration(tk.ExpiresIn) * time.Second
	if tk.ExpiresIn == 0 && !tk.Expiry.IsZero() {
		lifetime = tk.Expiry.Sub(p.clock.Now())
	}
	return p.clock.Now().Add(lifetime - expiryBuffer)
}

// fetchUserInfo reads the userinfo claims for bearer.
func (p *Provider) fetchUserInfo(ctx context.Context, bearer string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL(), nil)
	if err != nil {
		return nil, NewOAuthError(ErrorTypeUnableToGetUserInfo,
			"Unable to fetch user information. Please try again.", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorizationHeader(bearer))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewOAuthError(ErrorTypeUnableToGetUserInfo,
			"Unable to fetch user information. Please try again.", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBody))
	if err != nil {
		return nil, NewOAuthError(ErrorTypeUnableToGetUserInfo,
			"Unable to fetch user information. Please try again.", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden && strings.Contains(string(body), notSubscribedCode):
		return nil, NewOAuthError(ErrorTypeNotSubscribedToUserInfo,
			"This page has an authentication configuration error. Developers, see the logs for details.", nil)
	case resp.StatusCode == http.StatusForbidden:
		return nil, NewOAuthError(ErrorTypeInvalidOAuthToken,
			"The provided authentication token is invalid. Please try again.", nil)
	case resp.StatusCode != http.StatusOK:
		p.logger.Error("unable to get userinfo", "status", resp.StatusCode, "body", string(body))
		return nil, NewOAuthError(ErrorTypeUnableToGetUserInfo,
			"Unable to fetch user information. Please try again.",
			fmt.Errorf("userinfo returned %d", resp.StatusCode))
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, NewOAuthError(ErrorTypeUnableToGetUserInfo,
			"Unable to fetch user information. Please try again.", err)
	}
	return claims, nil
}
