// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/byuweb/browser-oauth/internal/httpclient"
)

const (
	// DefaultBaseURL is the identity provider's origin.
	DefaultBaseURL = "https://api.byu.edu"

	// DefaultCASLogoutURL is the second hop of the logout chain.
	DefaultCASLogoutURL = "https://cas.byu.edu/cas/logout"
)

// Config is the provider configuration. It is immutable once a Provider has
// been created from it.
type Config struct {
	// ClientID is the OAuth client id. Required.
	ClientID string `env:"CLIENT_ID" yaml:"clientId"`

	// BaseURL is the identity provider's origin. Endpoints are derived from
	// it.
	BaseURL string `env:"BASE_URL" envDefault:"https://api.byu.edu" yaml:"baseUrl"`

	// CallbackURL is the exact URL redirects return to. A location is a
	// callback when its string form starts with CallbackURL.
	CallbackURL string `env:"CALLBACK_URL" yaml:"callbackUrl"`

	// AutoRefreshOnTimeout refreshes the session before the token expires
	// instead of moving to StateExpired.
	AutoRefreshOnTimeout bool `env:"AUTO_REFRESH_ON_TIMEOUT" yaml:"autoRefreshOnTimeout"`

	// LogoutRedirect is where the browser lands after logout. Defaults to
	// CallbackURL.
	LogoutRedirect string `env:"LOGOUT_REDIRECT" yaml:"logoutRedirect"`

	// CASLogoutURL is the second-hop logout endpoint.
	CASLogoutURL string `env:"CAS_LOGOUT_URL" envDefault:"https://cas.byu.edu/cas/logout" yaml:"casLogoutUrl"`

	// ProviderCA is an optional CA cert to use when sending requests to the
	// identity provider.
	ProviderCA string `env:"PROVIDER_CA" yaml:"providerCA"`
}

// NewConfig composes a new config.
// Supported options:
//   - WithBaseURL
//   - WithCallbackURL
//   - WithAutoRefresh
//   - WithLogoutRedirect
//   - WithCASLogoutURL
//   - WithProviderCA
//
// The callback URL may be left empty; NewProvider defaults it from the
// hosting window.
func NewConfig(clientID string, opt ...Option) (*Config, error) {
	const op = "authn.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:             clientID,
		BaseURL:              opts.withBaseURL,
		CallbackURL:          opts.withCallbackURL,
		AutoRefreshOnTimeout: opts.withAutoRefresh,
		LogoutRedirect:       opts.withLogoutRedirect,
		CASLogoutURL:         opts.withCASLogoutURL,
		ProviderCA:           opts.withProviderCA,
	}
	if err := c.validate(false); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. It verifies the client id is set and that the
// URLs are absolute http(s) URLs, but makes no requests.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireCallback bool) error {
	const op = "authn.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if err := validateHTTPURL(c.BaseURL); err != nil {
		return fmt.Errorf("%s: base URL: %w", op, err)
	}
	if c.CallbackURL != "" || requireCallback {
		if err := validateHTTPURL(c.CallbackURL); err != nil {
			return fmt.Errorf("%s: callback URL: %w", op, err)
		}
	}
	if c.LogoutRedirect != "" {
		if err := validateHTTPURL(c.LogoutRedirect); err != nil {
			return fmt.Errorf("%s: logout redirect: %w", op, err)
		}
	}
	if c.CASLogoutURL != "" {
		if err := validateHTTPURL(c.CASLogoutURL); err != nil {
			return fmt.Errorf("%s: CAS logout URL: %w", op, err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q is invalid: %w", raw, ErrInvalidParameter)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%q scheme is not http or https: %w", raw, ErrInvalidParameter)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host: %w", raw, ErrInvalidParameter)
	}
	return nil
}

// clone returns a copy of the config.
func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// AuthorizeURL is the authorization endpoint.
func (c *Config) AuthorizeURL() string { return c.endpoint("/authorize") }

// TokenURL is the token endpoint.
func (c *Config) TokenURL() string { return c.endpoint("/token") }

// UserInfoURL is the userinfo endpoint.
func (c *Config) UserInfoURL() string {
	return c.endpoint("/openid-userinfo/v1/userinfo") + "?schema=openid"
}

func (c *Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// LogoutURL builds the chained logout URL: the identity provider's logout
// endpoint redirects to the CAS logout endpoint, which redirects to the
// logout redirect (or the callback URL).
func (c *Config) LogoutURL() string {
	final := c.LogoutRedirect
	if final == "" {
		final = c.CallbackURL
	}
	cas := c.CASLogoutURL
	if cas == "" {
		cas = DefaultCASLogoutURL
	}
	casHop := cas + "?service=" + url.QueryEscape(final)
	return c.endpoint("/logout") + "?redirect_url=" + url.QueryEscape(casHop)
}

// callbackOrigin returns the scheme://host of the callback URL.
func (c *Config) callbackOrigin() string {
	return originOf(c.CallbackURL)
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// HTTPClient is a helper function that creates a new http client for the
// identity provider configured
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "authn.(Config).HTTPClient"
	client, err := httpclient.New(c.ProviderCA)
	if err != nil {
		if errors.Is(err, httpclient.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}
