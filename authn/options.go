// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"net/http"

	"github.com/byuweb/browser-oauth/bus"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withBaseURL        string
	withCallbackURL    string
	withAutoRefresh    bool
	withLogoutRedirect string
	withCASLogoutURL   string
	withProviderCA     string
}

func configDefaults() configOptions {
	return configOptions{
		withBaseURL:      DefaultBaseURL,
		withCASLogoutURL: DefaultCASLogoutURL,
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithBaseURL provides the identity provider's origin. Defaults to
// DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withBaseURL = u
		}
	}
}

// WithCallbackURL provides the URL the identity provider redirects back to.
// Defaults to the hosting window's origin and path.
func WithCallbackURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCallbackURL = u
		}
	}
}

// WithAutoRefresh enables refreshing the session when the token is about to
// expire, instead of moving to StateExpired.
func WithAutoRefresh(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAutoRefresh = enabled
		}
	}
}

// WithLogoutRedirect provides where the browser lands after logout. Defaults
// to the callback URL.
func WithLogoutRedirect(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogoutRedirect = u
		}
	}
}

// WithCASLogoutURL overrides the second-hop logout endpoint.
func WithCASLogoutURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCASLogoutURL = u
		}
	}
}

// WithProviderCA provides an optional CA cert PEM used for requests to the
// identity provider.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// providerOptions is the set of available options for NewProvider
type providerOptions struct {
	withLogger     hclog.Logger
	withStorage    Storage
	withBus        *bus.Bus
	withRegistry   *Registry
	withClock      clockwork.Clock
	withHTTPClient *http.Client
	withMetrics    prometheus.Registerer
}

func providerDefaults() providerOptions {
	return providerOptions{
		withLogger:   hclog.NewNullLogger(),
		withRegistry: DefaultRegistry,
		withClock:    clockwork.NewRealClock(),
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for the provider
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithStorage provides the storage adapter. Defaults to in-memory stores.
func WithStorage(s Storage) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withStorage = s
		}
	}
}

// WithBus provides the hosting document's event bus. Defaults to a private
// bus.
func WithBus(b *bus.Bus) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withBus = b
		}
	}
}

// WithRegistry provides the registry enforcing a single started provider.
// Defaults to DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && r != nil {
			o.withRegistry = r
		}
	}
}

// WithClock provides the clock used for expiry arithmetic and timers.
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && c != nil {
			o.withClock = c
		}
	}
}

// WithHTTPClient provides the client used for token and userinfo requests.
// Defaults to a pooled client honouring Config.ProviderCA.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithMetrics registers the provider's collectors with r.
func WithMetrics(r prometheus.Registerer) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.withMetrics = r
		}
	}
}
