// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/byuweb/browser-oauth/bus"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
)

// Provider is the authentication state machine for one hosting window. It
// decides whether the page load is an OAuth callback, exchanges codes for
// tokens, persists and restores the session, coordinates popup and frame
// logins, and polls for token expiry.
//
// Only one Provider per Registry may be started at a time.
type Provider struct {
	id       string
	config   *Config
	window   Window
	storage  Storage
	bus      *bus.Bus
	registry *Registry
	clock    clockwork.Clock
	logger   hclog.Logger
	client   *http.Client
	metrics  *metrics

	oauth2Config oauth2.Config

	// ownedStorage is closed on shutdown because the provider created it.
	ownedStorage io.Closer

	mu      sync.Mutex
	store   Store
	started bool

	// unsubscribes holds the bus registrations, keyed by topic.
	unsubscribes map[string]func()

	// refreshFrame is the hidden login frame this provider appended, if it
	// is still attached.
	refreshFrame Frame

	expiry expiryCheck

	// backgroundCtx is the context used by the provider for background
	// activities like expiration polling and the refreshes it triggers.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates a Provider hosted in w. An empty c.CallbackURL
// defaults to the origin and path of w's location.
//
// Supported options:
//   - WithLogger
//   - WithStorage
//   - WithBus
//   - WithRegistry
//   - WithClock
//   - WithHTTPClient
//   - WithMetrics
func NewProvider(c *Config, w Window, opt ...Option) (*Provider, error) {
	const op = "authn.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if w == nil {
		return nil, fmt.Errorf("%s: window is nil: %w", op, ErrNilParameter)
	}
	c = c.clone()
	if c.CallbackURL == "" {
		if loc := w.Location(); loc != nil {
			c.CallbackURL = (&url.URL{Scheme: loc.Scheme, Host: loc.Host, Path: loc.Path}).String()
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate provider id: %w", op, err)
	}
	opts := getProviderOpts(opt...)
	p := &Provider{
		id:           id,
		config:       c,
		window:       w,
		storage:      opts.withStorage,
		bus:          opts.withBus,
		registry:     opts.withRegistry,
		clock:        opts.withClock,
		logger:       opts.withLogger.Named("authn").With("provider_id", id),
		client:       opts.withHTTPClient,
		store:        Store{State: StateIndeterminate},
		unsubscribes: map[string]func(){},
	}
	if p.storage == nil {
		h := defaultStorage()
		p.storage = h
		p.ownedStorage = h
	}
	if p.bus == nil {
		p.bus = bus.New()
	}
	if p.client == nil {
		client, err := c.HTTPClient()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
		p.client = client
	}
	m, err := newMetrics(opts.withMetrics)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to register metrics: %w", op, err)
	}
	p.metrics = m

	oc, err := newOAuth2Config(context.Background(), c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.oauth2Config = oc
	return p, nil
}

// ID identifies this provider in its log lines.
func (p *Provider) ID() string {
	return p.id
}

// Config returns the provider's config. It must not be modified.
func (p *Provider) Config() *Config {
	return p.config
}

// Bus returns the event bus the provider listens and publishes on.
func (p *Provider) Bus() *bus.Bus {
	return p.bus
}

// CurrentInfo returns the current state snapshot.
func (p *Provider) CurrentInfo() Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store
}

// Startup claims the registry slot, registers the bus listeners and settles
// the initial state: a callback location is exchanged for a session, a
// persisted unexpired session is restored, and anything else is
// unauthenticated. The returned Store is in StateAuthenticated,
// StateUnauthenticated or StateError.
//
// Startup fails without side effects when another provider is already
// started on the same Registry. Shutdown must be called for every
// successful Startup.
func (p *Provider) Startup(ctx context.Context) (Store, error) {
	const op = "authn.(Provider).Startup"
	if err := p.registry.claim(p, 1); err != nil {
		return Store{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := p.listen(); err != nil {
		p.unlisten()
		p.registry.release(p)
		return Store{}, fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	p.started = true
	p.backgroundCtx, p.backgroundCtxCancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	p.changeState(ctx, Store{State: StateIndeterminate})

	loc := p.window.Location()
	if p.IsAuthenticationCallback(loc) {
		p.logger.Debug("handling authentication callback", "location", redactCallback(loc))
		p.changeState(ctx, Store{State: StateAuthenticating})
		result := p.handleCallback(ctx, loc)
		p.removeCallbackParams(loc)
		p.changeState(ctx, result)
	} else {
		p.restoreSession(ctx)
	}
	return p.CurrentInfo(), nil
}

// Shutdown unregisters the listeners, cancels pending timers and background
// work, moves to StateIndeterminate and releases the registry slot. It is
// safe to call even if Startup failed or was never called.
func (p *Provider) Shutdown(ctx context.Context) error {
	const op = "authn.(Provider).Shutdown"
	var result *multierror.Error

	p.unlisten()

	p.mu.Lock()
	p.expiry.cancel()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
	frame := p.refreshFrame
	p.refreshFrame = nil
	wasStarted := p.started
	p.started = false
	p.mu.Unlock()

	if frame != nil {
		if err := frame.Remove(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unable to remove refresh frame: %w", op, err))
		}
	}

	if wasStarted {
		p.changeState(ctx, Store{State: StateIndeterminate})
	} else {
		p.setStore(Store{State: StateIndeterminate})
	}
	p.registry.release(p)

	if p.ownedStorage != nil {
		if err := p.ownedStorage.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unable to close storage: %w", op, err))
		}
	}
	return result.ErrorOrNil()
}

// IsAuthenticationCallback reports whether loc is the identity provider
// redirecting back: it starts with the callback URL and its query carries
// both code and state.
func (p *Provider) IsAuthenticationCallback(loc *url.URL) bool {
	if loc == nil {
		return false
	}
	if !strings.HasPrefix(loc.String(), p.config.CallbackURL) {
		return false
	}
	q := loc.Query()
	return q.Has("code") && q.Has("state")
}

// changeState replaces the store and publishes the change. Observers run
// before changeState returns and see the new store.
func (p *Provider) changeState(ctx context.Context, s Store) {
	p.setStore(s)
	p.bus.Publish(ctx, EventStateChanged, StateChange{Store: s})
}

// notify publishes a notification-only state without replacing the store.
func (p *Provider) notify(ctx context.Context, s Store) {
	p.metrics.transition(s.State)
	p.logger.Debug("state notification", "state", s.State)
	p.bus.Publish(ctx, EventStateChanged, StateChange{Store: s})
}

func (p *Provider) setStore(s Store) {
	p.mu.Lock()
	p.store = s
	p.mu.Unlock()
	p.metrics.transition(s.State)
	p.logger.Debug("state changed", "state", s.State)
}

// restoreSession moves to StateAuthenticated when an unexpired session is
// persisted, and to StateUnauthenticated otherwise.
func (p *Provider) restoreSession(ctx context.Context) {
	s, err := p.storage.GetSessionState(ctx, p.config.ClientID)
	if err != nil {
		p.logger.Warn("unable to read persisted session", "error", err)
		p.changeState(ctx, Store{State: StateUnauthenticated})
		return
	}
	if s == nil {
		p.changeState(ctx, Store{State: StateUnauthenticated})
		return
	}
	u, t, err := deserializeSession(s)
	switch {
	case err != nil:
		p.logger.Warn("discarding unreadable session", "error", err)
	case !t.ExpiresAt.After(p.clock.Now()):
		p.logger.Debug("discarding expired session", "expires_at", t.ExpiresAt)
	default:
		p.changeState(ctx, Store{State: StateAuthenticated, User: u, Token: t})
		return
	}
	// unauthenticated clears the stale entry on the way through
	p.changeState(ctx, Store{State: StateUnauthenticated})
}

// persistSession mirrors a top-level state change into storage.
func (p *Provider) persistSession(ctx context.Context, s Store) {
	switch {
	case s.State.clearsSession():
		if err := p.storage.ClearSessionState(ctx, p.config.ClientID); err != nil {
			p.logger.Warn("unable to clear persisted session", "error", err)
		}
	case s.State == StateAuthenticated && s.User != nil && s.Token != nil:
		ss, err := serializeSession(s.User, s.Token)
		if err == nil {
			err = p.storage.SaveSessionState(ctx, p.config.ClientID, ss)
		}
		if err != nil {
			p.logger.Warn("unable to persist session", "error", err)
		}
	}
}

// removeCallbackParams rewrites the location without code and state so a
// reload does not replay the callback.
func (p *Provider) removeCallbackParams(loc *url.URL) {
	clean := *loc
	q := clean.Query()
	q.Del("code")
	q.Del("state")
	clean.RawQuery = q.Encode()
	if err := p.window.Replace(clean.String()); err != nil {
		p.logger.Warn("unable to rewrite callback location", "error", err)
	}
}

func redactCallback(loc *url.URL) string {
	r := *loc
	q := r.Query()
	if q.Has("code") {
		q.Set("code", "redacted")
	}
	r.RawQuery = q.Encode()
	return r.String()
}

// background returns the context for provider-initiated work, or a
// cancelled context once shut down.
func (p *Provider) background() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return p.backgroundCtx
}

func (p *Provider) isStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

