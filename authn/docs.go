// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

/*
Package authn is the authentication state machine of a BYU OAuth client
hosted in a browser window (or anything that behaves like one).

A Provider is created per hosting Window and started once per page load.
Startup settles the initial state: a location carrying code and state is
exchanged for a token (authorization code grant with PKCE), a persisted
unexpired session is restored, and anything else is unauthenticated.
Every transition replaces the immutable Store and is published on the bus
as EventStateChanged before the transition returns.

Logins run in one of three browsing contexts, selected by DisplayType: the
window itself, a popup, or a hidden refresh frame. A provider started in a
popup or in the refresh frame forwards its state changes to the window that
created it, which accepts them only from the callback origin (see
Provider.Accept).

While authenticated, a top-level provider polls every PollInterval for
token expiry and either refreshes the session or moves to StateExpired.

Only one Provider per Registry may be started at a time. Tests should use
their own Registry (WithRegistry) or call Registry.Reset.

Storage

Pending OAuth state and sessions are persisted through a Storage, normally
a *storage.Handler over one of the storage/memory, storage/redis or
storage/sqlite backends.

Example:

	c, err := authn.NewConfig(clientID, authn.WithCallbackURL("https://example.com/spa"))
	// handle err
	p, err := authn.NewProvider(c, window, authn.WithStorage(store), authn.WithLogger(logger))
	// handle err
	s, err := p.Startup(ctx)
	// handle err
	defer p.Shutdown(ctx)
	if s.State != authn.StateAuthenticated {
		_ = p.StartLogin(ctx, authn.DisplayWindow)
	}
*/
package authn
