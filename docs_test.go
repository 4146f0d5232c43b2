// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package browseroauth_test

import (
	"context"
	"fmt"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/byuweb/browser-oauth/internal/desktop"
	"github.com/byuweb/browser-oauth/storage"
	"github.com/byuweb/browser-oauth/storage/sqlite"
)

func Example_authn() {
	ctx := context.Background()

	// Create a config for a client registered with a local redirect URL.
	c, err := authn.NewConfig(
		"your_client_id",
		authn.WithCallbackURL("http://127.0.0.1:8765/callback"),
		authn.WithAutoRefresh(true),
	)
	if err != nil {
		// handle error
	}

	// Sessions written here are restored the next time the program runs.
	db, err := sqlite.Open(ctx, "sessions.db")
	if err != nil {
		// handle error
	}
	h, err := storage.NewHandler(db, db)
	if err != nil {
		// handle error
	}
	defer h.Close()

	// Listen for the redirect that ends the login, and host the provider in
	// a window which shows pages in the system browser.
	srv, err := desktop.ListenCallback(c.CallbackURL)
	if err != nil {
		// handle error
	}
	defer srv.Close()
	w, err := desktop.NewWindow(c.CallbackURL)
	if err != nil {
		// handle error
	}

	p, err := authn.NewProvider(c, w, authn.WithStorage(h))
	if err != nil {
		// handle error
	}
	s, err := p.Startup(ctx)
	if err != nil {
		// handle error
	}
	if s.State != authn.StateAuthenticated {
		// Send the browser to the identity provider and wait for it to come
		// back.
		if err := p.StartLogin(ctx, authn.DisplayWindow); err != nil {
			// handle error
		}
		loc, err := srv.Await(ctx)
		if err != nil {
			// handle error
		}

		// Start again on the callback location, just as a browser would
		// after the redirect.
		if err := p.Shutdown(ctx); err != nil {
			// handle error
		}
		w.SetLocation(loc)
		if s, err = p.Startup(ctx); err != nil {
			// handle error
		}
	}
	defer p.Shutdown(ctx)

	if s.State == authn.StateAuthenticated {
		fmt.Println("signed in as", s.User.NetID)
		fmt.Println("send:", s.Token.AuthorizationHeader)
	}
}
