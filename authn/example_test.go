// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn_test

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/byuweb/browser-oauth/bus"
	"github.com/byuweb/browser-oauth/storage"
	"github.com/byuweb/browser-oauth/storage/memory"
	"github.com/hashicorp/go-hclog"
)

// exampleWindow is a top-level window that cannot host frames.
type exampleWindow struct {
	location *url.URL
}

func (w *exampleWindow) Location() *url.URL {
	u := *w.location
	return &u
}

func (w *exampleWindow) Navigate(u string) error {
	fmt.Println("navigate:", u[:len("https://api.byu.edu/authorize")])
	return nil
}

func (w *exampleWindow) Open(u string) error { return nil }
func (w *exampleWindow) Replace(u string) error { return nil }
func (w *exampleWindow) Close() error { return nil }
func (w *exampleWindow) Opener() authn.Peer { return nil }
func (w *exampleWindow) Parent() authn.Parent { return nil }
func (w *exampleWindow) Document() authn.Document { return nil }

func ExampleNewProvider() {
	ctx := context.Background()

	c, err := authn.NewConfig("my-client-id", authn.WithCallbackURL("https://example.com/spa"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	loc, _ := url.Parse("https://example.com/spa")

	kv := memory.New()
	store, err := storage.NewHandler(kv, kv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	b := bus.New()
	b.Subscribe(authn.EventStateChanged, func(_ context.Context, payload interface{}) {
		fmt.Println("state:", payload.(authn.StateChange).Store.State)
	})

	p, err := authn.NewProvider(c, &exampleWindow{location: loc},
		authn.WithStorage(store),
		authn.WithBus(b),
		authn.WithRegistry(authn.NewRegistry()),
		authn.WithLogger(hclog.NewNullLogger()),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if _, err := p.Startup(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	// pages may also publish authn.EventLoginRequested on the bus
	if err := p.StartLogin(ctx, authn.DisplayWindow); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if err := p.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	// Output:
	// state: indeterminate
	// state: unauthenticated
	// navigate: https://api.byu.edu/authorize
	// state: indeterminate
}

func ExampleConfig_LogoutURL() {
	c, err := authn.NewConfig("my-client-id", authn.WithCallbackURL("https://example.com/spa"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(c.LogoutURL())

	// Output:
	// https://api.byu.edu/logout?redirect_url=https%3A%2F%2Fcas.byu.edu%2Fcas%2Flogout%3Fservice%3Dhttps%253A%252F%252Fexample.com%252Fspa
}
