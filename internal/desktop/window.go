// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Package desktop hosts an authn.Provider outside a browser. Navigation and
// popups open the system browser, the redirect that ends a login is received
// by a local CallbackServer, and the host moves the window to the callback
// location before starting the provider again.
package desktop

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/browser"
)

// Window is an authn.Window for a process without a DOM. It has no opener
// or parent and its document cannot host frames, so hidden-frame logins
// always report auto-refresh-failed.
type Window struct {
	mu       sync.Mutex
	location *url.URL
	opened   []string

	openURL func(string) error
	logger  hclog.Logger
}

var _ authn.Window = (*Window)(nil)

// Option configures a Window or a CallbackServer.
type Option func(interface{})

type options struct {
	withBrowser func(string) error
	withLogger  hclog.Logger
}

func getOpts(opt ...Option) options {
	opts := options{
		withBrowser: browser.OpenURL,
		withLogger:  hclog.NewNullLogger(),
	}
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithBrowser replaces the function used to show a URL to the user. The
// default opens the system browser.
func WithBrowser(fn func(string) error) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && fn != nil {
			o.withBrowser = fn
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// NewWindow creates a Window whose current location is location.
// Supported options:
//   - WithBrowser
//   - WithLogger
func NewWindow(location string, opt ...Option) (*Window, error) {
	const op = "desktop.NewWindow"
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid location %q: %w", op, location, authn.ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	return &Window{
		location: u,
		openURL:  opts.withBrowser,
		logger:   opts.withLogger,
	}, nil
}

// Location implements authn.Window.
func (w *Window) Location() *url.URL {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := *w.location
	return &u
}

// SetLocation moves the window to u, as a browser does when a redirect
// lands on the page. The provider must be restarted to notice.
func (w *Window) SetLocation(u *url.URL) {
	cp := *u
	w.mu.Lock()
	defer w.mu.Unlock()
	w.location = &cp
}

// Navigate implements authn.Window by opening u in the system browser.
func (w *Window) Navigate(u string) error {
	const op = "desktop.(Window).Navigate"
	if err := w.show(u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Open implements authn.Window. A popup is just another browser tab.
func (w *Window) Open(u string) error {
	const op = "desktop.(Window).Open"
	if err := w.show(u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (w *Window) show(u string) error {
	if _, err := url.Parse(u); err != nil {
		return fmt.Errorf("invalid url: %w", authn.ErrInvalidParameter)
	}
	w.mu.Lock()
	w.opened = append(w.opened, u)
	w.mu.Unlock()
	w.logger.Debug("opening browser", "url", u)
	if err := w.openURL(u); err != nil {
		return fmt.Errorf("unable to open browser: %w", err)
	}
	return nil
}

// Opened lists every URL shown in the browser, oldest first.
func (w *Window) Opened() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.opened...)
}

// Replace implements authn.Window.
func (w *Window) Replace(u string) error {
	const op = "desktop.(Window).Replace"
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", op, authn.ErrInvalidParameter)
	}
	w.SetLocation(parsed)
	return nil
}

// Close implements authn.Window. There is nothing to close.
func (w *Window) Close() error { return nil }

// Opener implements authn.Window.
func (w *Window) Opener() authn.Peer { return nil }

// Parent implements authn.Window.
func (w *Window) Parent() authn.Parent { return nil }

// Document implements authn.Window.
func (w *Window) Document() authn.Document { return frameless{} }

// frameless is a document that cannot host frames.
type frameless struct{}

func (frameless) FrameByID(string) authn.Frame { return nil }

func (frameless) AppendFrame(string, string, func(authn.Frame)) (authn.Frame, error) {
	const op = "desktop.AppendFrame"
	return nil, fmt.Errorf("%s: %w", op, authn.ErrFramesUnsupported)
}
