// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package desktop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
)

const (
	successHTML = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><p>You are signed in. You can close this window and return to the terminal.</p></body>
</html>`

	failedHTML = `<!DOCTYPE html>
<html><head><title>Sign in failed</title></head>
<body><p>Sign in did not complete. Return to the terminal for details.</p></body>
</html>`
)

// CallbackServer listens on the host and port of a callback URL and hands
// the first redirect it receives to Await.
type CallbackServer struct {
	callbackURL *url.URL
	srv         *http.Server
	logger      hclog.Logger

	received chan *url.URL
	failed   chan error
	once     sync.Once
}

// ListenCallback starts a CallbackServer for callbackURL, which must be an
// http URL. A port of 0 picks a free port; URL reports the one chosen.
// Supported options:
//   - WithLogger
func ListenCallback(callbackURL string, opt ...Option) (*CallbackServer, error) {
	const op = "desktop.ListenCallback"
	u, err := url.Parse(callbackURL)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: invalid callback url: %w", op, authn.ErrInvalidParameter)
	case u.Scheme != "http":
		return nil, fmt.Errorf("%s: callback url %q must use http: %w", op, callbackURL, authn.ErrInvalidParameter)
	case u.Port() == "":
		return nil, fmt.Errorf("%s: callback url %q must name a port: %w", op, callbackURL, authn.ErrInvalidParameter)
	}
	opts := getOpts(opt...)

	l, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to listen on %s: %w", op, u.Host, err)
	}
	bound := *u
	bound.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(l.Addr().(*net.TCPAddr).Port))
	bound.RawQuery = ""
	bound.Fragment = ""

	s := &CallbackServer{
		callbackURL: &bound,
		logger:      opts.withLogger,
		received:    make(chan *url.URL, 1),
		failed:      make(chan error, 1),
	}
	path := bound.Path
	if path == "" {
		path = "/"
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(path, s.handleCallback)

	s.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.failed <- err
		}
	}()
	s.logger.Debug("listening for callback", "url", s.callbackURL.String())
	return s, nil
}

// URL is the callback URL the server answers on, with the bound port.
func (s *CallbackServer) URL() string {
	return s.callbackURL.String()
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if q.Get("code") == "" && q.Get("error") == "" {
		http.Error(w, "not an authorization response", http.StatusBadRequest)
		return
	}
	loc := *s.callbackURL
	loc.RawQuery = req.URL.RawQuery

	delivered := false
	s.once.Do(func() {
		s.received <- &loc
		delivered = true
	})
	if !delivered {
		s.logger.Warn("ignoring repeated callback")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := successHTML
	if q.Get("error") != "" {
		page = failedHTML
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(page)); err != nil {
		s.logger.Warn("unable to write callback response", "error", err)
	}
}

// Await blocks until the browser is redirected to the callback URL and
// returns the full location it was sent to.
func (s *CallbackServer) Await(ctx context.Context) (*url.URL, error) {
	const op = "desktop.(CallbackServer).Await"
	select {
	case u := <-s.received:
		return u, nil
	case err := <-s.failed:
		return nil, fmt.Errorf("%s: callback server failed: %w", op, err)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// Close stops the server.
func (s *CallbackServer) Close() error {
	const op = "desktop.(CallbackServer).Close"
	if err := s.srv.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
