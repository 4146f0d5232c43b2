// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// loginOptions is the set of available options for StartLogin
type loginOptions struct {
	withPageState map[string]string
}

func getLoginOpts(opt ...Option) loginOptions {
	var opts loginOptions
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPageState provides page state saved with the pending login and
// returned in the Store once the login completes.
func WithPageState(s map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loginOptions); ok {
			o.withPageState = s
		}
	}
}

// StartLogin begins an authorization code login. It saves a fresh pending
// state (CSRF token and PKCE verifier), replacing any earlier one, and sends
// the user to the authorize endpoint: by navigating this window
// (DisplayWindow, the default), by opening a popup (DisplayPopup), or in the
// hidden refresh frame (DisplayIframe).
//
// Supported options:
//   - WithPageState
func (p *Provider) StartLogin(ctx context.Context, dt DisplayType, opt ...Option) error {
	const op = "authn.(Provider).StartLogin"
	if dt == "" {
		dt = DisplayWindow
	}
	if !dt.valid() {
		return fmt.Errorf("%s: %q: %w", op, dt, ErrUnsupportedDisplayType)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if dt == DisplayIframe && !p.isStarted() {
		return fmt.Errorf("%s: refresh frame needs a started provider: %w", op, ErrNotStarted)
	}
	opts := getLoginOpts(opt...)

	csrf, err := newCSRFToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	v, err := NewCodeVerifier()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	pending := newPendingState(p.clock.Now(), csrf, v, opts.withPageState)
	if err := p.storage.SaveOAuthState(ctx, p.config.ClientID, pending); err != nil {
		return fmt.Errorf("%s: unable to save oauth state: %w", op, err)
	}
	authURL := p.AuthURL(csrf, v)

	switch dt {
	case DisplayWindow:
		p.logger.Info("redirecting to login", "url", authURL)
		if err := p.window.Navigate(authURL); err != nil {
			return fmt.Errorf("%s: unable to navigate: %w", op, err)
		}
	case DisplayPopup:
		p.logger.Info("opening login popup", "url", authURL)
		if err := p.window.Open(authURL); err != nil {
			return fmt.Errorf("%s: unable to open popup: %w", op, err)
		}
	case DisplayIframe:
		p.logger.Info("starting login in refresh frame")
		if err := p.startFrameLogin(ctx, authURL); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// AuthURL builds the authorize URL for a login identified by csrf.
func (p *Provider) AuthURL(csrf string, v *CodeVerifier) string {
	return p.oauth2Config.AuthCodeURL(csrf,
		oauth2.SetAuthURLParam("code_challenge", v.Challenge()),
		oauth2.SetAuthURLParam("code_challenge_method", string(v.Method())),
	)
}

// startFrameLogin (re)creates the hidden refresh frame pointed at authURL.
func (p *Provider) startFrameLogin(ctx context.Context, authURL string) error {
	doc := p.window.Document()
	if doc == nil {
		p.frameLoginFailed(ctx, ErrFramesUnsupported)
		return nil
	}
	if old := doc.FrameByID(ChildFrameID); old != nil {
		if err := old.Remove(); err != nil {
			p.logger.Warn("unable to remove previous refresh frame", "error", err)
		}
	}
	frame, err := doc.AppendFrame(ChildFrameID, authURL, func(f Frame) {
		p.onRefreshFrameLoad(p.background(), f)
	})
	switch {
	case errors.Is(err, ErrFramesUnsupported):
		p.frameLoginFailed(ctx, err)
		return nil
	case err != nil:
		return fmt.Errorf("unable to create refresh frame: %w", err)
	}
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		if err := frame.Remove(); err != nil {
			p.logger.Warn("unable to remove refresh frame", "error", err)
		}
		return fmt.Errorf("refresh frame outlived the provider: %w", ErrNotStarted)
	}
	p.refreshFrame = frame
	p.mu.Unlock()
	return nil
}

// onRefreshFrameLoad inspects the refresh frame after each load. Reading a
// cross-origin body fails while the frame is on the identity provider,
// which is expected. A readable, non-empty body means the frame stopped on a
// same-origin page without completing the login.
func (p *Provider) onRefreshFrameLoad(ctx context.Context, f Frame) {
	body, err := f.Body()
	if err != nil || body == "" {
		return
	}
	if err := f.Remove(); err != nil {
		p.logger.Warn("unable to remove refresh frame", "error", err)
	}
	p.mu.Lock()
	if p.refreshFrame == f {
		p.refreshFrame = nil
	}
	p.mu.Unlock()
	p.frameLoginFailed(ctx, nil)
}

func (p *Provider) frameLoginFailed(ctx context.Context, cause error) {
	if cause != nil {
		p.logger.Warn("hidden frame login is unavailable", "error", cause)
	} else {
		p.logger.Warn("hidden frame login needs user interaction")
	}
	cur := p.CurrentInfo()
	p.notify(ctx, Store{State: StateAutoRefreshFailed, User: cur.User, Token: cur.Token})
}

// StartLogout clears the persisted session and navigates this window to the
// chained logout URL. Tokens are not revoked.
func (p *Provider) StartLogout(ctx context.Context) error {
	const op = "authn.(Provider).StartLogout"
	if err := p.storage.ClearSessionState(ctx, p.config.ClientID); err != nil {
		return fmt.Errorf("%s: unable to clear session: %w", op, err)
	}
	p.cancelExpirationCheck()
	logoutURL := p.config.LogoutURL()
	p.logger.Info("redirecting to logout", "url", logoutURL)
	if err := p.window.Navigate(logoutURL); err != nil {
		return fmt.Errorf("%s: unable to navigate: %w", op, err)
	}
	return nil
}

// StartRefresh renews the session. It moves to StateRefreshing, keeping the
// current user and token visible, then exchanges the refresh token. Without
// a refresh token, when the exchange fails, or when dt is not DisplayIframe
// (the default), it starts a new login instead.
func (p *Provider) StartRefresh(ctx context.Context, dt DisplayType) error {
	const op = "authn.(Provider).StartRefresh"
	if dt == "" {
		dt = DisplayIframe
	}
	if !dt.valid() {
		return fmt.Errorf("%s: %q: %w", op, dt, ErrUnsupportedDisplayType)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	cur := p.CurrentInfo()
	snapshot := Store{State: StateRefreshing}
	if cur.User != nil {
		u := *cur.User
		snapshot.User = &u
	}
	if cur.Token != nil {
		t := *cur.Token
		snapshot.Token = &t
	}
	p.changeState(ctx, snapshot)

	if dt != DisplayIframe {
		return p.StartLogin(ctx, dt)
	}
	if snapshot.Token == nil || snapshot.Token.Refresh == "" {
		p.logger.Debug("no refresh token held, starting frame login")
		return p.StartLogin(ctx, DisplayIframe)
	}

	tk, err := p.refresh(ctx, string(snapshot.Token.Refresh))
	if err != nil {
		p.metrics.failure(refreshFailure)
		p.logger.Warn("refresh token exchange failed, starting frame login", "error", err)
		return p.StartLogin(ctx, DisplayIframe)
	}
	next := snapshot.Token.withRefresh(tk.AccessToken, RefreshToken(tk.RefreshToken), p.tokenExpiresAt(tk))
	p.logger.Info("session refreshed", "expires_at", next.ExpiresAt)
	p.changeState(ctx, Store{State: StateAuthenticated, User: snapshot.User, Token: next})
	return nil
}
