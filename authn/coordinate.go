// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"fmt"
)

// handleStateChange decides what a state change means for this window. A
// popup forwards untagged changes to its opener and closes once
// authenticated. The refresh frame forwards untagged changes to its parent
// and removes itself once authenticated. A top-level window persists the
// session and polls for expiry.
func (p *Provider) handleStateChange(ctx context.Context, c StateChange) {
	if opener := p.liveOpener(); opener != nil {
		if c.Source != SourceSelf {
			return
		}
		p.forward(opener, c, SourcePopup)
		if c.Store.State == StateAuthenticated {
			if err := p.window.Close(); err != nil {
				p.logger.Warn("unable to close popup", "error", err)
			}
		}
		return
	}

	if parent, frame := p.enclosingFrame(); frame != nil {
		if c.Source != SourceSelf {
			return
		}
		p.forward(parent, c, SourceIframe)
		if c.Store.State == StateAuthenticated {
			if err := frame.Remove(); err != nil {
				p.logger.Warn("unable to remove refresh frame", "error", err)
			}
		}
		return
	}

	p.persistSession(ctx, c.Store)
	switch c.Store.State {
	case StateAuthenticated:
		if c.Store.Token != nil {
			p.scheduleExpirationCheck(c.Store.Token)
		}
	case StateUnauthenticated, StateExpired, StateIndeterminate:
		p.cancelExpirationCheck()
	}
}

// liveOpener returns the opener when this window is a popup opened from the
// callback origin.
func (p *Provider) liveOpener() Peer {
	opener := p.window.Opener()
	if opener == nil || opener.Closed() {
		return nil
	}
	if opener.Origin() != p.config.callbackOrigin() {
		return nil
	}
	return opener
}

// enclosingFrame returns the parent and the refresh frame when this window
// is the refresh frame's content window.
func (p *Provider) enclosingFrame() (Parent, Frame) {
	parent := p.window.Parent()
	if parent == nil {
		return nil, nil
	}
	doc := parent.Document()
	if doc == nil {
		return nil, nil
	}
	frame := doc.FrameByID(ChildFrameID)
	if frame == nil || frame.ContentWindow() != p.window {
		return nil, nil
	}
	return parent, frame
}

func (p *Provider) forward(to Peer, c StateChange, src Source) {
	c.Source = src
	if loc := p.window.Location(); loc != nil {
		c.Origin = originOf(loc.String())
	}
	if err := to.Deliver(c); err != nil {
		p.logger.Warn("unable to forward state change", "source", src, "error", err)
	}
}

// Accept applies a state change forwarded by a popup or refresh frame. The
// change must come from the callback origin and be tagged with its source.
// Accepted changes are published but never forwarded again. A forwarded
// StateAutoRefreshFailed is published without replacing the current store.
func (p *Provider) Accept(ctx context.Context, c StateChange) error {
	const op = "authn.(Provider).Accept"
	if !p.isStarted() {
		return fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	if c.Source != SourcePopup && c.Source != SourceIframe {
		return fmt.Errorf("%s: state change has no source: %w", op, ErrInvalidParameter)
	}
	if want := p.config.callbackOrigin(); c.Origin != want {
		return fmt.Errorf("%s: origin %q is not %q: %w", op, c.Origin, want, ErrInvalidParameter)
	}
	if c.Store.State.notificationOnly() {
		p.metrics.transition(c.Store.State)
	} else {
		p.setStore(c.Store)
	}
	p.bus.Publish(ctx, EventStateChanged, c)
	return nil
}
