// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"fmt"
)

// listen registers the provider's bus handlers.
func (p *Provider) listen() error {
	const op = "authn.(Provider).listen"
	handlers := map[string]func(context.Context, interface{}){
		EventLoginRequested:       p.onLoginRequested,
		EventLogoutRequested:      p.onLogoutRequested,
		EventRefreshRequested:     p.onRefreshRequested,
		EventCurrentInfoRequested: p.onCurrentInfoRequested,
		EventStateChanged:         p.onStateChanged,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic := range handlers {
		if _, ok := p.unsubscribes[topic]; ok {
			return fmt.Errorf("%s: a listener is already registered for %s: %w", op, topic, ErrListenerRegistered)
		}
	}
	for topic, h := range handlers {
		p.unsubscribes[topic] = p.bus.Subscribe(topic, h)
	}
	return nil
}

// unlisten removes the provider's bus handlers. It may be called more than
// once.
func (p *Provider) unlisten() {
	p.mu.Lock()
	unsubscribes := p.unsubscribes
	p.unsubscribes = map[string]func(){}
	p.mu.Unlock()
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

func (p *Provider) onLoginRequested(ctx context.Context, payload interface{}) {
	var dt DisplayType
	switch r := payload.(type) {
	case LoginRequest:
		dt = r.DisplayType
	case *LoginRequest:
		if r != nil {
			dt = r.DisplayType
		}
	}
	if err := p.StartLogin(ctx, dt); err != nil {
		p.logger.Error("login request failed", "error", err)
	}
}

func (p *Provider) onLogoutRequested(ctx context.Context, _ interface{}) {
	if err := p.StartLogout(ctx); err != nil {
		p.logger.Error("logout request failed", "error", err)
	}
}

func (p *Provider) onRefreshRequested(ctx context.Context, payload interface{}) {
	var dt DisplayType
	switch r := payload.(type) {
	case RefreshRequest:
		dt = r.DisplayType
	case *RefreshRequest:
		if r != nil {
			dt = r.DisplayType
		}
	}
	if err := p.StartRefresh(ctx, dt); err != nil {
		p.logger.Error("refresh request failed", "error", err)
	}
}

func (p *Provider) onCurrentInfoRequested(_ context.Context, payload interface{}) {
	var cb func(Store)
	switch r := payload.(type) {
	case InfoRequest:
		cb = r.Callback
	case *InfoRequest:
		if r != nil {
			cb = r.Callback
		}
	}
	if cb != nil {
		cb(p.CurrentInfo())
	}
}

func (p *Provider) onStateChanged(ctx context.Context, payload interface{}) {
	switch c := payload.(type) {
	case StateChange:
		p.handleStateChange(ctx, c)
	case *StateChange:
		if c != nil {
			p.handleStateChange(ctx, *c)
		}
	}
}
