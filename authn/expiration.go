// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// PollInterval is how often an authenticated provider checks for token
	// expiry.
	PollInterval = 5 * time.Second

	// longExpirationThreshold is the remaining lifetime above which the
	// identity provider is assumed to have reported the token without its
	// grace period deducted.
	longExpirationThreshold = 55 * time.Minute
)

// expiryCheck is the pending expiration poll. It is guarded by Provider.mu.
type expiryCheck struct {
	timer clockwork.Timer

	// gen identifies the current poll; a firing timer from an older poll
	// does nothing.
	gen uint64

	// deadline is when the polled token is treated as expired.
	deadline time.Time

	// adjusted is the bearer whose long expiration has been corrected, and
	// adjustedDeadline the corrected deadline.
	adjusted         string
	adjustedDeadline time.Time
}

func (e *expiryCheck) cancel() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// scheduleExpirationCheck replaces any pending poll with one for t.
func (p *Provider) scheduleExpirationCheck(t *Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiry.cancel()
	if !p.started {
		return
	}

	deadline := t.ExpiresAt
	switch remaining := deadline.Sub(p.clock.Now()); {
	case p.expiry.adjusted != "" && p.expiry.adjusted == t.Bearer:
		deadline = p.expiry.adjustedDeadline
	case remaining > longExpirationThreshold:
		p.logger.Warn("token expiration is further out than expected, deducting grace period",
			"remaining", remaining.Round(time.Second))
		deadline = deadline.Add(-GracePeriod)
		p.expiry.adjusted, p.expiry.adjustedDeadline = t.Bearer, deadline
	}
	p.expiry.deadline = deadline
	p.logger.Debug("polling for token expiry", "deadline", deadline)

	gen := p.expiry.gen
	p.expiry.timer = p.clock.AfterFunc(PollInterval, func() { p.checkExpiration(gen) })
}

// cancelExpirationCheck stops any pending poll.
func (p *Provider) cancelExpirationCheck() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiry.cancel()
}

// checkExpiration is one poll. Once less than one poll interval remains it
// refreshes the session, or moves to StateExpired when auto refresh is off.
func (p *Provider) checkExpiration(gen uint64) {
	p.mu.Lock()
	if gen != p.expiry.gen || !p.started {
		p.mu.Unlock()
		return
	}
	remaining := p.expiry.deadline.Sub(p.clock.Now())
	if remaining >= PollInterval {
		p.expiry.timer = p.clock.AfterFunc(PollInterval, func() { p.checkExpiration(gen) })
		p.mu.Unlock()
		return
	}
	p.expiry.timer = nil
	ctx := p.backgroundCtx
	p.mu.Unlock()

	if p.config.AutoRefreshOnTimeout {
		p.logger.Info("token is about to expire, refreshing")
		switch err := p.StartRefresh(ctx, DisplayIframe); {
		case err == nil:
		case ctx.Err() != nil:
			p.logger.Debug("automatic refresh abandoned on shutdown", "error", err)
		default:
			p.logger.Error("automatic refresh failed", "error", err)
		}
		return
	}
	p.logger.Info("token expired")
	p.changeState(ctx, Store{State: StateExpired})
}
