// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"fmt"
	"runtime"
	"sync"
)

// Registry tracks the one started Provider per hosting document. Providers
// use DefaultRegistry unless WithRegistry says otherwise; tests typically
// pass their own.
type Registry struct {
	mu    sync.Mutex
	owner *Provider
	at    string
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// claim records p as the started provider. skip is the number of stack
// frames between claim and the caller to report.
func (r *Registry) claim(p *Provider, skip int) error {
	const op = "authn.(Registry).claim"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner != nil {
		return fmt.Errorf("%s: already started at %s: %w", op, r.at, ErrAlreadyStarted)
	}
	at := "unknown"
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		at = fmt.Sprintf("%s:%d", file, line)
	}
	r.owner, r.at = p, at
	return nil
}

// release frees the slot if p holds it.
func (r *Registry) release(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == p {
		r.owner, r.at = nil, ""
	}
}

// StartedAt reports where the started provider was started, or "" if none
// is.
func (r *Registry) StartedAt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.at
}

// Reset frees the slot regardless of who holds it.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner, r.at = nil, ""
}
