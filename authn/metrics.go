// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// refreshFailure is the failure type counted when a refresh token exchange
// fails and the provider falls back to a frame login.
const refreshFailure = "refresh-failed"

// metrics are the provider's collectors. A nil *metrics records nothing.
type metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	if r == nil {
		return nil, nil
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authn",
		Name:      "state_transitions_total",
		Help:      "Authentication state transitions, by the state entered.",
	}, []string{"state"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authn",
		Name:      "oauth_failures_total",
		Help:      "Failed logins and refreshes, by error type.",
	}, []string{"type"})

	var err error
	if transitions, err = registerCounterVec(r, transitions); err != nil {
		return nil, err
	}
	if failures, err = registerCounterVec(r, failures); err != nil {
		return nil, err
	}
	return &metrics{transitions: transitions, failures: failures}, nil
}

// registerCounterVec registers c, reusing an identical collector a previous
// provider registered.
func registerCounterVec(r prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *metrics) transition(s AuthState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(s)).Inc()
}

func (m *metrics) failure(typ string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(typ).Inc()
}

// failureType is the metrics label for err.
func failureType(err error) string {
	var oe *OAuthError
	if errors.As(err, &oe) {
		return string(oe.Type)
	}
	return "unknown"
}
