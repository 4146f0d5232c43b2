// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

// AuthState is a state of the authentication state machine.
type AuthState string

const (
	StateIndeterminate   AuthState = "indeterminate"
	StateUnauthenticated AuthState = "unauthenticated"
	StateAuthenticating  AuthState = "authenticating"
	StateAuthenticated   AuthState = "authenticated"
	StateRefreshing      AuthState = "refreshing"
	StateExpired         AuthState = "expired"
	StateError           AuthState = "error"

	// StateAutoRefreshFailed is only ever surfaced as a notification: a
	// hidden-frame refresh could not complete without user interaction.
	StateAutoRefreshFailed AuthState = "auto-refresh-failed"
)

// Settled reports whether s is a state Startup may return in.
func (s AuthState) Settled() bool {
	switch s {
	case StateAuthenticated, StateUnauthenticated, StateError:
		return true
	default:
		return false
	}
}

// notificationOnly reports whether s is published without ever becoming the
// held state.
func (s AuthState) notificationOnly() bool {
	return s == StateAutoRefreshFailed
}

// clearsSession reports whether reaching s removes the persisted session.
func (s AuthState) clearsSession() bool {
	switch s {
	case StateUnauthenticated, StateRefreshing, StateExpired:
		return true
	default:
		return false
	}
}

// DisplayType selects the browsing context a login runs in.
type DisplayType string

const (
	DisplayWindow DisplayType = "window"
	DisplayPopup  DisplayType = "popup"
	DisplayIframe DisplayType = "iframe"
)

func (d DisplayType) valid() bool {
	switch d {
	case DisplayWindow, DisplayPopup, DisplayIframe:
		return true
	default:
		return false
	}
}

// Source tags a state change forwarded from a child browsing context. Tagged
// changes are never forwarded again.
type Source string

const (
	SourceSelf   Source = ""
	SourcePopup  Source = "popup"
	SourceIframe Source = "iframe"
)

// Store is an immutable snapshot of the provider's authentication state. A
// new Store replaces the old one on every transition.
type Store struct {
	State AuthState
	User  *User
	Token *Token
	Error error

	// PageState is the page state saved by the login this store completed,
	// if any.
	PageState map[string]string
}

// StateChange is the state-changed notification payload.
type StateChange struct {
	Store Store

	// Source is set when the change was forwarded from a popup or iframe.
	Source Source

	// Origin is the origin of the window that forwarded the change. It is
	// checked against the callback origin before a forwarded change is
	// accepted.
	Origin string
}
