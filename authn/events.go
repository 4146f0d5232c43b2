// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

// Event bus topics. The names match the browser-oauth event names so a page
// bridge can map DOM events one to one.
const (
	EventLoginRequested       = "byu-browser-oauth-login-requested"
	EventLogoutRequested      = "byu-browser-oauth-logout-requested"
	EventRefreshRequested     = "byu-browser-oauth-refresh-requested"
	EventCurrentInfoRequested = "byu-browser-oauth-current-info-requested"
	EventStateChanged         = "byu-browser-oauth-state-changed"
)

// LoginRequest is the login-requested payload. An empty DisplayType means
// DisplayWindow.
type LoginRequest struct {
	DisplayType DisplayType
}

// LogoutRequest is the logout-requested payload.
type LogoutRequest struct{}

// RefreshRequest is the refresh-requested payload. An empty DisplayType
// means DisplayIframe.
type RefreshRequest struct {
	DisplayType DisplayType
}

// InfoRequest is the current-info-requested payload.
type InfoRequest struct {
	Callback func(Store)
}
