// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// browseroauth signs users in to BYU with the OAuth 2.0 authorization code
// flow and PKCE, and keeps the resulting session alive.
//
// The work is done by package authn, whose Provider is a state machine
// hosted by a browsing context (a Window). It recognizes callback loads,
// exchanges codes, fetches userinfo, persists the session and refreshes it
// before the token expires. Popups and hidden refresh frames forward their
// state changes to the window that opened them.
//
// Package storage and its memory, redis and sqlite backends persist the
// handshake and session state. Command oauthctl hosts a Provider in a
// terminal, using the system browser for the identity provider's pages.
package browseroauth
