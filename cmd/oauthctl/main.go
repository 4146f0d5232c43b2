// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Command oauthctl signs a terminal user in to BYU through the system
// browser and keeps the resulting session in a local database.
//
//	oauthctl login      open the browser and wait for the redirect
//	oauthctl status     print the persisted session
//	oauthctl refresh    renew the session with its refresh token
//	oauthctl logout     forget the session and end the browser session
//	oauthctl watch      hold the session open, refreshing it as it expires
//
// Configuration comes from BYU_OAUTH_* environment variables (a .env file in
// the working directory is loaded first), from a rules file given with
// --rules, or from flags.
package main

import (
	"os"
)

func main() {
	if err := newApp().rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
