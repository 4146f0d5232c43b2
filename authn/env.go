// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable ConfigFromEnv reads.
const EnvPrefix = "BYU_OAUTH_"

// ConfigFromEnv builds a Config from BYU_OAUTH_* environment variables
// (BYU_OAUTH_CLIENT_ID, BYU_OAUTH_CALLBACK_URL, ...). The callback URL may be
// left unset; NewProvider defaults it from the hosting window.
func ConfigFromEnv() (*Config, error) {
	const op = "authn.ConfigFromEnv"
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("%s: unable to parse environment: %w", op, err)
	}
	if err := c.validate(false); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return &c, nil
}
