// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnyLocation is the Rules key of a config that applies wherever the
// provider is hosted.
const AnyLocation = "*"

// Rules maps URL prefixes to the config used for locations under them. Keys
// that are not http(s) URLs are ignored, except AnyLocation.
type Rules map[string]Config

// ResolveConfig picks the config for location. The longest http(s) key that
// prefixes location wins, and the key becomes the callback URL unless the
// rule sets one. An AnyLocation rule is used when no key matches.
func ResolveConfig(rules Rules, location *url.URL) (*Config, error) {
	const op = "authn.ResolveConfig"
	if location == nil {
		return nil, fmt.Errorf("%s: location is nil: %w", op, ErrNilParameter)
	}
	keys := make([]string, 0, len(rules))
	for k := range rules {
		if strings.HasPrefix(k, "https://") || strings.HasPrefix(k, "http://") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	href := location.String()
	for _, k := range keys {
		if !strings.HasPrefix(href, k) {
			continue
		}
		c := rules[k]
		if c.CallbackURL == "" {
			c.CallbackURL = k
		}
		return withConfigDefaults(&c), nil
	}
	if c, ok := rules[AnyLocation]; ok {
		return withConfigDefaults(&c), nil
	}
	return nil, fmt.Errorf("%s: %q: %w", op, href, ErrNoConfigMatch)
}

func withConfigDefaults(c *Config) *Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.CASLogoutURL == "" {
		c.CASLogoutURL = DefaultCASLogoutURL
	}
	return c
}

// LoadRules reads a YAML rules document. A document whose top level carries
// a clientId is a single config and is returned under AnyLocation.
func LoadRules(r io.Reader) (Rules, error) {
	const op = "authn.LoadRules"
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: unable to decode rules: %w", op, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: rules must be a mapping: %w", op, ErrInvalidParameter)
	}
	root := doc.Content[0]
	for i := 0; i < len(root.Content); i += 2 {
		if root.Content[i].Value == "clientId" {
			var c Config
			if err := root.Decode(&c); err != nil {
				return nil, fmt.Errorf("%s: unable to decode config: %w", op, err)
			}
			return Rules{AnyLocation: c}, nil
		}
	}
	rules := Rules{}
	if err := root.Decode(&rules); err != nil {
		return nil, fmt.Errorf("%s: unable to decode rules: %w", op, err)
	}
	return rules, nil
}
