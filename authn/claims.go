// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"fmt"
	"strings"

	"github.com/byuweb/browser-oauth/storage"
)

// Userinfo claim prefixes used by the identity provider.
const (
	ClaimsPrefixResourceOwner = "http://byu.edu/claims/resourceowner_"
	ClaimsPrefixClient        = "http://byu.edu/claims/client_"
	ClaimsPrefixWSO2          = "http://wso2.org/claims/"
)

var knownClaimPrefixes = []string{
	ClaimsPrefixClient,
	ClaimsPrefixResourceOwner,
	ClaimsPrefixWSO2,
}

// claimPrefix returns the longest known prefix of key, or "".
func claimPrefix(key string) string {
	var match string
	for _, p := range knownClaimPrefixes {
		if strings.HasPrefix(key, p) && len(p) > len(match) {
			match = p
		}
	}
	return match
}

// groupClaims buckets claims by known prefix, stripping the prefix from each
// key. Claims without a known prefix go in Other. Empty buckets are nil.
func groupClaims(claims map[string]interface{}) storage.GroupedUserInfo {
	var g storage.GroupedUserInfo
	put := func(bucket *map[string]interface{}, k string, v interface{}) {
		if *bucket == nil {
			*bucket = map[string]interface{}{}
		}
		(*bucket)[k] = v
	}
	for k, v := range claims {
		switch p := claimPrefix(k); p {
		case ClaimsPrefixResourceOwner:
			put(&g.ResourceOwner, k[len(p):], v)
		case ClaimsPrefixClient:
			put(&g.Client, k[len(p):], v)
		case ClaimsPrefixWSO2:
			put(&g.WSO2, k[len(p):], v)
		default:
			put(&g.Other, k, v)
		}
	}
	return g
}

// ungroupClaims is the inverse of groupClaims.
func ungroupClaims(g storage.GroupedUserInfo) map[string]interface{} {
	out := make(map[string]interface{}, len(g.ResourceOwner)+len(g.Client)+len(g.WSO2)+len(g.Other))
	for k, v := range g.ResourceOwner {
		out[ClaimsPrefixResourceOwner+k] = v
	}
	for k, v := range g.Client {
		out[ClaimsPrefixClient+k] = v
	}
	for k, v := range g.WSO2 {
		out[ClaimsPrefixWSO2+k] = v
	}
	for k, v := range g.Other {
		out[k] = v
	}
	return out
}

// claims returns the claims carrying prefix, with the prefix stripped.
func claims(all map[string]interface{}, prefix string) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range all {
		if strings.HasPrefix(k, prefix) {
			out[k[len(prefix):]] = v
		}
	}
	return out
}

func claimString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
