// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/base62"
)

const (
	// csrfTokenLen is the length of the generated state parameter.
	csrfTokenLen = 24

	// verifierLen is the length of the generated PKCE verifier, the maximum
	// RFC 7636 allows.
	verifierLen = 128
)

// ChallengeMethod is a PKCE code challenge method.
type ChallengeMethod string

// S256 is the only challenge method this provider sends.
const S256 ChallengeMethod = "S256"

// CodeVerifier is a PKCE verifier and its derived challenge.
type CodeVerifier struct {
	verifier  string
	challenge string
}

// NewCodeVerifier generates a random verifier and its S256 challenge.
func NewCodeVerifier() (*CodeVerifier, error) {
	const op = "authn.NewCodeVerifier"
	v, err := base62.Random(verifierLen)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate verifier: %w", op, err)
	}
	return &CodeVerifier{
		verifier:  v,
		challenge: CreateCodeChallenge(v),
	}, nil
}

// Verifier returns the verifier sent to the token endpoint.
func (c *CodeVerifier) Verifier() string { return c.verifier }

// Challenge returns the challenge sent to the authorize endpoint.
func (c *CodeVerifier) Challenge() string { return c.challenge }

// Method returns S256.
func (c *CodeVerifier) Method() ChallengeMethod { return S256 }

// CreateCodeChallenge returns the unpadded URL-safe base64 SHA-256 of
// verifier.
func CreateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func newCSRFToken() (string, error) {
	const op = "authn.newCSRFToken"
	s, err := base62.Random(csrfTokenLen)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}
