// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIdentityProvider is a local identity provider serving the authorize,
// token and userinfo endpoints, which makes writing tests much easier. It
// issues codes only for authorize URLs that carry an S256 PKCE challenge and
// checks the verifier when the code is redeemed.
type TestIdentityProvider struct {
	httpServer *httptest.Server
	caCert     string

	mu             sync.Mutex
	clientID       string
	expiresIn      int
	omitRefresh    bool
	userInfo       map[string]interface{}
	userInfoStatus int
	userInfoBody   string
	tokenStatus    int
	refreshStatus  int

	seq           int
	codes         map[string]issuedCode
	accessTokens  map[string]bool
	refreshTokens map[string]bool
	refreshCount  int

	t *testing.T
}

type issuedCode struct {
	redirectURI string
	challenge   string
}

// StartTestIdentityProvider creates a disposable TestIdentityProvider. Stop
// must be called when the test is done with it.
func StartTestIdentityProvider(t *testing.T) *TestIdentityProvider {
	t.Helper()
	p := &TestIdentityProvider{
		clientID:  "test-client-id",
		expiresIn: 3600,
		userInfo: map[string]interface{}{
			ClaimsPrefixResourceOwner + "person_id":        "123456789",
			ClaimsPrefixResourceOwner + "byu_id":           "987654321",
			ClaimsPrefixResourceOwner + "net_id":           "cosmo",
			ClaimsPrefixResourceOwner + "sort_name":        "Cougar, Cosmo",
			ClaimsPrefixResourceOwner + "surname_position": "L",
			ClaimsPrefixClient + "byu_id":                  "111111111",
			ClaimsPrefixWSO2 + "client_id":                 "test-client-id",
			ClaimsPrefixWSO2 + "applicationname":           "test-app",
			"given_name":                                   "Cosmo",
			"family_name":                                  "Cougar",
			"sub":                                          "cosmo",
		},
		codes:         map[string]issuedCode{},
		accessTokens:  map[string]bool{},
		refreshTokens: map[string]bool{},
		t:             t,
	}
	p.httpServer = httptest.NewTLSServer(p)
	p.caCert = string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: p.httpServer.Certificate().Raw,
	}))
	return p
}

// Stop stops the running TestIdentityProvider.
func (p *TestIdentityProvider) Stop() {
	p.httpServer.Close()
}

// Addr is the base URL of the identity provider.
func (p *TestIdentityProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the HTTPS server.
func (p *TestIdentityProvider) CACert() string { return p.caCert }

// HTTPClient returns a client trusting the server's certificate.
func (p *TestIdentityProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// ClientID is the client id the provider accepts.
func (p *TestIdentityProvider) ClientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID
}

// SetClientID sets the client id the provider accepts.
func (p *TestIdentityProvider) SetClientID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = id
}

// SetExpiresIn sets the expires_in, in seconds, of issued tokens.
func (p *TestIdentityProvider) SetExpiresIn(seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

// OmitRefreshTokens stops refresh tokens being issued.
func (p *TestIdentityProvider) OmitRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitRefresh = true
}

// SetUserInfo replaces the claims returned by the userinfo endpoint.
func (p *TestIdentityProvider) SetUserInfo(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfo = claims
}

// SetUserInfoReply makes the userinfo endpoint reply with status and body.
// A zero status restores normal replies.
func (p *TestIdentityProvider) SetUserInfoReply(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoStatus, p.userInfoBody = status, body
}

// SetTokenStatus makes authorization code grants fail with status. A zero
// status restores normal replies.
func (p *TestIdentityProvider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// SetRefreshStatus makes refresh token grants fail with status. A zero
// status restores normal replies.
func (p *TestIdentityProvider) SetRefreshStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshStatus = status
}

// RefreshCount is the number of successful refresh token grants.
func (p *TestIdentityProvider) RefreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCount
}

// Authorize plays the user's browser at the authorize endpoint: it validates
// authURL and returns the callback location the provider redirects to.
func (p *TestIdentityProvider) Authorize(authURL string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case q.Get("response_type") != "code":
		return "", fmt.Errorf("unsupported response_type %q", q.Get("response_type"))
	case q.Get("client_id") != p.clientID:
		return "", fmt.Errorf("unknown client_id %q", q.Get("client_id"))
	case q.Get("scope") != "openid":
		return "", fmt.Errorf("unexpected scope %q", q.Get("scope"))
	case q.Get("code_challenge_method") != string(S256) || q.Get("code_challenge") == "":
		return "", fmt.Errorf("missing S256 code challenge")
	case q.Get("state") == "":
		return "", fmt.Errorf("missing state")
	}
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Host == "" {
		return "", fmt.Errorf("invalid redirect_uri %q", q.Get("redirect_uri"))
	}
	p.seq++
	code := fmt.Sprintf("code-%d", p.seq)
	p.codes[code] = issuedCode{redirectURI: q.Get("redirect_uri"), challenge: q.Get("code_challenge")}

	rq := redirect.Query()
	rq.Set("code", code)
	rq.Set("state", q.Get("state"))
	redirect.RawQuery = rq.Encode()
	return redirect.String(), nil
}

// ServeHTTP implements the authorize, token and userinfo endpoints.
func (p *TestIdentityProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/authorize":
		callback, err := p.Authorize(req.URL.String())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Redirect(w, req, callback, http.StatusFound)
	case "/token":
		p.serveToken(w, req)
	case "/openid-userinfo/v1/userinfo":
		p.serveUserInfo(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (p *TestIdentityProvider) serveToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.PostForm.Get("client_id") != p.clientID {
		p.writeTokenError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	switch req.PostForm.Get("grant_type") {
	case "authorization_code":
		if p.tokenStatus != 0 {
			p.writeTokenError(w, p.tokenStatus, "server_error")
			return
		}
		code := req.PostForm.Get("code")
		issued, ok := p.codes[code]
		delete(p.codes, code)
		switch {
		case !ok:
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		case req.PostForm.Get("redirect_uri") != issued.redirectURI:
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		case CreateCodeChallenge(req.PostForm.Get("code_verifier")) != issued.challenge:
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	case "refresh_token":
		if p.refreshStatus != 0 {
			p.writeTokenError(w, p.refreshStatus, "invalid_grant")
			return
		}
		rt := req.PostForm.Get("refresh_token")
		if !p.refreshTokens[rt] {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		delete(p.refreshTokens, rt)
		p.refreshCount++
	default:
		p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	p.seq++
	reply := map[string]interface{}{
		"access_token": fmt.Sprintf("at-%d", p.seq),
		"token_type":   "Bearer",
		"expires_in":   p.expiresIn,
		"scope":        "openid",
	}
	p.accessTokens[reply["access_token"].(string)] = true
	if !p.omitRefresh {
		rt := fmt.Sprintf("rt-%d", p.seq)
		p.refreshTokens[rt] = true
		reply["refresh_token"] = rt
	}
	p.writeJSON(w, http.StatusOK, reply)
}

func (p *TestIdentityProvider) serveUserInfo(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.userInfoStatus != 0 {
		w.WriteHeader(p.userInfoStatus)
		_, _ = w.Write([]byte(p.userInfoBody))
		return
	}
	bearer := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !p.accessTokens[bearer] {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<ams:fault><ams:code>900901</ams:code></ams:fault>"))
		return
	}
	p.writeJSON(w, http.StatusOK, p.userInfo)
}

func (p *TestIdentityProvider) writeTokenError(w http.ResponseWriter, status int, code string) {
	p.writeJSON(w, status, map[string]string{"error": code})
}

func (p *TestIdentityProvider) writeJSON(w http.ResponseWriter, status int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(p.t, json.NewEncoder(w).Encode(out))
}
