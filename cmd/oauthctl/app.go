// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/byuweb/browser-oauth/internal/desktop"
	"github.com/byuweb/browser-oauth/storage"
	"github.com/byuweb/browser-oauth/storage/redis"
	"github.com/byuweb/browser-oauth/storage/sqlite"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

const (
	defaultEnvFile     = ".env"
	defaultCallbackURL = "http://127.0.0.1:8765/callback"

	redactedAccessToken = "[REDACTED: access_token]"
)

// app carries the global flags and the collaborators every command shares.
type app struct {
	envFile     string
	rulesFile   string
	clientID    string
	baseURL     string
	callbackURL string
	providerCA  string
	autoRefresh bool
	dbPath      string
	redisURL    string
	logLevel    string
	showToken   bool

	openURL  func(string) error
	registry *authn.Registry
	logger   hclog.Logger
}

func newApp() *app {
	return &app{
		openURL:  browser.OpenURL,
		registry: authn.DefaultRegistry,
		logger:   hclog.NewNullLogger(),
	}
}

// setup runs before every command: it loads the .env file and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	const op = "setup"
	if err := godotenv.Load(a.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("%s: unable to load %s: %w", op, a.envFile, err)
		}
	}
	level := hclog.LevelFromString(a.logLevel)
	if level == hclog.NoLevel {
		return fmt.Errorf("%s: unknown log level %q", op, a.logLevel)
	}
	a.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "oauthctl",
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

// loadConfig resolves the provider config: a rules file when one is given,
// then an explicit client id, then the environment. Flags override whatever
// the source set.
func (a *app) loadConfig(cmd *cobra.Command) (*authn.Config, error) {
	const op = "loadConfig"
	var (
		c   *authn.Config
		err error
	)
	switch {
	case a.rulesFile != "":
		c, err = a.resolveRules()
	case a.clientID != "":
		c, err = authn.NewConfig(a.clientID)
	default:
		c, err = authn.ConfigFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	flags := cmd.Flags()
	if flags.Changed("client-id") {
		c.ClientID = a.clientID
	}
	if flags.Changed("base-url") {
		c.BaseURL = a.baseURL
	}
	if flags.Changed("auto-refresh") {
		c.AutoRefreshOnTimeout = a.autoRefresh
	}
	if flags.Changed("callback-url") || c.CallbackURL == "" {
		c.CallbackURL = a.callbackURL
	}
	if a.providerCA != "" {
		pem, err := os.ReadFile(a.providerCA)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read provider CA: %w", op, err)
		}
		c.ProviderCA = string(pem)
	}
	return c, nil
}

func (a *app) resolveRules() (*authn.Config, error) {
	f, err := os.Open(a.rulesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rules, err := authn.LoadRules(f)
	if err != nil {
		return nil, err
	}
	loc, err := url.Parse(a.callbackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", authn.ErrInvalidParameter)
	}
	return authn.ResolveConfig(rules, loc)
}

// openStorage opens redis when --redis-url is set and the sqlite database
// otherwise. Both handshake and session state share the one backend.
func (a *app) openStorage(ctx context.Context) (*storage.Handler, error) {
	const op = "openStorage"
	var kv storage.KV
	if a.redisURL != "" {
		rs, err := redis.New(ctx, redis.Config{URL: a.redisURL})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		kv = rs
	} else {
		path := a.dbPath
		if path == "" {
			var err error
			if path, err = defaultDBPath(); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n, err := db.Purge(ctx); err != nil {
			a.logger.Warn("unable to purge expired entries", "error", err)
		} else if n > 0 {
			a.logger.Debug("purged expired entries", "count", n)
		}
		kv = db
	}
	h, err := storage.NewHandler(kv, kv)
	if err != nil {
		if c, ok := kv.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return h, nil
}

func defaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to find a config directory, use --db: %w", err)
	}
	dir = filepath.Join(dir, "byu-oauth")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("unable to create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// browse shows u to the user. A browser that fails to open is reported, not
// fatal: the user can visit the printed URL by hand.
func (a *app) browse(out io.Writer) func(string) error {
	return func(u string) error {
		fmt.Fprintf(out, "Opening your browser to:\n\n    %s\n\n", u)
		if err := a.openURL(u); err != nil {
			fmt.Fprintf(out, "Unable to open a browser (%s). Visit the URL above to continue.\n\n", err)
		}
		return nil
	}
}

// session is a provider hosted in a desktop window together with the
// storage it was opened with.
type session struct {
	provider *authn.Provider
	window   *desktop.Window
	storage  *storage.Handler
}

func (a *app) openSession(cmd *cobra.Command, c *authn.Config, opt ...authn.Option) (*session, error) {
	const op = "openSession"
	ctx := cmd.Context()
	w, err := desktop.NewWindow(c.CallbackURL,
		desktop.WithBrowser(a.browse(cmd.ErrOrStderr())),
		desktop.WithLogger(a.logger.Named("window")),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	h, err := a.openStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := append([]authn.Option{
		authn.WithStorage(h),
		authn.WithLogger(a.logger),
		authn.WithRegistry(a.registry),
	}, opt...)
	p, err := authn.NewProvider(c, w, opts...)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &session{provider: p, window: w, storage: h}, nil
}

func (s *session) close(ctx context.Context) error {
	var result *multierror.Error
	if err := s.provider.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.storage.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// storeView is the JSON form of a provider store printed by the commands.
type storeView struct {
	State authn.AuthState `json:"state"`
	User  *userView       `json:"user,omitempty"`
	Token *tokenView      `json:"token,omitempty"`
	Error string          `json:"error,omitempty"`
}

type userView struct {
	NetID       string `json:"netId"`
	BYUID       string `json:"byuId"`
	PersonID    string `json:"personId"`
	DisplayName string `json:"displayName"`
}

type tokenView struct {
	Bearer     string    `json:"bearer"`
	HasRefresh bool      `json:"hasRefreshToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
	ClientID   string    `json:"clientId,omitempty"`
	AppName    string    `json:"appName,omitempty"`
}

func newStoreView(s authn.Store, showToken bool) storeView {
	v := storeView{State: s.State}
	if s.User != nil {
		v.User = &userView{
			NetID:       s.User.NetID,
			BYUID:       s.User.BYUID,
			PersonID:    s.User.PersonID,
			DisplayName: s.User.Name.DisplayName,
		}
	}
	if s.Token != nil {
		v.Token = &tokenView{
			Bearer:     redactedAccessToken,
			HasRefresh: s.Token.Refresh != "",
			ExpiresAt:  s.Token.ExpiresAt,
			ClientID:   s.Token.Client.ID,
			AppName:    s.Token.Client.AppName,
		}
		if showToken {
			v.Token.Bearer = s.Token.Bearer
		}
	}
	if s.Error != nil {
		v.Error = s.Error.Error()
	}
	return v
}

func (a *app) printStore(out io.Writer, s authn.Store) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(newStoreView(s, a.showToken))
}
