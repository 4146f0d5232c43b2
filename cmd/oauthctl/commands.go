// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/byuweb/browser-oauth/authn"
	"github.com/byuweb/browser-oauth/internal/desktop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	errNotLoggedIn   = errors.New("not logged in, run \"oauthctl login\"")
	errNeedsLogin    = errors.New("the session cannot be renewed without signing in again, run \"oauthctl login\"")
	errLoginRejected = errors.New("login was not completed")
)

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "oauthctl",
		Short:        "Sign in to BYU from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", defaultEnvFile, "dotenv file with BYU_OAUTH_* settings")
	flags.StringVar(&a.rulesFile, "rules", "", "YAML file of per-callback configs")
	flags.StringVar(&a.clientID, "client-id", "", "OAuth client id (env BYU_OAUTH_CLIENT_ID)")
	flags.StringVar(&a.baseURL, "base-url", authn.DefaultBaseURL, "identity provider base URL (env BYU_OAUTH_BASE_URL)")
	flags.StringVar(&a.callbackURL, "callback-url", defaultCallbackURL, "local redirect URL registered for the client")
	flags.StringVar(&a.providerCA, "provider-ca", "", "PEM file of a CA to trust for the identity provider")
	flags.BoolVar(&a.autoRefresh, "auto-refresh", false, "refresh instead of expiring (env BYU_OAUTH_AUTO_REFRESH_ON_TIMEOUT)")
	flags.StringVar(&a.dbPath, "db", "", "session database path (default in the user config directory)")
	flags.StringVar(&a.redisURL, "redis-url", "", "keep state in redis instead of the session database")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: trace, debug, info, warn or error")
	flags.BoolVar(&a.showToken, "show-token", false, "print the access token instead of redacting it")

	root.AddCommand(
		a.loginCmd(),
		a.statusCmd(),
		a.refreshCmd(),
		a.logoutCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) loginCmd() *cobra.Command {
	var (
		force   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the system browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.login(cmd, force, timeout)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "sign in again even when a session exists")
	cmd.Flags().DurationVar(&timeout, "timeout", authn.PendingStateLifetime, "how long to wait for the browser")
	return cmd
}

// login starts the provider on the callback page, sends the browser to the
// identity provider, then restarts the provider on the location the
// browser was redirected to, exactly as a page reload would.
func (a *app) login(cmd *cobra.Command, force bool, timeout time.Duration) error {
	ctx := cmd.Context()
	c, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	srv, err := desktop.ListenCallback(c.CallbackURL, desktop.WithLogger(a.logger.Named("callback")))
	if err != nil {
		return err
	}
	defer srv.Close()
	c.CallbackURL = srv.URL()

	sess, err := a.openSession(cmd, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.close(ctx); err != nil {
			a.logger.Warn("unable to close session", "error", err)
		}
	}()

	s, err := sess.provider.Startup(ctx)
	if err != nil {
		return err
	}
	if s.State == authn.StateAuthenticated && !force {
		fmt.Fprintln(cmd.ErrOrStderr(), "Already logged in. Use --force to sign in again.")
		return a.printStore(cmd.OutOrStdout(), s)
	}
	if err := sess.provider.StartLogin(ctx, authn.DisplayWindow); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	loc, err := srv.Await(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for the browser: %w", err)
	}
	if e := loc.Query().Get("error"); e != "" {
		return fmt.Errorf("%w: %s %s", errLoginRejected, e, loc.Query().Get("error_description"))
	}

	if err := sess.provider.Shutdown(ctx); err != nil {
		return err
	}
	sess.window.SetLocation(loc)
	if s, err = sess.provider.Startup(ctx); err != nil {
		return err
	}
	if err := a.printStore(cmd.OutOrStdout(), s); err != nil {
		return err
	}
	if s.State == authn.StateError {
		return s.Error
	}
	return nil
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(sess *session, s authn.Store) error {
				return a.printStore(cmd.OutOrStdout(), s)
			})
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the session with its refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(sess *session, s authn.Store) error {
				if s.State != authn.StateAuthenticated {
					return errNotLoggedIn
				}
				if err := sess.provider.StartRefresh(cmd.Context(), authn.DisplayIframe); err != nil {
					return err
				}
				s = sess.provider.CurrentInfo()
				if s.State != authn.StateAuthenticated {
					return errNeedsLogin
				}
				return a.printStore(cmd.OutOrStdout(), s)
			})
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and sign out in the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(sess *session, s authn.Store) error {
				if err := sess.provider.StartLogout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Logged out.")
				return nil
			})
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Hold the session open and print every state change",
		Long: `Hold the session open and print every state change until interrupted.
With --auto-refresh the session is renewed before the token expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func (a *app) watch(cmd *cobra.Command, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	sess, err := a.openSession(cmd, c, authn.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.close(context.Background()); err != nil {
			a.logger.Warn("unable to close session", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	unsubscribe := sess.provider.Bus().Subscribe(authn.EventStateChanged, func(_ context.Context, payload interface{}) {
		sc, ok := payload.(authn.StateChange)
		if !ok {
			return
		}
		fmt.Fprintf(out, "%s\t%s\n", time.Now().Format(time.RFC3339), sc.Store.State)
		if sc.Store.State == authn.StateAutoRefreshFailed {
			fmt.Fprintln(cmd.ErrOrStderr(), errNeedsLogin)
		}
	})
	defer unsubscribe()

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if _, err := sess.provider.Startup(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

// withSession starts a provider on the callback page, runs fn with the
// settled store and shuts the provider down.
func (a *app) withSession(cmd *cobra.Command, fn func(*session, authn.Store) error) (retErr error) {
	ctx := cmd.Context()
	c, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	sess, err := a.openSession(cmd, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.close(ctx); err != nil && retErr == nil {
			retErr = err
		}
	}()
	s, err := sess.provider.Startup(ctx)
	if err != nil {
		return err
	}
	return fn(sess, s)
}
