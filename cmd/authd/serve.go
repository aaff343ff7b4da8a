package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/idp"
	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
	"github.com/atrawog/mcp-oauth-gateway/internal/policy"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
	"github.com/atrawog/mcp-oauth-gateway/internal/store/memkv"
	"github.com/atrawog/mcp-oauth-gateway/internal/store/rediskv"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
	"github.com/atrawog/mcp-oauth-gateway/server"
)

func commandServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server, reading configuration from the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return runServe()
		},
	}
}

// runServe wires every component in SPEC_FULL.md's component design and
// serves HTTP until interrupted, grounded in the teacher's
// cmd/dex/serve.go runServe: an oklog/run.Group supervises the HTTP
// listener alongside the signal handler, shutting it down gracefully on
// SIGINT/SIGTERM.
func runServe() error {
	cfg, err := server.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	kv, err := newKV(cfg)
	if err != nil {
		return fmt.Errorf("connect storage backend: %w", err)
	}
	defer kv.Close()
	st := store.New(kv)

	keys, err := keymanager.New(st, logger, keymanager.Config{
		Algorithm:         cfg.SigningAlgorithm,
		HS256Secret:       cfg.HS256Secret,
		RotationFrequency: cfg.KeyRotationFrequency,
	})
	if err != nil {
		return fmt.Errorf("construct key manager: %w", err)
	}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := keys.Start(startCtx); err != nil {
		return fmt.Errorf("start key manager: %w", err)
	}

	registry := clients.NewRegistry(st, cfg.ClientRegistrationLifetime)
	tokenSvc := tokens.NewService(st, keys, cfg.IssuerURL, cfg.AccessTokenLifetime, cfg.RefreshTokenRotationEnabled)

	githubClient := idp.NewGitHubClient(idp.GitHubConfig{
		ClientID:        cfg.GitHubClientID,
		ClientSecret:    cfg.GitHubClientSecret,
		RedirectURI:     cfg.IssuerURL + "/callback",
		RequestOrgScope: cfg.GitHubRequestOrgScope,
	}, &http.Client{Timeout: cfg.IdPRequestTimeout}, logrus.StandardLogger())

	decision := newAccessPolicy(cfg.AllowedLogins)

	reg := prometheus.NewRegistry()
	srv, err := server.New(cfg, logger, st, keys, tokenSvc, registry, githubClient, decision, reg)
	if err != nil {
		return fmt.Errorf("construct server: %w", err)
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	var gr run.Group

	gr.Add(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		return httpSrv.ListenAndServe()
	}, func(err error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", "error", err)
		}
	})

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	if err := gr.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			return fmt.Errorf("run groups: %w", err)
		}
		logger.Info("shutting down", "reason", err.Error())
	}
	return nil
}

func newKV(cfg server.Config) (store.KV, error) {
	switch cfg.StoreBackend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return rediskv.New(ctx, rediskv.Config{Addr: cfg.RedisURL, KeyPrefix: "authd:"})
	default:
		return memkv.New(), nil
	}
}

// newAccessPolicy builds the access-control decision, grounded in spec
// §4.9: a bare "*" allows any authenticated GitHub identity, anything else
// is taken as an exact-or-wildcard login allow-list.
func newAccessPolicy(allowedLogins []string) policy.Decision {
	if len(allowedLogins) == 1 && allowedLogins[0] == "*" {
		return policy.AllowAll{}
	}
	return policy.NewUsernameAllowList(allowedLogins)
}
