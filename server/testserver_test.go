package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/idp"
	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
	"github.com/atrawog/mcp-oauth-gateway/internal/policy"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
	"github.com/atrawog/mcp-oauth-gateway/internal/store/memkv"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// fakeIdP is a test double for idp.Client so /authorize and /callback can be
// exercised without talking to github.com, grounded in the teacher's
// connector/mock package.
type fakeIdP struct {
	identity idp.Identity
	err      error
}

func (f *fakeIdP) AuthCodeURL(state string) string {
	return "https://github.example.test/login/oauth/authorize?state=" + state
}

func (f *fakeIdP) HandleCallback(ctx context.Context, r *http.Request) (idp.Identity, error) {
	if f.err != nil {
		return idp.Identity{}, f.err
	}
	return f.identity, nil
}

// testHarness bundles a Server with direct access to its collaborators so
// tests can set up state (register a client, mint a code) without going
// through HTTP first.
type testHarness struct {
	srv     *Server
	clients *clients.Registry
	tokens  *tokens.Service
	idp     *fakeIdP
	store   *store.Store
	config  Config
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	cfg := Config{
		IssuerURL:                   "https://auth.example.test",
		SigningAlgorithm:            keymanager.HS256,
		HS256Secret:                 "test-signing-secret-not-for-production",
		AccessTokenLifetime:         time.Hour,
		RefreshTokenRotationEnabled: true,
		ClientRegistrationLifetime:  0,
		ProtocolVersion:             "2025-06-18",
		AllowedLogins:               []string{"*"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(memkv.New())

	keys, err := keymanager.New(st, logger, keymanager.Config{
		Algorithm:   keymanager.HS256,
		HS256Secret: cfg.HS256Secret,
	})
	require.NoError(t, err)
	require.NoError(t, keys.Start(context.Background()))

	registry := clients.NewRegistry(st, cfg.ClientRegistrationLifetime)
	tokenSvc := tokens.NewService(st, keys, cfg.IssuerURL, cfg.AccessTokenLifetime, cfg.RefreshTokenRotationEnabled)
	fake := &fakeIdP{identity: idp.Identity{Subject: "gh:1", Username: "octocat", Email: "octocat@example.test"}}
	decision := policy.AllowAll{}

	srv, err := New(cfg, logger, st, keys, tokenSvc, registry, fake, decision, prometheus.NewRegistry())
	require.NoError(t, err)

	return &testHarness{srv: srv, clients: registry, tokens: tokenSvc, idp: fake, store: st, config: cfg}
}

// registerClient creates a confidential client with the given redirect URI,
// returning its registration.
func (h *testHarness) registerClient(t *testing.T, redirectURI string) store.ClientRegistration {
	t.Helper()
	reg, err := h.clients.Register(context.Background(), clients.Metadata{
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethod: "client_secret_basic",
	})
	require.NoError(t, err)
	return reg
}
