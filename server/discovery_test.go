package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleDiscoveryDocumentShape(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "public, max-age=300", rr.Header().Get("Cache-Control"))

	var doc discoveryDocument
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	require.Equal(t, "https://auth.example.test", doc.Issuer)
	require.Equal(t, "https://auth.example.test/authorize", doc.AuthorizationEndpoint)
	require.Equal(t, "https://auth.example.test/token", doc.TokenEndpoint)
	require.Equal(t, "https://auth.example.test/register", doc.RegistrationEndpoint)
	require.Equal(t, "https://auth.example.test/revoke", doc.RevocationEndpoint)
	require.Equal(t, "https://auth.example.test/introspect", doc.IntrospectionEndpoint)
	require.Equal(t, "https://auth.example.test/jwks", doc.JWKSURI)
	require.Contains(t, doc.CodeChallengeMethodsSupported, "S256")
	require.NotContains(t, doc.CodeChallengeMethodsSupported, "plain")
}

func TestHandleJWKSReturnsKeySet(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/jwks", nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Contains(t, body, "keys")
}
