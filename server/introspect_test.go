package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleIntrospectActiveToken(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	access, jti, _, err := h.tokens.IssueAccessToken(context.Background(), reg.ClientID, "gh:1", "octocat", "octocat@example.test", "openid")
	require.NoError(t, err)

	form := url.Values{"token": {access}}
	req := httptest.NewRequest(http.MethodPost, "/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID, reg.ClientSecret)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp introspectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Active)
	require.Equal(t, reg.ClientID, resp.ClientID)
	require.Equal(t, "octocat", resp.Username)
	require.Equal(t, jti, resp.JTI)
}

func TestHandleIntrospectInactiveTokenReturnsActiveFalseOnly(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	form := url.Values{"token": {"not-a-real-token"}}
	req := httptest.NewRequest(http.MethodPost, "/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID, reg.ClientSecret)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, false, resp["active"])
	require.Len(t, resp, 1)
}

func TestHandleIntrospectRevokedTokenReturnsInactive(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	access, jti, _, err := h.tokens.IssueAccessToken(context.Background(), reg.ClientID, "gh:1", "octocat", "octocat@example.test", "")
	require.NoError(t, err)
	require.NoError(t, h.tokens.RevokeAccessToken(context.Background(), jti, "gh:1"))

	form := url.Values{"token": {access}}
	req := httptest.NewRequest(http.MethodPost, "/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID, reg.ClientSecret)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	var resp introspectionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.False(t, resp.Active)
}

func TestHandleIntrospectRequiresClientAuthentication(t *testing.T) {
	h := newTestHarness(t)

	form := url.Values{"token": {"whatever"}, "client_id": {"no-such-client"}}
	req := httptest.NewRequest(http.MethodPost, "/introspect", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
