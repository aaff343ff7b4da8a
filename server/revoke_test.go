package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleRevokeAccessTokenMakesItFailVerify(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	access, _, _, err := h.tokens.IssueAccessToken(context.Background(), reg.ClientID, "gh:1", "octocat", "octocat@example.test", "")
	require.NoError(t, err)

	verifyReq := httptest.NewRequest(http.MethodGet, "/verify", nil)
	verifyReq.Header.Set("Authorization", "Bearer "+access)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, verifyReq)
	require.Equal(t, http.StatusOK, rr.Code)

	form := url.Values{"token": {access}}
	revokeReq := httptest.NewRequest(http.MethodPost, "/revoke", strings.NewReader(form.Encode()))
	revokeReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	revokeReq.SetBasicAuth(reg.ClientID, reg.ClientSecret)
	rr = httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, revokeReq)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, verifyReq.Clone(context.Background()))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleRevokeUnknownTokenStillReturns200(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	form := url.Values{"token": {"not-a-real-token"}}
	req := httptest.NewRequest(http.MethodPost, "/revoke", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(reg.ClientID, reg.ClientSecret)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleRevokeRequiresClientAuthentication(t *testing.T) {
	h := newTestHarness(t)

	form := url.Values{"token": {"whatever"}, "client_id": {"no-such-client"}}
	req := httptest.NewRequest(http.MethodPost, "/revoke", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
