package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleAuthorizeRedirectsToIdPWithValidRequest(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	q := url.Values{
		"client_id":             {reg.ClientID},
		"redirect_uri":          {"https://client.example.test/callback"},
		"response_type":         {"code"},
		"state":                 {"client-state-xyz"},
		"code_challenge":        {"abc123"},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Contains(t, loc.String(), "github.example.test")
	require.NotEmpty(t, loc.Query().Get("state"))
}

func TestHandleAuthorizeRejectsUnknownClient(t *testing.T) {
	h := newTestHarness(t)

	q := url.Values{
		"client_id":     {"no-such-client"},
		"redirect_uri":  {"https://client.example.test/callback"},
		"response_type": {"code"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "not registered")
}

func TestHandleAuthorizeRejectsUnregisteredRedirectURI(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	q := url.Values{
		"client_id":     {reg.ClientID},
		"redirect_uri":  {"https://attacker.example.test/callback"},
		"response_type": {"code"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleAuthorizeRejectsMissingCodeChallenge(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	q := url.Values{
		"client_id":     {reg.ClientID},
		"redirect_uri":  {"https://client.example.test/callback"},
		"response_type": {"code"},
		"state":         {"xyz"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_request", loc.Query().Get("error"))
	require.Equal(t, "xyz", loc.Query().Get("state"))
}

func TestHandleAuthorizeRejectsPlainChallengeMethod(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	q := url.Values{
		"client_id":             {reg.ClientID},
		"redirect_uri":          {"https://client.example.test/callback"},
		"response_type":         {"code"},
		"code_challenge":        {"abc123"},
		"code_challenge_method": {"plain"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_request", loc.Query().Get("error"))
}
