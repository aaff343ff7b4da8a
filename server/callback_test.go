package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrawog/mcp-oauth-gateway/internal/policy"
)

// beginAuthRequest drives GET /authorize far enough to capture the idp_state
// the server embedded in the redirect to the fake IdP, without needing a
// real GitHub round trip.
func beginAuthRequest(t *testing.T, h *testHarness, clientID, redirectURI, clientState string) string {
	t.Helper()
	q := url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"response_type":         {"code"},
		"state":                 {clientState},
		"code_challenge":        {"challenge-value"},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	idpState := loc.Query().Get("state")
	require.NotEmpty(t, idpState)
	return idpState
}

func TestHandleCallbackRedirectsWithCodeAndState(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")
	idpState := beginAuthRequest(t, h, reg.ClientID, "https://client.example.test/callback", "client-state-1")

	req := httptest.NewRequest(http.MethodGet, "/callback?state="+idpState, nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "https", loc.Scheme)
	require.Equal(t, "client.example.test", loc.Host)
	require.Equal(t, "client-state-1", loc.Query().Get("state"))
	require.NotEmpty(t, loc.Query().Get("code"))
}

func TestHandleCallbackRejectsUnknownIdPState(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/callback?state=does-not-exist", nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleCallbackRedirectsWithServerErrorOnIdPFailure(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")
	idpState := beginAuthRequest(t, h, reg.ClientID, "https://client.example.test/callback", "client-state-2")

	h.idp.err = errors.New("upstream exchange failed")

	req := httptest.NewRequest(http.MethodGet, "/callback?state="+idpState, nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "server_error", loc.Query().Get("error"))
	require.Equal(t, "client-state-2", loc.Query().Get("state"))
}

func TestHandleCallbackRedirectsWithAccessDeniedOnPolicyRejection(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")
	idpState := beginAuthRequest(t, h, reg.ClientID, "https://client.example.test/callback", "client-state-3")

	h.srv.policy = policy.NewUsernameAllowList([]string{"someone-else"})

	req := httptest.NewRequest(http.MethodGet, "/callback?state="+idpState, nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))
	require.Equal(t, "client-state-3", loc.Query().Get("state"))
}
