package idp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newTestGitHubClient constructs a GitHubClient with its oauth2 endpoint
// and API base URL pointed at test servers, the way the teacher's
// github_test.go builds a githubConnector struct literal directly instead
// of going through Config.Open.
func newTestGitHubClient(tokenServerURL, apiServerURL string, httpClient *http.Client) *GitHubClient {
	return &GitHubClient{
		oauth2Config: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "https://auth.example.test/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  tokenServerURL + "/authorize",
				TokenURL: tokenServerURL + "/token",
			},
			Scopes: []string{scopeEmail},
		},
		httpClient: httpClient,
		apiBaseURL: apiServerURL,
		log:        logrus.StandardLogger(),
	}
}

func TestHandleCallbackResolvesIdentity(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":    1234,
				"login": "octocat",
				"email": "octo@example.com",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer apiServer.Close()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "upstream-token",
			"token_type":   "bearer",
		})
	}))
	defer tokenServer.Close()

	c := newTestGitHubClient(tokenServer.URL, apiServer.URL, apiServer.Client())

	req := httptest.NewRequest(http.MethodGet, "https://auth.example.test/callback?code=abc123", nil)
	identity, err := c.HandleCallback(req.Context(), req)
	require.NoError(t, err)
	require.Equal(t, "gh:1234", identity.Subject)
	require.Equal(t, "octocat", identity.Username)
	require.Equal(t, "octo@example.com", identity.Email)
}

func TestHandleCallbackFallsBackToPrimaryEmail(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":    5,
				"login": "privateemailuser",
				"email": "",
			})
		case "/user/emails":
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{
				{"email": "secondary@example.com", "primary": false, "verified": true},
				{"email": "primary@example.com", "primary": true, "verified": true},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer apiServer.Close()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "upstream-token", "token_type": "bearer"})
	}))
	defer tokenServer.Close()

	c := newTestGitHubClient(tokenServer.URL, apiServer.URL, apiServer.Client())
	req := httptest.NewRequest(http.MethodGet, "https://auth.example.test/callback?code=abc123", nil)
	identity, err := c.HandleCallback(req.Context(), req)
	require.NoError(t, err)
	require.Equal(t, "primary@example.com", identity.Email)
}

func TestHandleCallbackPropagatesUpstreamError(t *testing.T) {
	c := NewGitHubClient(GitHubConfig{ClientID: "x", ClientSecret: "y"}, http.DefaultClient, nil)
	req := httptest.NewRequest(http.MethodGet, "https://auth.example.test/callback?error=access_denied&error_description=user+declined", nil)
	_, err := c.HandleCallback(req.Context(), req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "access_denied")
}

func TestAuthCodeURLIncludesState(t *testing.T) {
	c := NewGitHubClient(GitHubConfig{ClientID: "client-id", ClientSecret: "secret", RedirectURI: "https://auth.example.test/callback"}, nil, nil)
	loginURL := c.AuthCodeURL("the-state-value")
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	require.Equal(t, "the-state-value", u.Query().Get("state"))
}

func TestNewGitHubClientRequestsOrgScopeWhenConfigured(t *testing.T) {
	c := NewGitHubClient(GitHubConfig{ClientID: "x", ClientSecret: "y", RequestOrgScope: true}, nil, nil)
	require.Contains(t, c.oauth2Config.Scopes, scopeOrgs)
}
