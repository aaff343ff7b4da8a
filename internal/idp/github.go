package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	apiURL = "https://api.github.com"
	// GitHub requires this scope to access /user and /user/emails.
	scopeEmail = "user:email"
	// read:org is requested only when GitHubConfig.RequestOrgScope is set;
	// the Identity resolved here carries no org membership.
	scopeOrgs = "read:org"
)

// GitHubConfig configures the GitHub connector.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// RequestOrgScope asks for read:org in addition to user:email.
	RequestOrgScope bool
}

// GitHubClient implements Client against github.com's OAuth2 endpoints.
type GitHubClient struct {
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	apiBaseURL   string
	log          logrus.FieldLogger
}

// NewGitHubClient constructs a GitHubClient. httpClient may be nil to use
// http.DefaultClient. log may be nil, in which case a logrus.StandardLogger
// is used; this boundary is logged with logrus rather than the core
// server's slog, matching the teacher's connector.Connector contract, which
// predates slog and still takes a logrus-shaped Logger for every connector.
func NewGitHubClient(cfg GitHubConfig, httpClient *http.Client, log logrus.FieldLogger) *GitHubClient {
	scopes := []string{scopeEmail}
	if cfg.RequestOrgScope {
		scopes = append(scopes, scopeOrgs)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GitHubClient{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     github.Endpoint,
			Scopes:       scopes,
		},
		httpClient: httpClient,
		apiBaseURL: apiURL,
		log:        log,
	}
}

// AuthCodeURL implements Client.
func (c *GitHubClient) AuthCodeURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state)
}

// HandleCallback implements Client.
func (c *GitHubClient) HandleCallback(ctx context.Context, r *http.Request) (Identity, error) {
	q := r.URL.Query()
	if errType := q.Get("error"); errType != "" {
		desc := q.Get("error_description")
		if desc == "" {
			return Identity{}, errors.Errorf("github: authorization denied: %s", errType)
		}
		return Identity{}, errors.Errorf("github: authorization denied: %s: %s", errType, desc)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth2Config.Exchange(ctx, q.Get("code"))
	if err != nil {
		c.log.WithError(err).Warn("github: code-for-token exchange failed")
		return Identity{}, errors.Wrap(err, "github: exchange code for token")
	}

	client := c.oauth2Config.Client(ctx, token)
	u, err := c.fetchUser(ctx, client)
	if err != nil {
		c.log.WithError(err).Warn("github: fetch user failed")
		return Identity{}, errors.Wrap(err, "github: fetch user")
	}
	if u.Email == "" {
		email, err := c.fetchPrimaryEmail(ctx, client)
		if err != nil {
			c.log.WithError(err).Warn("github: fetch user email failed")
			return Identity{}, errors.Wrap(err, "github: fetch user email")
		}
		u.Email = email
	}

	c.log.WithFields(logrus.Fields{"github_login": u.Login, "github_id": u.ID}).Debug("github: identity resolved")
	return Identity{
		Subject:  "gh:" + strconv.Itoa(u.ID),
		Username: u.Login,
		Email:    u.Email,
	}, nil
}

type githubUser struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type githubUserEmail struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}

func (c *GitHubClient) fetchUser(ctx context.Context, client *http.Client) (githubUser, error) {
	var u githubUser
	if err := getJSON(ctx, client, c.apiBaseURL+"/user", &u); err != nil {
		return u, err
	}
	return u, nil
}

func (c *GitHubClient) fetchPrimaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []githubUserEmail
	if err := getJSON(ctx, client, c.apiBaseURL+"/user/emails", &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github: unexpected status %s for %s", resp.Status, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
