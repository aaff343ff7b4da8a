package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// handleAuthorize implements GET /authorize, grounded in the teacher's
// handleAuthorization but re-expressed against internal/clients and
// internal/tokens instead of storage.Storage. Per spec §4.6's edge-case
// policy: an unknown client_id or unregistered redirect_uri renders the
// human-facing /error page (the URI cannot be trusted for a redirect);
// once client_id and redirect_uri are both valid, every other failure
// redirects back to the client with error/state.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")

	reg, err := s.clients.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, clients.ErrClientNotFound) {
			s.errors.page(w, http.StatusBadRequest, "Unknown client", "This application is not registered with this server.")
			return
		}
		s.logger.Error("lookup client for authorize", "error", err)
		s.errors.page(w, http.StatusInternalServerError, "Something went wrong", "Please try again shortly.")
		return
	}

	redirectURI := q.Get("redirect_uri")
	if !redirectURIRegistered(reg.RedirectURIs, redirectURI) {
		s.errors.page(w, http.StatusBadRequest, "Invalid redirect_uri", "The redirect_uri does not match any URI registered for this client.")
		return
	}

	state := q.Get("state")

	if q.Get("response_type") != "code" {
		s.errors.redirect(w, r, redirectURI, oautherrors.UnsupportedGrantType, "only response_type=code is supported", state)
		return
	}

	method := q.Get("code_challenge_method")
	if method == "" {
		method = tokens.CodeChallengeMethodS256
	}
	if err := tokens.ValidateChallengeMethod(method); err != nil {
		s.errors.redirect(w, r, redirectURI, oautherrors.InvalidRequest, "code_challenge_method must be S256", state)
		return
	}
	challenge := q.Get("code_challenge")
	if challenge == "" {
		s.errors.redirect(w, r, redirectURI, oautherrors.InvalidRequest, "code_challenge is required", state)
		return
	}

	scopes := tokens.SplitScope(q.Get("scope"))

	req, err := s.tokens.BeginAuthRequest(r.Context(), clientID, redirectURI, scopes, challenge, method, state)
	if err != nil {
		s.logger.Error("begin auth request", "error", err)
		s.errors.redirect(w, r, redirectURI, oautherrors.ServerError, "", state)
		return
	}

	http.Redirect(w, r, s.idp.AuthCodeURL(req.IdPState), http.StatusFound)
}

// redirectURIRegistered reports whether candidate byte-exact matches one of
// the client's registered URIs after normalizing only the scheme/host case
// and a trailing slash, per spec §4.6.
func redirectURIRegistered(registered []string, candidate string) bool {
	if candidate == "" {
		return false
	}
	norm := normalizeRedirectURI(candidate)
	for _, r := range registered {
		if normalizeRedirectURI(r) == norm {
			return true
		}
	}
	return false
}

func normalizeRedirectURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
