package server

import (
	"errors"
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/idp"
	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
	"github.com/atrawog/mcp-oauth-gateway/internal/policy"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// handleCallback implements GET /callback, where the external IdP returns
// control after the user authenticates. Grounded in the teacher's
// handleConnectorCallback, collapsed to the single GitHub connector this
// spec requires and re-expressed against internal/tokens' atomic
// TakeAuthRequestByIdPState instead of storage.Storage's AuthRequest
// lookup-then-delete pair.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	idpState := r.URL.Query().Get("state")

	authReq, err := s.tokens.TakeAuthRequestByIdPState(r.Context(), idpState)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errors.page(w, http.StatusBadRequest, "Link expired", "Your sign-in link expired; please try again.")
			return
		}
		s.logger.Error("take auth request state", "error", err)
		s.errors.page(w, http.StatusInternalServerError, "Something went wrong", "Please try again shortly.")
		return
	}

	identity, err := s.resolveIdentityWithRetry(r)
	if err != nil {
		s.logger.Error("idp callback exchange failed", "error", err)
		s.errors.redirect(w, r, authReq.RedirectURI, oautherrors.ServerError, "", authReq.ClientState)
		return
	}

	if err := s.policy.Allow(r.Context(), identity); err != nil {
		var denied *policy.ErrDenied
		if errors.As(err, &denied) {
			s.errors.redirect(w, r, authReq.RedirectURI, oautherrors.AccessDenied, denied.Reason, authReq.ClientState)
			return
		}
		s.logger.Error("access policy check failed", "error", err)
		s.errors.redirect(w, r, authReq.RedirectURI, oautherrors.ServerError, "", authReq.ClientState)
		return
	}

	code, err := s.tokens.IssueAuthorizationCode(r.Context(), authReq, identity.Subject, identity.Username, identity.Email)
	if err != nil {
		s.logger.Error("issue authorization code", "error", err)
		s.errors.redirect(w, r, authReq.RedirectURI, oautherrors.ServerError, "", authReq.ClientState)
		return
	}

	redirectTo := authReq.RedirectURI
	u := appendQuery(redirectTo, map[string]string{"code": code, "state": authReq.ClientState})
	http.Redirect(w, r, u, http.StatusFound)
}

// resolveIdentityWithRetry allows a single internal retry for the upstream
// exchange, per spec §4.6's failure semantics ("IdP network errors are
// retried internally at most once").
func (s *Server) resolveIdentityWithRetry(r *http.Request) (idp.Identity, error) {
	id, err := s.idp.HandleCallback(r.Context(), r)
	if err == nil {
		return id, nil
	}
	id, err2 := s.idp.HandleCallback(r.Context(), r)
	if err2 == nil {
		return id, nil
	}
	return idp.Identity{}, err
}
