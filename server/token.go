package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// tokenResponse is the RFC 6749 §5.1 access token response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// handleToken implements POST /token, grounded in the teacher's
// handleToken/handleAuthCode/handleRefreshToken trio but collapsed around
// internal/tokens.Service instead of storage.Storage, and tightened to
// reject PKCE "plain" per spec §4.3's hardened invariant.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	switch r.FormValue("grant_type") {
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		s.handleRefreshTokenGrant(w, r)
	default:
		s.errors.writeJSON(w, oautherrors.UnsupportedGrantType, "grant_type must be authorization_code or refresh_token", http.StatusBadRequest)
	}
}

func (s *Server) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Every redemption attempt, successful or not, consumes the code: this
	// is the exactly-once property P1 depends on, so TakeOnce happens
	// before any validation rather than after.
	code, err := s.tokens.RedeemAuthorizationCode(ctx, r.FormValue("code"))
	if err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidGrant, "authorization code is invalid, expired, or already used", http.StatusBadRequest)
		return
	}

	presentedClientID, secret, viaBasic := presentedClientCredentials(r)
	if presentedClientID == "" {
		presentedClientID = code.ClientID
	}
	if presentedClientID != code.ClientID || r.FormValue("redirect_uri") != code.RedirectURI {
		s.errors.writeJSON(w, oautherrors.InvalidGrant, "client_id or redirect_uri does not match the authorization request", http.StatusBadRequest)
		return
	}

	if err := tokens.VerifyPKCE(code.CodeChallenge, r.FormValue("code_verifier")); err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidGrant, "code_verifier does not match code_challenge", http.StatusBadRequest)
		return
	}

	reg, err := s.clients.Get(ctx, code.ClientID)
	if err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidGrant, "client no longer registered", http.StatusBadRequest)
		return
	}
	if err := authenticateClient(reg, presentedClientID, secret, viaBasic); err != nil {
		s.writeInvalidClient(w)
		return
	}

	scope := tokens.NormalizeScope(code.Scopes)
	access, _, expiry, err := s.tokens.IssueAccessToken(ctx, code.ClientID, code.Subject, code.Username, code.Email, scope)
	if err != nil {
		s.logger.Error("issue access token", "error", err)
		s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
		return
	}

	resp := tokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiry).Seconds()),
		Scope:       scope,
	}
	if supportsRefreshGrant(reg.GrantTypes) {
		refresh, err := s.tokens.IssueRefreshToken(ctx, code.ClientID, code.Subject, code.Username, code.Email, scope)
		if err != nil {
			s.logger.Error("issue refresh token", "error", err)
			s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
			return
		}
		resp.RefreshToken = refresh
	}
	writeTokenResponse(w, resp)
}

func (s *Server) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	presentedClientID, secret, viaBasic := presentedClientCredentials(r)

	rt, err := s.tokens.RedeemRefreshToken(ctx, r.FormValue("refresh_token"), presentedClientID)
	if err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidGrant, "refresh token is invalid, expired, or does not belong to this client", http.StatusBadRequest)
		return
	}

	reg, err := s.clients.Get(ctx, rt.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrClientNotFound) {
			s.errors.writeJSON(w, oautherrors.InvalidGrant, "client no longer registered", http.StatusBadRequest)
			return
		}
		s.logger.Error("lookup client for refresh", "error", err)
		s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
		return
	}
	if err := authenticateClient(reg, presentedClientID, secret, viaBasic); err != nil {
		s.writeInvalidClient(w)
		return
	}

	access, _, expiry, err := s.tokens.IssueAccessToken(ctx, rt.ClientID, rt.Subject, rt.Username, rt.Email, rt.Scope)
	if err != nil {
		s.logger.Error("issue access token from refresh", "error", err)
		s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
		return
	}

	resp := tokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiry).Seconds()),
		Scope:        rt.Scope,
		RefreshToken: rt.Token,
	}
	if s.tokens.RotatesRefreshTokens() {
		newToken, err := s.tokens.RotateRefreshToken(ctx, rt)
		if err != nil {
			s.logger.Error("rotate refresh token", "error", err)
			s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
			return
		}
		resp.RefreshToken = newToken
	}
	writeTokenResponse(w, resp)
}

func supportsRefreshGrant(grantTypes []string) bool {
	for _, gt := range grantTypes {
		if gt == "refresh_token" {
			return true
		}
	}
	return false
}

func writeTokenResponse(w http.ResponseWriter, resp tokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeInvalidClient(w http.ResponseWriter) {
	s.errors.writeJSON(w, oautherrors.InvalidClient, "client authentication failed", http.StatusUnauthorized)
}
