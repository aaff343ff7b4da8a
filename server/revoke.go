package server

import (
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
)

// handleRevoke implements POST /revoke per RFC 7009. The client authenticates
// itself exactly as it would at /token, then the token is looked up by value
// (refresh token) or by jti (access token, decoded from the presented JWS)
// and removed; per RFC 7009 §2.2 the endpoint returns 200 regardless of
// whether the token was found, so callers cannot probe token liveness.
// Grounded in the teacher's revocation handling in server/tokenhandlers.go,
// re-expressed against internal/tokens instead of storage.Storage.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "malformed request body", http.StatusBadRequest)
		return
	}

	presentedClientID, secret, viaBasic := presentedClientCredentials(r)
	token := r.FormValue("token")
	if token == "" {
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "token is required", http.StatusBadRequest)
		return
	}

	reg, err := s.clients.Get(r.Context(), presentedClientID)
	if err != nil {
		s.writeInvalidClient(w)
		return
	}
	if err := authenticateClient(reg, presentedClientID, secret, viaBasic); err != nil {
		s.writeInvalidClient(w)
		return
	}

	hint := r.FormValue("token_type_hint")
	if hint != "refresh_token" {
		if claims, err := s.tokens.ParseAccessTokenClaims(token); err == nil {
			if claims.ClientID == presentedClientID {
				if err := s.tokens.RevokeAccessToken(r.Context(), claims.JTI, claims.Subject); err != nil {
					s.logger.Error("revoke access token", "error", err)
				}
			}
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if _, err := s.tokens.RedeemRefreshToken(r.Context(), token, presentedClientID); err == nil {
		if err := s.tokens.RevokeRefreshToken(r.Context(), token); err != nil {
			s.logger.Error("revoke refresh token", "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}
