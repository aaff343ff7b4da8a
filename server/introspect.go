package server

import (
	"encoding/json"
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
)

// introspectionResponse is the RFC 7662 §2.2 response body. Only Active is
// populated for an inactive token; the rest are omitted.
type introspectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	JTI       string `json:"jti,omitempty"`
}

// handleIntrospect implements POST /introspect per RFC 7662. The caller must
// authenticate as a registered client; an inactive, expired, revoked, or
// malformed token yields {"active": false} rather than an error, per
// RFC 7662 §2.2. Grounded in the teacher's introspection.go, re-expressed
// against internal/tokens.Service.VerifyAccessToken.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
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
	reg, err := s.clients.Get(r.Context(), presentedClientID)
	if err != nil {
		s.writeInvalidClient(w)
		return
	}
	if err := authenticateClient(reg, presentedClientID, secret, viaBasic); err != nil {
		s.writeInvalidClient(w)
		return
	}

	token := r.FormValue("token")
	claims, err := s.tokens.VerifyAccessToken(r.Context(), token)
	if err != nil {
		writeIntrospection(w, introspectionResponse{Active: false})
		return
	}

	writeIntrospection(w, introspectionResponse{
		Active:    true,
		Scope:     claims.Scope,
		ClientID:  claims.ClientID,
		Username:  claims.Username,
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		TokenType: "Bearer",
		Exp:       claims.Expiry,
		Iat:       claims.IssuedAt,
		JTI:       claims.JTI,
	})
}

func writeIntrospection(w http.ResponseWriter, resp introspectionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}
