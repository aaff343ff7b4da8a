package server

import (
	"fmt"
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// handleVerify implements the forward-auth endpoint the MCP gateway fleet's
// edge router consults on every proxied request: a bearer access token in,
// a 200 with identity headers or a 401 challenge out, never a redirect and
// never a body a browser would render. Grounded in spec §4.7's /verify
// contract; there is no teacher equivalent since dex has no forward-auth
// surface, so this follows the same claims→headers shape /introspect uses.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token, err := tokens.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		s.writeVerifyChallenge(w, "missing or malformed bearer token")
		return
	}

	claims, err := s.tokens.VerifyAccessToken(r.Context(), token)
	if err != nil {
		s.writeVerifyChallenge(w, "token is invalid, expired, or revoked")
		return
	}

	w.Header().Set("X-User-Id", claims.Subject)
	w.Header().Set("X-User-Name", claims.Username)
	w.Header().Set("X-Client-Id", claims.ClientID)
	if claims.Scope != "" {
		w.Header().Set("X-Token-Scope", claims.Scope)
	}
	w.WriteHeader(http.StatusOK)
}

// writeVerifyChallenge replies 401 with the RFC 9728-style
// WWW-Authenticate challenge pointing back at this server's metadata
// document, so a gateway-fronted MCP client can discover where to go
// register and authenticate.
func (s *Server) writeVerifyChallenge(w http.ResponseWriter, reason string) {
	resourceMetadata := s.config.IssuerURL + "/.well-known/oauth-authorization-server"
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata=%q, error="invalid_token", error_description=%q`, resourceMetadata, reason))
	w.WriteHeader(http.StatusUnauthorized)
}
