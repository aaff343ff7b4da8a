package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// handleClientResource implements RFC 7592's client configuration endpoint:
// GET/PUT/DELETE /register/{client_id}, each authenticated by the
// registration access token issued at registration time. Grounded in the
// teacher's client_resource.go, re-expressed against internal/clients
// instead of the teacher's client.ClientIdentityRepo.
func (s *Server) handleClientResource(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client_id"]

	bearer, err := tokens.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		s.writeInvalidRegistrationToken(w)
		return
	}

	reg, err := s.clients.Authorize(r.Context(), clientID, bearer)
	if err != nil {
		switch {
		case errors.Is(err, clients.ErrClientNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, clients.ErrRegistrationAccessTokenMismatch):
			s.writeInvalidRegistrationToken(w)
		default:
			s.logger.Error("authorize client resource", "error", err)
			s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(toRegistrationResponse(s.config.IssuerURL, reg))

	case http.MethodPut:
		var req registrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errors.writeJSON(w, oautherrors.InvalidClientMetadata, "request body is not valid JSON", http.StatusBadRequest)
			return
		}
		updated, err := s.clients.Update(r.Context(), reg, req.toMetadata())
		if err != nil {
			switch {
			case errors.Is(err, clients.ErrInvalidRedirectURI):
				s.errors.writeJSON(w, oautherrors.InvalidRedirectURI, err.Error(), http.StatusBadRequest)
			case errors.Is(err, clients.ErrInvalidClientMetadata):
				s.errors.writeJSON(w, oautherrors.InvalidClientMetadata, err.Error(), http.StatusBadRequest)
			default:
				s.logger.Error("update client", "error", err)
				s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(toRegistrationResponse(s.config.IssuerURL, updated))

	case http.MethodDelete:
		if err := s.clients.Delete(r.Context(), clientID); err != nil {
			s.logger.Error("delete client", "error", err)
			s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeInvalidRegistrationToken(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	s.errors.writeJSON(w, oautherrors.InvalidToken, "registration access token is missing or does not match", http.StatusUnauthorized)
}
