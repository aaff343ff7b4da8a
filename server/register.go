package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// registrationRequest is the RFC 7591 §2 client metadata request body.
type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope"`
	ClientURI               string   `json:"client_uri"`
	LogoURI                 string   `json:"logo_uri"`
	Contacts                []string `json:"contacts"`
	TosURI                  string   `json:"tos_uri"`
	PolicyURI               string   `json:"policy_uri"`
	SoftwareID              string   `json:"software_id"`
	SoftwareVersion         string   `json:"software_version"`
}

func (r registrationRequest) toMetadata() clients.Metadata {
	return clients.Metadata{
		RedirectURIs:            r.RedirectURIs,
		ClientName:              r.ClientName,
		GrantTypes:              r.GrantTypes,
		ResponseTypes:           r.ResponseTypes,
		TokenEndpointAuthMethod: r.TokenEndpointAuthMethod,
		Scope:                   r.Scope,
		ClientURI:               r.ClientURI,
		LogoURI:                 r.LogoURI,
		Contacts:                r.Contacts,
		TosURI:                  r.TosURI,
		PolicyURI:               r.PolicyURI,
		SoftwareID:              r.SoftwareID,
		SoftwareVersion:         r.SoftwareVersion,
	}
}

// registrationResponse is the RFC 7591 §3.2.1 response body.
type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
	TosURI                  string   `json:"tos_uri,omitempty"`
	PolicyURI               string   `json:"policy_uri,omitempty"`
	SoftwareID              string   `json:"software_id,omitempty"`
	SoftwareVersion         string   `json:"software_version,omitempty"`
	RegistrationAccessToken string   `json:"registration_access_token"`
	RegistrationClientURI   string   `json:"registration_client_uri"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
}

func toRegistrationResponse(issuer string, reg store.ClientRegistration) registrationResponse {
	expiresAt := int64(0)
	if !reg.ExpiresAt.IsZero() {
		expiresAt = reg.ExpiresAt.Unix()
	}
	return registrationResponse{
		ClientID:                reg.ClientID,
		ClientSecret:            reg.ClientSecret,
		ClientName:              reg.ClientName,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              reg.GrantTypes,
		ResponseTypes:           reg.ResponseTypes,
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod,
		Scope:                   reg.Scope,
		ClientURI:               reg.ClientURI,
		LogoURI:                 reg.LogoURI,
		Contacts:                reg.Contacts,
		TosURI:                  reg.TosURI,
		PolicyURI:               reg.PolicyURI,
		SoftwareID:              reg.SoftwareID,
		SoftwareVersion:         reg.SoftwareVersion,
		RegistrationAccessToken: reg.RegistrationAccessToken,
		RegistrationClientURI:   issuer + "/register/" + reg.ClientID,
		ClientIDIssuedAt:        reg.IssuedAt.Unix(),
		ClientSecretExpiresAt:   expiresAt,
	}
}

// handleRegister implements POST /register, RFC 7591 dynamic client
// registration, grounded in the teacher's client_registration.go shape but
// delegated entirely to internal/clients.Registry instead of the teacher's
// SQL-backed client.ClientIdentityRepo.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.errors.writeJSON(w, oautherrors.InvalidRequest, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.writeJSON(w, oautherrors.InvalidClientMetadata, "request body is not valid JSON", http.StatusBadRequest)
		return
	}

	reg, err := s.clients.Register(r.Context(), req.toMetadata())
	if err != nil {
		switch {
		case errors.Is(err, clients.ErrInvalidRedirectURI):
			s.errors.writeJSON(w, oautherrors.InvalidRedirectURI, err.Error(), http.StatusBadRequest)
		case errors.Is(err, clients.ErrInvalidClientMetadata):
			s.errors.writeJSON(w, oautherrors.InvalidClientMetadata, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error("register client", "error", err)
			s.errors.writeJSON(w, oautherrors.ServerError, "", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toRegistrationResponse(s.config.IssuerURL, reg))
}
