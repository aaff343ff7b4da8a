package server

import (
	"encoding/json"
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
)

// discoveryDocument is the RFC 8414 metadata document this server publishes
// at /.well-known/oauth-authorization-server, built once at startup (it is
// static for the lifetime of the process, matching spec §4.8), grounded in
// the teacher's discoveryHandler/constructDiscovery shape.
type discoveryDocument struct {
	Issuer                             string   `json:"issuer"`
	AuthorizationEndpoint              string   `json:"authorization_endpoint"`
	TokenEndpoint                      string   `json:"token_endpoint"`
	RegistrationEndpoint               string   `json:"registration_endpoint"`
	RevocationEndpoint                 string   `json:"revocation_endpoint"`
	IntrospectionEndpoint              string   `json:"introspection_endpoint"`
	JWKSURI                            string   `json:"jwks_uri"`
	ResponseTypesSupported             []string `json:"response_types_supported"`
	GrantTypesSupported                []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported      []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported  []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                    []string `json:"scopes_supported"`
	ProtocolVersion                    string   `json:"protocol_version"`
}

func buildDiscoveryDocument(issuer, protocolVersion string) discoveryDocument {
	return discoveryDocument{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/authorize",
		TokenEndpoint:                     issuer + "/token",
		RegistrationEndpoint:              issuer + "/register",
		RevocationEndpoint:                issuer + "/revoke",
		IntrospectionEndpoint:             issuer + "/introspect",
		JWKSURI:                           issuer + "/jwks",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_post", "client_secret_basic"},
		ScopesSupported:                   []string{"openid", "profile", "email"},
		ProtocolVersion:                   protocolVersion,
	}
}

// discoveryHandler serves the precomputed document, marshaled once at
// startup per spec §4.8 ("static-by-startup").
func discoveryHandler(doc discoveryDocument) (http.HandlerFunc, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(body)
	}, nil
}

// jwksHandler serves the current JWKS straight from the KeyManager, per
// spec §4.8; it is never cached server-side beyond the key manager's own
// in-memory set, so a future rotating KeyManager's key changes are reflected
// immediately.
func jwksHandler(keys *keymanager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=60")
		_ = json.NewEncoder(w).Encode(keys.JWKS())
	}
}
