package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// ErrClientAuthFailed is returned when a client fails to authenticate at
// /token, /revoke or /introspect per its declared token_endpoint_auth_method.
var ErrClientAuthFailed = errors.New("server: client authentication failed")

// presentedClientCredentials extracts whichever of HTTP Basic auth or
// client_secret_post form fields the request used to identify itself,
// matching RFC 6749 §2.3's two authentication styles.
func presentedClientCredentials(r *http.Request) (clientID, secret string, viaBasic bool) {
	if user, pass, ok := r.BasicAuth(); ok {
		return user, pass, true
	}
	return r.FormValue("client_id"), r.FormValue("client_secret"), false
}

// authenticateClient verifies that the credentials presented with the
// request satisfy reg's declared token_endpoint_auth_method, using a
// constant-time comparison for any secret, grounded in spec §4.4/§4.6.
func authenticateClient(reg store.ClientRegistration, clientID, secret string, viaBasic bool) error {
	if clientID != reg.ClientID {
		return ErrClientAuthFailed
	}
	switch reg.TokenEndpointAuthMethod {
	case "none":
		return nil
	case "client_secret_basic":
		if !viaBasic {
			return ErrClientAuthFailed
		}
	case "client_secret_post":
		if viaBasic {
			return ErrClientAuthFailed
		}
	default:
		return ErrClientAuthFailed
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(reg.ClientSecret)) != 1 {
		return ErrClientAuthFailed
	}
	return nil
}
