// Package oautherrors presents protocol errors the way RFC 6749 §5.2 and
// RFC 7591 §3.2.2 require: a JSON body carrying "error" and
// "error_description", with the handler choosing the right HTTP status and
// headers around it. Adapted from the teacher's apiError/writeTokenError
// family in server/error.go.
package oautherrors

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Standard error codes used across the token, registration and
// introspection endpoints.
const (
	InvalidRequest        = "invalid_request"
	InvalidClient         = "invalid_client"
	InvalidGrant          = "invalid_grant"
	UnauthorizedClient    = "unauthorized_client"
	UnsupportedGrantType  = "unsupported_grant_type"
	InvalidScope          = "invalid_scope"
	AccessDenied          = "access_denied"
	ServerError           = "server_error"
	InvalidClientMetadata = "invalid_client_metadata"
	InvalidRedirectURI    = "invalid_redirect_uri"
	InvalidToken          = "invalid_token"
)

// Safe, generic user-facing messages for the HTML error page. Actual
// failure detail is logged server-side, never rendered.
const (
	MsgAuthenticationFailed = "Authentication failed. Please try again or contact the application owner."
	MsgInternalServerError  = "Something went wrong on our end. Please try again shortly."
	MsgInvalidRequest       = "This request could not be processed."
	MsgAccessDenied         = "Access was denied for this account."
)

// APIError is the JSON body returned for every protocol-level failure.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface so APIError can be passed around and
// compared like any other error value.
func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// New constructs an APIError.
func New(code, description string) *APIError {
	return &APIError{Code: code, Description: description}
}

// statusFor maps an error code to the HTTP status RFC 6749/7591 associate
// with it, defaulting to 400 for anything unrecognized.
func statusFor(code string) int {
	switch code {
	case InvalidClient, InvalidToken:
		return http.StatusUnauthorized
	case ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// WriteJSON writes err as a JSON error body with Cache-Control: no-store,
// matching RFC 6749 §5.2's requirement that token responses never be
// cached. code overrides the status derived from err.Code when non-zero.
func WriteJSON(w http.ResponseWriter, err *APIError, code int) {
	if code == 0 {
		code = statusFor(err.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if err.Code == InvalidClient {
		w.Header().Set("WWW-Authenticate", "Basic")
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(err)
}

// RedirectWithError 302s back to redirectURI with RFC 6749 §4.1.2.1's
// error/error_description/state query parameters, used by /authorize and
// /callback once a redirect_uri is known to be valid.
func RedirectWithError(w http.ResponseWriter, r *http.Request, redirectURI string, err *APIError, state string) {
	u, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		WriteJSON(w, New(ServerError, "invalid redirect_uri"), http.StatusInternalServerError)
		return
	}
	q := u.Query()
	q.Set("error", err.Code)
	if err.Description != "" {
		q.Set("error_description", err.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
