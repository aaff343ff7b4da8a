package tokens

import (
	"errors"
	"strings"
)

// ErrMissingBearerToken is returned when an Authorization header is absent
// or not a Bearer scheme.
var ErrMissingBearerToken = errors.New("tokens: missing or malformed bearer token")

// ExtractBearerToken pulls the token out of an "Authorization: Bearer <tok>"
// header value. It is a pure function on purpose: the forward-auth verifier
// and the RFC 7592 client-configuration handler both need the identical
// parsing rule, and testing it without an *http.Request keeps that rule honest.
func ExtractBearerToken(authorizationHeader string) (string, error) {
	const prefix = "Bearer "
	if len(authorizationHeader) <= len(prefix) || !strings.EqualFold(authorizationHeader[:len(prefix)], prefix) {
		return "", ErrMissingBearerToken
	}
	token := strings.TrimSpace(authorizationHeader[len(prefix):])
	if token == "" {
		return "", ErrMissingBearerToken
	}
	return token, nil
}
