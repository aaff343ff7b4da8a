package tokens

import (
	"crypto/rand"
	"encoding/base32"
	"io"
	"strings"
)

// secureIDEncoding avoids characters that need escaping in URLs or cookies,
// adapted from the teacher's storage.NewID.
var secureIDEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// newSecureID returns a cryptographically random identifier of the
// requested byte length, base32-encoded and never leading with a digit so
// it can't be mistaken for a number in untyped contexts.
func newSecureID(n int) string {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		panic(err)
	}
	return string(buf[0]%26+'a') + secureIDEncoding.EncodeToString(buf[1:])
}

// NewState returns a random value suitable for the local /authorize state
// parameter and, distinctly, the state forwarded to the upstream IdP.
func NewState() string {
	return newSecureID(20)
}

// NewAuthorizationCode returns a random, single-use authorization code.
func NewAuthorizationCode() string {
	return newSecureID(24)
}

// NewRefreshToken returns a random refresh token value.
func NewRefreshToken() string {
	return "rt_" + newSecureID(32)
}

// NewJTI returns a random access-token identifier, used as both the JWT
// "jti" claim and the store key that makes the token revocable.
func NewJTI() string {
	return newSecureID(20)
}

// NewClientID returns a random RFC 7591 client_id.
func NewClientID() string {
	return "client_" + newSecureID(16)
}

// NewClientSecret returns a random RFC 7591 client_secret for confidential
// clients.
func NewClientSecret() string {
	return newSecureID(32)
}

// NewRegistrationAccessToken returns a random RFC 7592 registration access
// token, bound to exactly the one client it was issued for.
func NewRegistrationAccessToken() string {
	return "reg-" + newSecureID(32)
}

// NormalizeScope joins scope values the way the wire format expects: a
// single space-separated string.
func NormalizeScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// SplitScope is the inverse of NormalizeScope; an empty string yields an
// empty, non-nil slice.
func SplitScope(scope string) []string {
	if scope == "" {
		return []string{}
	}
	return strings.Fields(scope)
}
