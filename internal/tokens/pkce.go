package tokens

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// CodeChallengeMethodS256 is the only PKCE transform this server accepts.
// "plain" is rejected outright per the RFC 7636 hardening this spec
// requires, unlike the teacher's handleAuthCode which still accepts both.
const CodeChallengeMethodS256 = "S256"

// ErrPKCERequired is returned by VerifyPKCE when no code_challenge was
// recorded for the authorization code.
var ErrPKCERequired = errors.New("tokens: PKCE code_challenge is required")

// ErrUnsupportedChallengeMethod is returned for any code_challenge_method
// other than S256.
var ErrUnsupportedChallengeMethod = errors.New("tokens: only S256 code_challenge_method is supported")

// ErrInvalidCodeVerifier is returned when the code_verifier presented at the
// token endpoint does not reproduce the stored code_challenge.
var ErrInvalidCodeVerifier = errors.New("tokens: code_verifier does not match code_challenge")

// ValidateChallengeMethod rejects anything but S256, closing off the
// downgrade-to-plain attack the RFC leaves technically legal.
func ValidateChallengeMethod(method string) error {
	if method != CodeChallengeMethodS256 {
		return ErrUnsupportedChallengeMethod
	}
	return nil
}

// codeChallengeS256 computes the S256 transform of a code_verifier, per
// RFC 7636 §4.2: BASE64URL-ENCODE(SHA256(ASCII(code_verifier))).
func codeChallengeS256(codeVerifier string) string {
	sum := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks codeVerifier against the code_challenge recorded at
// authorization time. Both challenge and verifier must be non-empty;
// callers must not skip this because the client omitted code_verifier.
func VerifyPKCE(codeChallenge, codeVerifier string) error {
	if codeChallenge == "" {
		return ErrPKCERequired
	}
	if codeVerifier == "" {
		return ErrInvalidCodeVerifier
	}
	calculated := codeChallengeS256(codeVerifier)
	if subtle.ConstantTimeCompare([]byte(calculated), []byte(codeChallenge)) != 1 {
		return ErrInvalidCodeVerifier
	}
	return nil
}
