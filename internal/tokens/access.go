// Package tokens mints and verifies the opaque and self-describing tokens
// the authorization server hands out: PKCE verification, access token JWS,
// refresh tokens, and the registration/authorization codes that glue the
// flow together.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// AccessClaims is the JSON payload signed into an access token's JWS. It is
// intentionally small: authorization decisions read the claims directly
// instead of round-tripping through the store on every request, with the
// store lookup by jti serving only as the revocation check.
type AccessClaims struct {
	Issuer   string `json:"iss"`
	Subject  string `json:"sub"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Audience string `json:"aud,omitempty"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	JTI      string `json:"jti"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// ErrTokenExpired is returned by VerifyAccessToken for a structurally valid,
// correctly-signed token whose exp claim has elapsed.
var ErrTokenExpired = errors.New("tokens: access token expired")

// ErrTokenRevoked is returned when a token's jti is not present in the
// store, meaning it was explicitly revoked (or never issued by this
// server's current storage).
var ErrTokenRevoked = errors.New("tokens: access token revoked")

// ErrTokenIssuerMismatch is returned when a token's iss or aud claim does
// not match this server's configured issuer.
var ErrTokenIssuerMismatch = errors.New("tokens: access token issuer/audience mismatch")

// Service mints and verifies the tokens issued over the lifetime of a
// single grant: access tokens, refresh tokens, and authorization codes.
// It holds no HTTP-layer knowledge; server handlers translate between wire
// requests and these methods.
type Service struct {
	store  *store.Store
	keys   *keymanager.Manager
	issuer string

	accessTokenLifetime time.Duration
	refreshTokenRotate  bool
}

// NewService constructs a Service. issuer is used as the "iss" claim and
// must match the discovery document's issuer exactly.
func NewService(st *store.Store, keys *keymanager.Manager, issuer string, accessTokenLifetime time.Duration, refreshTokenRotate bool) *Service {
	return &Service{
		store:               st,
		keys:                keys,
		issuer:              issuer,
		accessTokenLifetime: accessTokenLifetime,
		refreshTokenRotate:  refreshTokenRotate,
	}
}

// IssueAccessToken mints a signed access token for the given grant and
// records its jti in the store so it can later be revoked or introspected.
func (s *Service) IssueAccessToken(ctx context.Context, clientID, subject, username, email, scope string) (token string, jti string, expiry time.Time, err error) {
	jti = NewJTI()
	now := time.Now()
	expiry = now.Add(s.accessTokenLifetime)

	claims := AccessClaims{
		Issuer:   s.issuer,
		Subject:  subject,
		Username: username,
		Email:    email,
		Audience: s.issuer,
		ClientID: clientID,
		Scope:    scope,
		JTI:      jti,
		IssuedAt: now.Unix(),
		Expiry:   expiry.Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	token, err = s.keys.Sign(payload)
	if err != nil {
		return "", "", time.Time{}, err
	}

	rec := store.AccessTokenRecord{
		JTI:      jti,
		ClientID: clientID,
		Subject:  subject,
		Scope:    scope,
		Expiry:   expiry,
	}
	if err := s.store.PutAccessToken(ctx, rec, s.accessTokenLifetime); err != nil {
		return "", "", time.Time{}, err
	}
	if err := s.store.AddUserToken(ctx, subject, jti); err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiry, nil
}

// VerifyAccessToken checks token's signature, expiry, and store-side
// liveness, returning the claims it carries on success. This is the single
// choke point both the resource-facing /verify endpoint and /introspect go
// through.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (AccessClaims, error) {
	var claims AccessClaims
	payload, err := s.keys.Verify(token)
	if err != nil {
		return claims, err
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return claims, err
	}
	if claims.Issuer != s.issuer || claims.Audience != s.issuer {
		return claims, ErrTokenIssuerMismatch
	}
	if time.Now().Unix() > claims.Expiry {
		return claims, ErrTokenExpired
	}
	if _, err := s.store.GetAccessToken(ctx, claims.JTI); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return claims, ErrTokenRevoked
		}
		return claims, err
	}
	return claims, nil
}

// RevokeAccessToken removes jti from the store, immediately invalidating
// the token regardless of its remaining lifetime.
func (s *Service) RevokeAccessToken(ctx context.Context, jti, subject string) error {
	if err := s.store.DeleteAccessToken(ctx, jti); err != nil {
		return err
	}
	return s.store.RemoveUserToken(ctx, subject, jti)
}

// ParseAccessTokenClaims checks only token's signature, not its exp or
// store-side liveness, returning the claims it carries. RFC 7009 revocation
// needs the jti/subject of a token that may already be expired or revoked,
// so /revoke uses this instead of VerifyAccessToken.
func (s *Service) ParseAccessTokenClaims(token string) (AccessClaims, error) {
	var claims AccessClaims
	payload, err := s.keys.Verify(token)
	if err != nil {
		return claims, err
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return claims, err
	}
	return claims, nil
}
