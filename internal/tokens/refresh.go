package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// ErrRefreshTokenClientMismatch is returned when a refresh token is
// redeemed by a client_id other than the one it was minted for.
var ErrRefreshTokenClientMismatch = errors.New("tokens: refresh token does not belong to this client")

// ErrRefreshTokenExpired is returned for a refresh token past its stored
// expiry, even if the store has not yet swept it out.
var ErrRefreshTokenExpired = errors.New("tokens: refresh token expired")

// refreshTokenLifetime is fixed rather than configurable per the Open
// Question decision recorded in DESIGN.md: absolute lifetime, no sliding
// "valid if not used for" window like the teacher's RefreshTokenPolicy.
const refreshTokenLifetime = 30 * 24 * time.Hour

// IssueRefreshToken mints and stores a new refresh token bound to the given
// client, subject and scope.
func (s *Service) IssueRefreshToken(ctx context.Context, clientID, subject, username, email, scope string) (string, error) {
	token := NewRefreshToken()
	now := time.Now()
	rt := store.RefreshToken{
		Token:     token,
		ClientID:  clientID,
		Subject:   subject,
		Username:  username,
		Email:     email,
		Scope:     scope,
		CreatedAt: now,
		Expiry:    now.Add(refreshTokenLifetime),
	}
	if err := s.store.PutRefreshToken(ctx, rt, refreshTokenLifetime); err != nil {
		return "", err
	}
	return token, nil
}

// RedeemRefreshToken validates token for clientID and returns its record.
// When the service is configured to rotate refresh tokens, the caller MUST
// also call RotateRefreshToken; callers using a non-rotating configuration
// keep using the same token value across subsequent refreshes.
func (s *Service) RedeemRefreshToken(ctx context.Context, token, clientID string) (store.RefreshToken, error) {
	rt, err := s.store.GetRefreshToken(ctx, token)
	if err != nil {
		return rt, err
	}
	if rt.ClientID != clientID {
		return rt, ErrRefreshTokenClientMismatch
	}
	if time.Now().After(rt.Expiry) {
		return rt, ErrRefreshTokenExpired
	}
	return rt, nil
}

// RotatesRefreshTokens reports whether this deployment mints a fresh
// refresh token on every use, invalidating the previous one.
func (s *Service) RotatesRefreshTokens() bool {
	return s.refreshTokenRotate
}

// RotateRefreshToken deletes the old token and mints a replacement carrying
// the same grant. Call only when RotatesRefreshTokens is true.
func (s *Service) RotateRefreshToken(ctx context.Context, old store.RefreshToken) (string, error) {
	if err := s.store.DeleteRefreshToken(ctx, old.Token); err != nil {
		return "", err
	}
	return s.IssueRefreshToken(ctx, old.ClientID, old.Subject, old.Username, old.Email, old.Scope)
}

// RevokeRefreshToken removes token from the store outright.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.store.DeleteRefreshToken(ctx, token)
}
