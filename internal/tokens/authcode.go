package tokens

import (
	"context"
	"time"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// authRequestStateTTL bounds how long a user has to complete the upstream
// IdP round trip before the local /authorize state expires.
const authRequestStateTTL = 10 * time.Minute

// authCodeTTL bounds how long an issued authorization code can be redeemed
// for, per RFC 6749 §4.1.2's "SHOULD expire shortly" guidance.
const authCodeTTL = 2 * time.Minute

// BeginAuthRequest records the pending authorization request under a fresh
// local state value, returning it for use as the state forwarded to the
// upstream IdP round trip.
func (s *Service) BeginAuthRequest(ctx context.Context, clientID, redirectURI string, scopes []string, codeChallenge, codeChallengeMethod, clientState string) (store.AuthRequestState, error) {
	a := store.AuthRequestState{
		State:               NewState(),
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ClientState:         clientState,
		IdPState:            NewState(),
		CreatedAt:           time.Now(),
	}
	if err := s.store.PutAuthRequestState(ctx, a, authRequestStateTTL); err != nil {
		return store.AuthRequestState{}, err
	}
	return a, nil
}

// TakeAuthRequestByIdPState consumes the pending request matching the state
// value echoed back by the upstream IdP's callback. It is exactly-once:
// a replayed callback with the same idp state fails the second time.
func (s *Service) TakeAuthRequestByIdPState(ctx context.Context, idpState string) (store.AuthRequestState, error) {
	return s.store.TakeAuthRequestState(ctx, idpState)
}

// IssueAuthorizationCode mints and stores the code returned to the client
// at the end of a successful callback.
func (s *Service) IssueAuthorizationCode(ctx context.Context, req store.AuthRequestState, subject, username, email string) (string, error) {
	code := NewAuthorizationCode()
	c := store.AuthCode{
		Code:                code,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Subject:             subject,
		Username:            username,
		Email:               email,
		IssuedAt:            time.Now(),
	}
	if err := s.store.PutAuthCode(ctx, c, authCodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

// RedeemAuthorizationCode atomically consumes code. Every call — successful
// or not — removes it from the store, so a stolen code presented twice
// always fails on the second attempt even if the first attempt also failed
// validation.
func (s *Service) RedeemAuthorizationCode(ctx context.Context, code string) (store.AuthCode, error) {
	return s.store.TakeAuthCode(ctx, code)
}
