package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
	"github.com/atrawog/mcp-oauth-gateway/internal/store/memkv"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	kv := memkv.New()
	t.Cleanup(func() { _ = kv.Close() })
	return store.New(kv)
}

func TestAuthRequestStateTakeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := store.AuthRequestState{
		State:       "client-facing-state",
		IdPState:    "abc123",
		ClientID:    "client-1",
		RedirectURI: "https://client.example/cb",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.PutAuthRequestState(ctx, a, time.Minute))

	got, err := s.TakeAuthRequestState(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, a.ClientID, got.ClientID)

	_, err = s.TakeAuthRequestState(ctx, "abc123")
	require.ErrorIs(t, err, store.ErrNotFound, "state must not be replayable")
}

func TestAuthCodeTakeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := store.AuthCode{
		Code:                "code-xyz",
		ClientID:            "client-1",
		RedirectURI:         "https://client.example/cb",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		Subject:             "gh:1234",
		Username:            "octocat",
		IssuedAt:            time.Now(),
	}
	require.NoError(t, s.PutAuthCode(ctx, c, time.Minute))

	got, err := s.TakeAuthCode(ctx, "code-xyz")
	require.NoError(t, err)
	require.Equal(t, c.Subject, got.Subject)

	_, err = s.TakeAuthCode(ctx, "code-xyz")
	require.ErrorIs(t, err, store.ErrNotFound, "code must not be redeemable twice")
}

func TestAccessTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := store.AccessTokenRecord{
		JTI:      "jti-1",
		ClientID: "client-1",
		Subject:  "gh:1234",
		Scope:    "mcp:read",
		Expiry:   time.Now().Add(time.Hour),
	}
	require.NoError(t, s.PutAccessToken(ctx, rec, time.Hour))

	got, err := s.GetAccessToken(ctx, "jti-1")
	require.NoError(t, err)
	require.Equal(t, rec.ClientID, got.ClientID)

	require.NoError(t, s.DeleteAccessToken(ctx, "jti-1"))
	_, err = s.GetAccessToken(ctx, "jti-1")
	require.ErrorIs(t, err, store.ErrNotFound, "revoked token must be reported absent")
}

func TestClientRegistrationIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := store.ClientRegistration{
		ClientID:      "client-dup",
		RedirectURIs:  []string{"https://client.example/cb"},
		GrantTypes:    []string{"authorization_code"},
		ResponseTypes: []string{"code"},
		IssuedAt:      time.Now(),
	}
	require.NoError(t, s.PutClientIfAbsent(ctx, c, 0))

	err := s.PutClientIfAbsent(ctx, c, 0)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.GetClient(ctx, "client-dup")
	require.NoError(t, err)
	require.Equal(t, c.RedirectURIs, got.RedirectURIs)

	require.NoError(t, s.DeleteClient(ctx, "client-dup"))
	_, err = s.GetClient(ctx, "client-dup")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserTokenIndexAddRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	subject := "gh:5555"

	require.NoError(t, s.AddUserToken(ctx, subject, "jti-a"))
	require.NoError(t, s.AddUserToken(ctx, subject, "jti-b"))
	// Adding a jti twice must not duplicate it.
	require.NoError(t, s.AddUserToken(ctx, subject, "jti-a"))

	jtis, err := s.UserTokens(ctx, subject)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"jti-a", "jti-b"}, jtis)

	require.NoError(t, s.RemoveUserToken(ctx, subject, "jti-a"))
	jtis, err = s.UserTokens(ctx, subject)
	require.NoError(t, err)
	require.Equal(t, []string{"jti-b"}, jtis)
}

func TestUserTokensForUnknownSubjectIsEmpty(t *testing.T) {
	s := newTestStore(t)
	jtis, err := s.UserTokens(context.Background(), "gh:never-seen")
	require.NoError(t, err)
	require.Empty(t, jtis)
}

func TestClientExpired(t *testing.T) {
	c := store.ClientRegistration{ExpiresAt: time.Now().Add(-time.Minute)}
	require.True(t, c.Expired(time.Now()))

	neverExpires := store.ClientRegistration{}
	require.False(t, neverExpires.Expired(time.Now()))
}
