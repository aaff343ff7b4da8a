package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Namespace prefixes, matching the table in spec §4.2.
const (
	nsState      = "oauth:state:"
	nsCode       = "oauth:code:"
	nsToken      = "oauth:token:"
	nsRefresh    = "oauth:refresh:"
	nsClient     = "oauth:client:"
	nsUserTokens = "oauth:user_tokens:"
	nsKeys       = "oauth:keys:"

	keysSingletonKey = "current"
)

// Store is a typed, namespaced wrapper over a KV backend. It owns all
// persisted protocol state; TokenService and ClientRegistry hold a Store
// reference but never talk to a KV backend directly.
type Store struct {
	kv KV
}

// New wraps kv in a typed Store.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal store entity")
	}
	return b, nil
}

func wrapBackendErr(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return errors.Wrap(ErrStorageUnavailable, err.Error())
}

// --- Authorization request state ---------------------------------------

// PutAuthRequestState stores a, keyed by its IdPState, with ttl. IdPState is
// the value /callback receives back from the external IdP, so it must also
// be the lookup key; a's State and ClientState are distinct values and are
// never used as a store key.
func (s *Store) PutAuthRequestState(ctx context.Context, a AuthRequestState, ttl time.Duration) error {
	b, err := marshal(a)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.Put(ctx, nsState+a.IdPState, b, ttl))
}

// TakeAuthRequestState atomically fetches and deletes the state for the
// given IdPState value. Absence (including expiry) returns ErrNotFound.
func (s *Store) TakeAuthRequestState(ctx context.Context, idpState string) (AuthRequestState, error) {
	var a AuthRequestState
	b, err := s.kv.TakeOnce(ctx, nsState+idpState)
	if err != nil {
		return a, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return a, errors.Wrap(err, "unmarshal auth request state")
	}
	return a, nil
}

// --- Authorization codes -------------------------------------------------

// PutAuthCode stores c, keyed by its Code, with ttl.
func (s *Store) PutAuthCode(ctx context.Context, c AuthCode, ttl time.Duration) error {
	b, err := marshal(c)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.Put(ctx, nsCode+c.Code, b, ttl))
}

// TakeAuthCode atomically fetches and deletes the code. Per spec, every
// redemption attempt -- successful or not -- consumes the code, so callers
// MUST call this exactly once per /token request and never "peek" first.
func (s *Store) TakeAuthCode(ctx context.Context, code string) (AuthCode, error) {
	var c AuthCode
	b, err := s.kv.TakeOnce(ctx, nsCode+code)
	if err != nil {
		return c, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "unmarshal auth code")
	}
	return c, nil
}

// --- Access tokens ---------------------------------------------------------

// PutAccessToken records minimal metadata for a live token under its jti.
func (s *Store) PutAccessToken(ctx context.Context, rec AccessTokenRecord, ttl time.Duration) error {
	b, err := marshal(rec)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.Put(ctx, nsToken+rec.JTI, b, ttl))
}

// GetAccessToken returns the live record for jti, or ErrNotFound if the
// token has been revoked, expired, or never existed.
func (s *Store) GetAccessToken(ctx context.Context, jti string) (AccessTokenRecord, error) {
	var rec AccessTokenRecord
	b, err := s.kv.Get(ctx, nsToken+jti)
	if err != nil {
		return rec, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, errors.Wrap(err, "unmarshal access token record")
	}
	return rec, nil
}

// DeleteAccessToken revokes jti immediately.
func (s *Store) DeleteAccessToken(ctx context.Context, jti string) error {
	return wrapBackendErr(s.kv.Delete(ctx, nsToken+jti))
}

// --- Refresh tokens ---------------------------------------------------------

// PutRefreshToken stores r, keyed by its Token, with ttl.
func (s *Store) PutRefreshToken(ctx context.Context, r RefreshToken, ttl time.Duration) error {
	b, err := marshal(r)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.Put(ctx, nsRefresh+r.Token, b, ttl))
}

// GetRefreshToken returns the refresh token record, or ErrNotFound.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	var r RefreshToken
	b, err := s.kv.Get(ctx, nsRefresh+token)
	if err != nil {
		return r, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, errors.Wrap(err, "unmarshal refresh token")
	}
	return r, nil
}

// DeleteRefreshToken removes token, e.g. after rotation or revocation.
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	return wrapBackendErr(s.kv.Delete(ctx, nsRefresh+token))
}

// --- Clients ---------------------------------------------------------------

// PutClient creates or overwrites a client registration, with ttl = 0
// meaning the registration never expires.
func (s *Store) PutClient(ctx context.Context, c ClientRegistration, ttl time.Duration) error {
	b, err := marshal(c)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.Put(ctx, nsClient+c.ClientID, b, ttl))
}

// PutClientIfAbsent creates a client registration only if the client_id is
// not already taken.
func (s *Store) PutClientIfAbsent(ctx context.Context, c ClientRegistration, ttl time.Duration) error {
	b, err := marshal(c)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.PutIfAbsent(ctx, nsClient+c.ClientID, b, ttl))
}

// GetClient returns the registration for clientID, or ErrNotFound.
func (s *Store) GetClient(ctx context.Context, clientID string) (ClientRegistration, error) {
	var c ClientRegistration
	b, err := s.kv.Get(ctx, nsClient+clientID)
	if err != nil {
		return c, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "unmarshal client registration")
	}
	return c, nil
}

// DeleteClient removes a client registration. Refresh tokens bound to it
// are not eagerly scrubbed; the /token refresh grant rejects them because
// its client lookup fails (see server/token.go).
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	return wrapBackendErr(s.kv.Delete(ctx, nsClient+clientID))
}

// --- User token index --------------------------------------------------

// AddUserToken records jti as live for subject, for later bulk revocation.
func (s *Store) AddUserToken(ctx context.Context, subject, jti string) error {
	idx, err := s.getUserTokenIndex(ctx, subject)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	idx.Subject = subject
	idx.add(jti)
	return s.putUserTokenIndex(ctx, idx)
}

// RemoveUserToken drops jti from subject's live set.
func (s *Store) RemoveUserToken(ctx context.Context, subject, jti string) error {
	idx, err := s.getUserTokenIndex(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	idx.remove(jti)
	return s.putUserTokenIndex(ctx, idx)
}

// UserTokens returns the live jtis for subject.
func (s *Store) UserTokens(ctx context.Context, subject string) ([]string, error) {
	idx, err := s.getUserTokenIndex(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return idx.JTIs, nil
}

func (s *Store) getUserTokenIndex(ctx context.Context, subject string) (UserTokenIndex, error) {
	var idx UserTokenIndex
	b, err := s.kv.Get(ctx, nsUserTokens+subject)
	if err != nil {
		return idx, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &idx); err != nil {
		return idx, errors.Wrap(err, "unmarshal user token index")
	}
	return idx, nil
}

// --- Signing keys ------------------------------------------------------

// GetKeys returns the current signing key set, or ErrNotFound if no
// instance has bootstrapped one yet.
func (s *Store) GetKeys(ctx context.Context) (SigningKeySet, error) {
	var ks SigningKeySet
	b, err := s.kv.Get(ctx, nsKeys+keysSingletonKey)
	if err != nil {
		return ks, wrapBackendErr(err)
	}
	if err := json.Unmarshal(b, &ks); err != nil {
		return ks, errors.Wrap(err, "unmarshal signing key set")
	}
	return ks, nil
}

// PutKeysIfAbsent bootstraps the key set, so only the first replica to race
// this call wins and every other replica picks up its result on next read.
func (s *Store) PutKeysIfAbsent(ctx context.Context, ks SigningKeySet) error {
	b, err := marshal(ks)
	if err != nil {
		return err
	}
	return wrapBackendErr(s.kv.PutIfAbsent(ctx, nsKeys+keysSingletonKey, b, 0))
}

func (s *Store) putUserTokenIndex(ctx context.Context, idx UserTokenIndex) error {
	b, err := marshal(idx)
	if err != nil {
		return err
	}
	// The index has no TTL: entries are pruned as tokens expire or are revoked.
	return wrapBackendErr(s.kv.Put(ctx, nsUserTokens+idx.Subject, b, 0))
}
