// Package keymanager signs and verifies access tokens with an RSA key loaded
// once at startup, adapted from the teacher's rotationStrategy/keyRotator
// machinery in server/rotation.go but persisting state through internal/store
// so every replica converges on the same signing key. Rotation is out of
// scope for v1; every key still carries a kid so a future rotating Manager
// can replace this one without breaking already-issued tokens.
package keymanager

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	jose "gopkg.in/square/go-jose.v2"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// Algorithm identifies the signing algorithm in use. RS256 is the default;
// HS256 exists only as a zero-dependency bootstrap path (see DESIGN.md).
type Algorithm string

const (
	RS256 Algorithm = "RS256"
	HS256 Algorithm = "HS256"
)

// Manager owns the server's signing key and answers verification requests
// by kid. It loads its key once at startup and never rotates (see
// SPEC_FULL.md §4.1); the verifier map and kid-keyed lookup exist so a
// future rotating Manager implementation is a drop-in replacement.
type Manager struct {
	store     *store.Store
	logger    *slog.Logger
	algorithm Algorithm

	rotationFrequency time.Duration // stamped into NextRotation for forward compatibility only

	hsSecret []byte // only set when algorithm == HS256

	mu       sync.RWMutex
	current  *rsa.PrivateKey
	kid      string
	verifier map[string]*rsa.PublicKey
}

// Config configures a Manager.
type Config struct {
	Algorithm Algorithm
	// HS256Secret must be set when Algorithm is HS256.
	HS256Secret string
	// RotationFrequency has no effect on this Manager's behavior; it is
	// stamped into the persisted key set's NextRotation field so a future
	// rotating Manager can start from it without a schema migration.
	RotationFrequency time.Duration
}

// New constructs a Manager. Call Start to bootstrap or load the current key
// before Sign/Verify are used.
func New(st *store.Store, logger *slog.Logger, cfg Config) (*Manager, error) {
	if cfg.RotationFrequency <= 0 {
		cfg.RotationFrequency = 24 * time.Hour
	}
	m := &Manager{
		store:             st,
		logger:            logger,
		algorithm:         cfg.Algorithm,
		rotationFrequency: cfg.RotationFrequency,
		verifier:          make(map[string]*rsa.PublicKey),
	}
	if m.algorithm == "" {
		m.algorithm = RS256
	}
	if m.algorithm == HS256 {
		if cfg.HS256Secret == "" {
			return nil, errors.New("keymanager: HS256 requires a non-empty secret")
		}
		m.hsSecret = []byte(cfg.HS256Secret)
		logger.Warn("using HS256 bootstrap signing mode; switch to RS256 for production")
	}
	return m, nil
}

// Start loads the current key set from storage, bootstrapping one if none
// exists yet. It mirrors the teacher's startKeyRotation in shape, but since
// rotation is out of scope for v1 this is the only key load the Manager ever
// does: the caller gets a usable key before this call returns, and that key
// stays current for the life of the process.
func (m *Manager) Start(ctx context.Context) error {
	if m.algorithm == HS256 {
		return nil
	}
	ks, err := m.store.GetKeys(ctx)
	if errors.Is(err, store.ErrNotFound) {
		if err := m.bootstrap(ctx); err != nil {
			return err
		}
		ks, err = m.store.GetKeys(ctx)
		if err != nil {
			return errors.Wrap(err, "load bootstrapped keys")
		}
	} else if err != nil {
		return errors.Wrap(err, "load signing keys")
	}
	m.loadFromKeySet(ks)
	return nil
}

func (m *Manager) bootstrap(ctx context.Context) error {
	priv, kid, err := generateKey()
	if err != nil {
		return err
	}
	ks := store.SigningKeySet{
		SigningKeyID:      kid,
		SigningPrivateKey: x509.MarshalPKCS1PrivateKey(priv),
		SigningPublicKey:  mustMarshalPKIX(&priv.PublicKey),
		NextRotation:      time.Now().Add(m.rotationFrequency),
	}
	err = m.store.PutKeysIfAbsent(ctx, ks)
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return errors.Wrap(err, "bootstrap signing keys")
	}
	return nil
}

func (m *Manager) loadFromKeySet(ks store.SigningKeySet) {
	priv, err := x509.ParsePKCS1PrivateKey(ks.SigningPrivateKey)
	if err != nil {
		m.logger.Error("parse signing private key", "error", err)
		return
	}
	verifier := make(map[string]*rsa.PublicKey, len(ks.VerificationKeys)+1)
	verifier[ks.SigningKeyID] = &priv.PublicKey
	for _, vk := range ks.VerificationKeys {
		pub, err := x509.ParsePKIXPublicKey(vk.PublicKey)
		if err != nil {
			continue
		}
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			verifier[vk.KeyID] = rsaPub
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = priv
	m.kid = ks.SigningKeyID
	m.verifier = verifier
}

// Algorithm reports the algorithm Sign/Verify use.
func (m *Manager) Algorithm() Algorithm {
	return m.algorithm
}

// JWKS returns the JSON Web Key Set for every currently-verifying key,
// suitable for serving directly at the discovery document's jwks_uri.
func (m *Manager) JWKS() jose.JSONWebKeySet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := jose.JSONWebKeySet{}
	for kid, pub := range m.verifier {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       pub,
			KeyID:     kid,
			Algorithm: string(RS256),
			Use:       "sig",
		})
	}
	return set
}

// ErrFailedVerify is returned when a token's signature cannot be verified by
// any currently-live key.
var ErrFailedVerify = errors.New("keymanager: failed to verify token signature")

// Sign produces a compact JWS over payload using the current signing key.
func (m *Manager) Sign(payload []byte) (string, error) {
	var signer jose.Signer
	var err error
	if m.algorithm == HS256 {
		signer, err = jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: m.hsSecret}, nil)
	} else {
		m.mu.RLock()
		key := m.current
		kid := m.kid
		m.mu.RUnlock()
		if key == nil {
			return "", errors.New("keymanager: not started")
		}
		signer, err = jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, &jose.SignerOptions{
			ExtraHeaders: map[jose.HeaderKey]interface{}{"kid": kid},
		})
	}
	if err != nil {
		return "", errors.Wrap(err, "construct signer")
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", errors.Wrap(err, "sign payload")
	}
	return jws.CompactSerialize()
}

// Verify checks token's signature against the loaded verification keys,
// following the teacher's StorageKeySet pattern. A token carrying a kid is
// checked against that key only and fails if the kid is unknown; a token
// without a kid is tried against every known key.
func (m *Manager) Verify(token string) ([]byte, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, errors.Wrap(err, "parse signed token")
	}

	if m.algorithm == HS256 {
		return jws.Verify(m.hsSecret)
	}

	keyID := ""
	for _, sig := range jws.Signatures {
		keyID = sig.Header.KeyID
		break
	}

	m.mu.RLock()
	candidates := make(map[string]*rsa.PublicKey, len(m.verifier))
	for k, v := range m.verifier {
		candidates[k] = v
	}
	m.mu.RUnlock()

	if keyID != "" {
		if key, ok := candidates[keyID]; ok {
			if payload, err := jws.Verify(key); err == nil {
				return payload, nil
			}
		}
		return nil, ErrFailedVerify
	}
	for _, key := range candidates {
		if payload, err := jws.Verify(key); err == nil {
			return payload, nil
		}
	}
	return nil, ErrFailedVerify
}

func generateKey() (*rsa.PrivateKey, string, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, "", errors.Wrap(err, "generate rsa key")
	}
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return nil, "", errors.Wrap(err, "generate key id")
	}
	return priv, hex.EncodeToString(b), nil
}

func mustMarshalPKIX(pub *rsa.PublicKey) []byte {
	b, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// Marshaling a key we just generated cannot fail; a panic here
		// indicates a corrupt runtime, not bad input.
		panic(err)
	}
	return b
}
