// Package clients implements RFC 7591 dynamic client registration and the
// RFC 7592 client configuration protocol on top of internal/store, adapted
// from the teacher's ClientManager/client_registration.go shape.
package clients

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// ErrInvalidRedirectURI is returned when a redirect_uri is neither https
// nor a loopback (127.0.0.1/[::1]/localhost) http URI, per RFC 8252 §7.3.
var ErrInvalidRedirectURI = errors.New("clients: redirect_uri must be https or a loopback http URI")

// ErrInvalidClientMetadata is returned for any other malformed registration
// request field.
var ErrInvalidClientMetadata = errors.New("clients: invalid client metadata")

// ErrClientNotFound is returned by Get/Update/Delete for an unknown
// client_id.
var ErrClientNotFound = errors.New("clients: client not found")

// ErrRegistrationAccessTokenMismatch is returned when the RFC 7592
// management token presented does not match the one issued at registration.
var ErrRegistrationAccessTokenMismatch = errors.New("clients: registration access token does not match")

var supportedGrantTypes = map[string]bool{
	"authorization_code": true,
	"refresh_token":      true,
}

var supportedResponseTypes = map[string]bool{
	"code": true,
}

var supportedAuthMethods = map[string]bool{
	"none":                true,
	"client_secret_post":  true,
	"client_secret_basic": true,
}

// Metadata is the subset of RFC 7591 client metadata this server accepts on
// registration. Fields outside this set are ignored (neither stored nor
// echoed back), matching RFC 7591 §2's "ignore unrecognized metadata" rule.
type Metadata struct {
	RedirectURIs            []string
	ClientName              string
	GrantTypes              []string
	ResponseTypes           []string
	TokenEndpointAuthMethod string
	Scope                   string
	ClientURI               string
	LogoURI                 string
	Contacts                []string
	TosURI                  string
	PolicyURI               string
	SoftwareID              string
	SoftwareVersion         string
}

// Registry implements client registration, lookup, update and deletion.
type Registry struct {
	store          *store.Store
	registrationTTL time.Duration // 0 means registrations never expire
}

// NewRegistry constructs a Registry. registrationTTL of 0 means registered
// clients never expire, matching the spec's default.
func NewRegistry(st *store.Store, registrationTTL time.Duration) *Registry {
	return &Registry{store: st, registrationTTL: registrationTTL}
}

// Register validates and persists a new client, returning its full
// registration including the client_secret and registration_access_token.
func (r *Registry) Register(ctx context.Context, m Metadata) (store.ClientRegistration, error) {
	if err := validate(&m); err != nil {
		return store.ClientRegistration{}, err
	}

	now := time.Now()
	reg := store.ClientRegistration{
		ClientID:                tokens.NewClientID(),
		ClientName:              m.ClientName,
		RedirectURIs:            m.RedirectURIs,
		GrantTypes:              m.GrantTypes,
		ResponseTypes:           m.ResponseTypes,
		TokenEndpointAuthMethod: m.TokenEndpointAuthMethod,
		Scope:                   m.Scope,
		ClientURI:               m.ClientURI,
		LogoURI:                 m.LogoURI,
		Contacts:                m.Contacts,
		TosURI:                  m.TosURI,
		PolicyURI:               m.PolicyURI,
		SoftwareID:              m.SoftwareID,
		SoftwareVersion:         m.SoftwareVersion,
		RegistrationAccessToken: tokens.NewRegistrationAccessToken(),
		IssuedAt:                now,
	}
	if reg.TokenEndpointAuthMethod != "none" {
		reg.ClientSecret = tokens.NewClientSecret()
	}
	if r.registrationTTL > 0 {
		reg.ExpiresAt = now.Add(r.registrationTTL)
	}

	if err := r.store.PutClientIfAbsent(ctx, reg, r.registrationTTL); err != nil {
		return store.ClientRegistration{}, err
	}
	return reg, nil
}

// Get returns the registration for clientID.
func (r *Registry) Get(ctx context.Context, clientID string) (store.ClientRegistration, error) {
	reg, err := r.store.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reg, ErrClientNotFound
		}
		return reg, err
	}
	if reg.Expired(time.Now()) {
		return reg, ErrClientNotFound
	}
	return reg, nil
}

// Authorize returns the registration for clientID after checking that
// registrationAccessToken matches the one issued to it, implementing the
// RFC 7592 bearer-auth requirement for the client configuration endpoint.
func (r *Registry) Authorize(ctx context.Context, clientID, registrationAccessToken string) (store.ClientRegistration, error) {
	reg, err := r.Get(ctx, clientID)
	if err != nil {
		return reg, err
	}
	if !constantTimeEqual(reg.RegistrationAccessToken, registrationAccessToken) {
		return store.ClientRegistration{}, ErrRegistrationAccessTokenMismatch
	}
	return reg, nil
}

// constantTimeEqual reports whether a and b are equal without leaking their
// contents through timing, matching the treatment authenticateClient gives
// client secrets. A length mismatch returns false immediately.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Update overwrites the mutable metadata fields of an already-authorized
// registration, keeping its client_id, client_secret and
// registration_access_token unchanged.
func (r *Registry) Update(ctx context.Context, existing store.ClientRegistration, m Metadata) (store.ClientRegistration, error) {
	if err := validate(&m); err != nil {
		return store.ClientRegistration{}, err
	}
	existing.ClientName = m.ClientName
	existing.RedirectURIs = m.RedirectURIs
	existing.GrantTypes = m.GrantTypes
	existing.ResponseTypes = m.ResponseTypes
	existing.TokenEndpointAuthMethod = m.TokenEndpointAuthMethod
	existing.Scope = m.Scope
	existing.ClientURI = m.ClientURI
	existing.LogoURI = m.LogoURI
	existing.Contacts = m.Contacts
	existing.TosURI = m.TosURI
	existing.PolicyURI = m.PolicyURI
	existing.SoftwareID = m.SoftwareID
	existing.SoftwareVersion = m.SoftwareVersion

	ttl := time.Duration(0)
	if !existing.ExpiresAt.IsZero() {
		ttl = time.Until(existing.ExpiresAt)
	}
	if err := r.store.PutClient(ctx, existing, ttl); err != nil {
		return store.ClientRegistration{}, err
	}
	return existing, nil
}

// Delete removes a client's registration entirely.
func (r *Registry) Delete(ctx context.Context, clientID string) error {
	return r.store.DeleteClient(ctx, clientID)
}

func validate(m *Metadata) error {
	if len(m.RedirectURIs) == 0 {
		return ErrInvalidClientMetadata
	}
	for _, uri := range m.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return err
		}
	}

	if len(m.GrantTypes) == 0 {
		m.GrantTypes = []string{"authorization_code"}
	}
	for _, gt := range m.GrantTypes {
		if !supportedGrantTypes[gt] {
			return ErrInvalidClientMetadata
		}
	}

	if len(m.ResponseTypes) == 0 {
		m.ResponseTypes = []string{"code"}
	}
	for _, rt := range m.ResponseTypes {
		if !supportedResponseTypes[rt] {
			return ErrInvalidClientMetadata
		}
	}

	if m.TokenEndpointAuthMethod == "" {
		m.TokenEndpointAuthMethod = "client_secret_basic"
	}
	if !supportedAuthMethods[m.TokenEndpointAuthMethod] {
		return ErrInvalidClientMetadata
	}

	return nil
}

// validateRedirectURI enforces RFC 8252 §7.3: redirect URIs must use https,
// or be a loopback http URI (127.0.0.1, ::1, or localhost) for native
// clients that can't host a TLS listener on an ephemeral port.
func validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidRedirectURI
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "127.0.0.1" || host == "::1" || strings.EqualFold(host, "localhost") {
			return nil
		}
		return ErrInvalidRedirectURI
	default:
		return ErrInvalidRedirectURI
	}
}
