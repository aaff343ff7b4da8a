package store

import "time"

// ClientRegistration is the persisted form of an RFC 7591/7592 client
// registration. It round-trips losslessly through JSON so it can live as an
// opaque value in the KV backend.
type ClientRegistration struct {
	ClientID                string    `json:"client_id"`
	ClientSecret            string    `json:"client_secret,omitempty"`
	ClientName              string    `json:"client_name,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	Scope                   string    `json:"scope,omitempty"`
	ClientURI               string    `json:"client_uri,omitempty"`
	LogoURI                 string    `json:"logo_uri,omitempty"`
	Contacts                []string  `json:"contacts,omitempty"`
	TosURI                  string    `json:"tos_uri,omitempty"`
	PolicyURI               string    `json:"policy_uri,omitempty"`
	SoftwareID              string    `json:"software_id,omitempty"`
	SoftwareVersion         string    `json:"software_version,omitempty"`
	RegistrationAccessToken string    `json:"registration_access_token"`
	RegistrationClientURI   string    `json:"registration_client_uri"`
	IssuedAt                time.Time `json:"issued_at"`
	ExpiresAt               time.Time `json:"expires_at,omitempty"` // zero means never
}

// Expired reports whether the registration's lifetime has elapsed as of now.
func (c ClientRegistration) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.After(c.ExpiresAt)
}

// AuthRequestState is the short-lived state created when /authorize is
// accepted and consumed atomically when /callback arrives.
type AuthRequestState struct {
	State               string    `json:"state"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scopes              []string  `json:"scopes"`
	CodeChallenge       string    `json:"code_challenge"`
	CodeChallengeMethod string    `json:"code_challenge_method"`
	// ClientState is the client's own "state" query parameter from
	// /authorize, echoed back verbatim on the redirect to RedirectURI once
	// the flow concludes (successfully or not). Distinct from IdPState,
	// which is this server's own state value used with the upstream IdP.
	ClientState string    `json:"client_state"`
	IdPState    string    `json:"idp_state"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthCode is the opaque, exactly-once-redeemable authorization code minted
// at the end of a successful /callback.
type AuthCode struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scopes              []string  `json:"scopes"`
	CodeChallenge       string    `json:"code_challenge"`
	CodeChallengeMethod string    `json:"code_challenge_method"`
	Subject             string    `json:"sub"`
	Username            string    `json:"username"`
	Email               string    `json:"email,omitempty"`
	IssuedAt            time.Time `json:"issued_at"`
}

// AccessTokenRecord is the minimal metadata kept for a live access token,
// indexed by jti. Its presence is what makes a structurally valid JWS a
// "live" token; its absence revokes the token regardless of exp.
type AccessTokenRecord struct {
	JTI      string    `json:"jti"`
	ClientID string    `json:"client_id"`
	Subject  string    `json:"sub"`
	Scope    string    `json:"scope"`
	Expiry   time.Time `json:"exp"`
}

// RefreshToken is bound to the (client, subject, scope) tuple it was minted
// for and never valid for a different client.
type RefreshToken struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"sub"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
	Expiry    time.Time `json:"exp"`
}

// VerificationKey is a retired signing key kept around only so tokens it
// already signed keep verifying until they expire. KeyManager never retires
// a key itself (rotation is out of scope for v1), so this list is always
// empty today; it exists so a future rotating KeyManager can populate it
// without a storage schema change.
type VerificationKey struct {
	KeyID     string    `json:"kid"`
	PublicKey []byte    `json:"public_key"` // PKIX DER
	Expiry    time.Time `json:"expiry"`
}

// SigningKeySet is the persisted form of the signer's current key, shared
// across replicas so any instance can verify a token regardless of which
// one minted it. VerificationKeys and NextRotation are unused by the
// current, non-rotating KeyManager and are only stamped/read for forward
// compatibility with a future rotating one.
type SigningKeySet struct {
	SigningKeyID      string            `json:"signing_key_id"`
	SigningPrivateKey []byte            `json:"signing_private_key"` // PKCS1 DER
	SigningPublicKey  []byte            `json:"signing_public_key"`  // PKIX DER
	VerificationKeys  []VerificationKey `json:"verification_keys,omitempty"`
	NextRotation      time.Time         `json:"next_rotation"`
}

// UserTokenIndex is the set of jtis currently live for a given subject, used
// to support bulk revocation of all of a user's tokens.
type UserTokenIndex struct {
	Subject string   `json:"sub"`
	JTIs    []string `json:"jtis"`
}

func (u *UserTokenIndex) add(jti string) {
	for _, existing := range u.JTIs {
		if existing == jti {
			return
		}
	}
	u.JTIs = append(u.JTIs, jti)
}

func (u *UserTokenIndex) remove(jti string) {
	out := u.JTIs[:0]
	for _, existing := range u.JTIs {
		if existing != jti {
			out = append(out, existing)
		}
	}
	u.JTIs = out
}
