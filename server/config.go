// Package server wires the components described in the specification's
// component design into an HTTP API: discovery, dynamic client
// registration, the authorization/token state machine, and the
// forward-auth verifier. Configuration loading follows the teacher's
// fail-fast cmd/dex validation, re-expressed over spf13/viper's
// AutomaticEnv binding instead of a YAML file, matching how
// stacklok/toolhive configures an auth server from its environment.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
)

// Config is the full, validated set of environment-sourced settings this
// server needs to start. No field has a silent default that weakens
// security: a missing required value fails Load outright.
type Config struct {
	// IssuerURL is this server's own base URL; it is the "iss"/"aud" claim
	// on every minted access token and the prefix for every absolute URL in
	// the discovery document.
	IssuerURL string
	// ListenAddr is the address the HTTP server binds, e.g. ":8080".
	ListenAddr string

	// GitHubClientID/GitHubClientSecret authenticate this server to GitHub's
	// OAuth2 authorization-code flow.
	GitHubClientID     string
	GitHubClientSecret string
	// GitHubRequestOrgScope additionally requests GitHub's read:org scope.
	// The access policy matches logins only; org membership is not checked.
	GitHubRequestOrgScope bool

	// SigningAlgorithm selects RS256 (default, production) or HS256
	// (bootstrap only; logs a warning).
	SigningAlgorithm keymanager.Algorithm
	// HS256Secret is required only when SigningAlgorithm is HS256.
	HS256Secret string
	// KeyRotationFrequency is stamped into the persisted signing key set's
	// NextRotation field for forward compatibility; this key manager never
	// rotates on its own (see internal/keymanager).
	KeyRotationFrequency time.Duration

	// AccessTokenLifetime bounds how long a minted access token is valid,
	// read from ACCESS_TOKEN_LIFETIME_SECONDS; when unset it defaults to
	// 1800 seconds (30 minutes, see DESIGN.md).
	AccessTokenLifetime time.Duration
	// RefreshTokenRotationEnabled selects whether /token's refresh_token
	// grant rotates the presented token or returns it unchanged.
	RefreshTokenRotationEnabled bool

	// ClientRegistrationLifetime is how long a dynamically registered
	// client remains valid; 0 means registrations never expire.
	ClientRegistrationLifetime time.Duration

	// AllowedLogins is the parsed form of ACCESS_POLICY_ALLOWED_LOGINS: a
	// list of exact logins or "prefix*" wildcards, or ["*"] to allow any
	// authenticated GitHub identity.
	AllowedLogins []string

	// StoreBackend selects "memory" or "redis".
	StoreBackend string
	// RedisURL configures the redis backend; required when StoreBackend is
	// "redis".
	RedisURL string

	// ProtocolVersion is echoed verbatim in the discovery document so
	// clients can detect which revision of this protocol surface they're
	// talking to.
	ProtocolVersion string

	// IdPRequestTimeout bounds every outbound call to GitHub.
	IdPRequestTimeout time.Duration

	// LogFormat selects "text" or "json" for the startup logger.
	LogFormat string
}

// Load reads the configuration surface from the environment (via viper's
// AutomaticEnv), validates it, and returns a ready-to-use Config. It fails
// fast, matching the teacher's cmd/dex config validation, rather than
// starting with a value that would let an insecure default slip through.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("signing_algorithm", "RS256")
	v.SetDefault("access_token_lifetime_seconds", 1800)
	v.SetDefault("refresh_token_rotation_enabled", true)
	v.SetDefault("client_registration_lifetime_seconds", 0)
	v.SetDefault("store_backend", "memory")
	v.SetDefault("protocol_version", "2025-06-18")
	v.SetDefault("key_rotation_frequency_seconds", 24*60*60)
	v.SetDefault("idp_request_timeout_seconds", 10)
	v.SetDefault("log_format", "text")
	v.SetDefault("github_request_org_scope", false)

	cfg := Config{
		IssuerURL:                   v.GetString("issuer_url"),
		ListenAddr:                  v.GetString("listen_addr"),
		GitHubClientID:              v.GetString("github_client_id"),
		GitHubClientSecret:          v.GetString("github_client_secret"),
		GitHubRequestOrgScope:       v.GetBool("github_request_org_scope"),
		SigningAlgorithm:            keymanager.Algorithm(strings.ToUpper(v.GetString("signing_algorithm"))),
		HS256Secret:                 v.GetString("hs256_secret"),
		KeyRotationFrequency:        time.Duration(v.GetInt64("key_rotation_frequency_seconds")) * time.Second,
		AccessTokenLifetime:         time.Duration(v.GetInt64("access_token_lifetime_seconds")) * time.Second,
		RefreshTokenRotationEnabled: v.GetBool("refresh_token_rotation_enabled"),
		ClientRegistrationLifetime:  time.Duration(v.GetInt64("client_registration_lifetime_seconds")) * time.Second,
		AllowedLogins:               parseAllowList(v.GetString("access_policy_allowed_logins")),
		StoreBackend:                strings.ToLower(v.GetString("store_backend")),
		RedisURL:                    v.GetString("redis_url"),
		ProtocolVersion:             v.GetString("protocol_version"),
		IdPRequestTimeout:           time.Duration(v.GetInt64("idp_request_timeout_seconds")) * time.Second,
		LogFormat:                   v.GetString("log_format"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseAllowList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) validate() error {
	var missing []string
	if c.IssuerURL == "" {
		missing = append(missing, "ISSUER_URL")
	}
	if c.GitHubClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}
	if c.GitHubClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}
	if len(c.AllowedLogins) == 0 {
		missing = append(missing, "ACCESS_POLICY_ALLOWED_LOGINS")
	}
	if c.StoreBackend == "redis" && c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.SigningAlgorithm == keymanager.HS256 && c.HS256Secret == "" {
		missing = append(missing, "HS256_SECRET")
	}
	if len(missing) > 0 {
		return errors.Errorf("server: missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.SigningAlgorithm != keymanager.RS256 && c.SigningAlgorithm != keymanager.HS256 {
		return fmt.Errorf("server: unsupported SIGNING_ALGORITHM %q", c.SigningAlgorithm)
	}
	if c.StoreBackend != "memory" && c.StoreBackend != "redis" {
		return fmt.Errorf("server: unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}
