// Package policy decides, after the IdP has authenticated a user, whether
// that identity is allowed to receive a token at all. It is shaped after
// the teacher's middleware.Middleware chain-of-responsibility interface,
// collapsed to the single allow/deny decision this server needs instead of
// a general identity-transforming pipeline.
package policy

import (
	"context"
	"strings"

	"github.com/atrawog/mcp-oauth-gateway/internal/idp"
)

// Decision is implemented by anything that can approve or reject an
// authenticated identity before a code or token is issued for it.
type Decision interface {
	Allow(ctx context.Context, identity idp.Identity) error
}

// ErrDenied is returned by Allow when the identity does not satisfy policy.
type ErrDenied struct {
	Reason string
}

func (e *ErrDenied) Error() string {
	return "policy: access denied: " + e.Reason
}

// AllowAll grants access to every authenticated identity. cmd/authd uses it
// when the configured allow-list is exactly "*".
type AllowAll struct{}

// Allow implements Decision.
func (AllowAll) Allow(context.Context, idp.Identity) error { return nil }

// UsernameAllowList grants access only to usernames on the list (or
// matching a trailing "*" wildcard prefix), case-insensitively.
type UsernameAllowList struct {
	patterns []string
}

// NewUsernameAllowList builds an allow-list from a list of exact usernames
// or "prefix*" wildcard patterns.
func NewUsernameAllowList(patterns []string) *UsernameAllowList {
	normalized := make([]string, len(patterns))
	for i, p := range patterns {
		normalized[i] = strings.ToLower(p)
	}
	return &UsernameAllowList{patterns: normalized}
}

// Allow implements Decision.
func (a *UsernameAllowList) Allow(_ context.Context, identity idp.Identity) error {
	username := strings.ToLower(identity.Username)
	for _, pattern := range a.patterns {
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(username, strings.TrimSuffix(pattern, "*")) {
				return nil
			}
			continue
		}
		if username == pattern {
			return nil
		}
	}
	return &ErrDenied{Reason: "username " + identity.Username + " is not on the allow-list"}
}
