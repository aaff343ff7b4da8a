// Package idp abstracts the single external identity provider this server
// delegates authentication to. It is intentionally adapted from the
// teacher's connector.Connector/githubConnector shape but collapsed to the
// one GitHub implementation the spec requires (see DESIGN.md for why
// additional connectors are out of scope).
package idp

import (
	"context"
	"net/http"
)

// Identity is what the IdP round trip resolves to: enough to mint the
// local access token and authorization code.
type Identity struct {
	// Subject is a stable, IdP-namespaced identifier such as "gh:1234",
	// never the mutable login/username.
	Subject  string
	Username string
	Email    string
}

// Client is implemented by the upstream identity provider integration.
// AuthCodeURL and HandleCallback bracket the standard OAuth2 authorization
// code round trip; HandleCallback does the token exchange plus whatever
// user-info fetch the provider requires to produce an Identity.
type Client interface {
	// AuthCodeURL returns the URL to redirect the user-agent to, with state
	// as the opaque value echoed back on callback.
	AuthCodeURL(state string) string

	// HandleCallback completes the round trip for an incoming callback
	// request, exchanging the authorization code for a token and resolving
	// the authenticated Identity.
	HandleCallback(ctx context.Context, r *http.Request) (Identity, error)
}
