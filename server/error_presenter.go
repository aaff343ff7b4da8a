package server

import (
	"net/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/oautherrors"
)

// errorPresenter implements the two response shapes spec.md §4.10 requires:
// machine-readable JSON error bodies for the protocol endpoints, and
// minimal cache-controlled HTML pages for human flows with no trustworthy
// redirect URI. Grounded in the teacher's error.go/errors.go pair, with the
// JSON half delegated to internal/oautherrors so both halves of the server
// produce the identical error-code vocabulary of spec §7.
type errorPresenter struct {
	tmpl *templates
}

func newErrorPresenter(tmpl *templates) *errorPresenter {
	return &errorPresenter{tmpl: tmpl}
}

// writeJSON emits an RFC 6749/7591-shaped error body.
func (p *errorPresenter) writeJSON(w http.ResponseWriter, code, description string, status int) {
	oautherrors.WriteJSON(w, oautherrors.New(code, description), status)
}

// redirect 302s back to a known-good redirect_uri with error/state query
// parameters, per RFC 6749 §4.1.2.1. Callers MUST only call this once the
// redirect_uri has been validated against the client's registration.
func (p *errorPresenter) redirect(w http.ResponseWriter, r *http.Request, redirectURI, code, description, state string) {
	oautherrors.RedirectWithError(w, r, redirectURI, oautherrors.New(code, description), state)
}

// page renders the human-facing /error fallback for failures where no
// redirect_uri can be trusted: an unknown client_id, an unregistered
// redirect_uri, or an expired/unknown authorization state.
func (p *errorPresenter) page(w http.ResponseWriter, status int, title, description string) {
	p.tmpl.renderError(w, status, title, description)
}

// success renders the human-facing /success page.
func (p *errorPresenter) success(w http.ResponseWriter, message string) {
	p.tmpl.renderSuccess(w, message)
}
