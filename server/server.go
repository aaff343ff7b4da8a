package server

import (
	"log/slog"
	"net/http"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atrawog/mcp-oauth-gateway/internal/clients"
	"github.com/atrawog/mcp-oauth-gateway/internal/idp"
	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
	"github.com/atrawog/mcp-oauth-gateway/internal/policy"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
	"github.com/atrawog/mcp-oauth-gateway/internal/tokens"
)

// Server holds every component the HTTP surface dispatches to. It has no
// knowledge of how those components are constructed; that wiring lives in
// New, matching the teacher's server.Server shape in server/server.go.
type Server struct {
	config Config
	logger *slog.Logger

	clients *clients.Registry
	tokens  *tokens.Service
	idp     idp.Client
	policy  policy.Decision
	keys    *keymanager.Manager

	errors    *errorPresenter
	templates *templates
	metrics   *metrics
	health    gosundheit.Health
	registry  *prometheus.Registry
}

// New constructs a Server from its already-built components. Callers (the
// cmd/authd entrypoint) own constructing the Store/KeyManager/GitHubClient;
// New only assembles the HTTP-facing layer on top of them.
func New(cfg Config, logger *slog.Logger, st *store.Store, keys *keymanager.Manager, tokenSvc *tokens.Service, registry *clients.Registry, idpClient idp.Client, decision policy.Decision, reg *prometheus.Registry) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "load templates")
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		clients:   registry,
		tokens:    tokenSvc,
		idp:       idpClient,
		policy:    decision,
		keys:      keys,
		errors:    newErrorPresenter(tmpl),
		templates: tmpl,
		metrics:   newMetrics(reg),
		health:    newHealth(st, keys),
		registry:  reg,
	}
	return s, nil
}

// Router builds the gorilla/mux router serving every endpoint in spec §6's
// HTTP surface table, wrapped in the teacher's request-ID/remote-IP context
// middleware and per-route metrics instrumentation.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()

	doc := buildDiscoveryDocument(s.config.IssuerURL, s.config.ProtocolVersion)
	discovery, err := discoveryHandler(doc)
	if err != nil {
		// doc is a plain struct of strings/slices; marshaling it cannot fail.
		panic(err)
	}

	route := func(path string, methods []string, name string, handler http.HandlerFunc) {
		r.Handle(path, s.metrics.wrap(name, handler)).Methods(methods...)
	}

	route("/register", []string{http.MethodPost}, "register", s.handleRegister)
	route("/register/{client_id}", []string{http.MethodGet, http.MethodPut, http.MethodDelete}, "client_resource", s.handleClientResource)
	route("/authorize", []string{http.MethodGet}, "authorize", s.handleAuthorize)
	route("/callback", []string{http.MethodGet}, "callback", s.handleCallback)
	route("/token", []string{http.MethodPost}, "token", s.handleToken)
	route("/revoke", []string{http.MethodPost}, "revoke", s.handleRevoke)
	route("/introspect", []string{http.MethodPost}, "introspect", s.handleIntrospect)
	route("/verify", []string{http.MethodGet, http.MethodPost, http.MethodHead}, "verify", s.handleVerify)
	route("/.well-known/oauth-authorization-server", []string{http.MethodGet}, "discovery", discovery)
	route("/jwks", []string{http.MethodGet}, "jwks", jwksHandler(s.keys))
	route("/error", []string{http.MethodGet}, "error_page", s.handleErrorPage)
	route("/success", []string{http.MethodGet}, "success_page", s.handleSuccessPage)

	r.Handle("/healthz", healthzHandler(s.health)).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler(s.registry)).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return requestContextMiddleware(cors(r))
}

func (s *Server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := q.Get("title")
	if title == "" {
		title = "Something went wrong"
	}
	s.errors.page(w, http.StatusOK, title, q.Get("description"))
}

func (s *Server) handleSuccessPage(w http.ResponseWriter, r *http.Request) {
	s.errors.success(w, "You may now return to your application.")
}

// requestContextMiddleware stamps every request's context with a fresh
// request ID and its remote IP before the router dispatches it, matching the
// teacher's WithRequestID/WithRemoteIP wrapping in server/server.go.
func requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := withRequestID(r.Context())
		ctx = withRemoteIP(ctx, r.RemoteAddr)
		w.Header().Set("X-Request-Id", RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
