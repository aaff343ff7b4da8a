package server

import (
	"context"
	"net/http"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	gosundheithttp "github.com/AppsFlyer/go-sundheit/http"

	"github.com/atrawog/mcp-oauth-gateway/internal/keymanager"
	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// newHealth wires a liveness check exercising the Store and KeyManager,
// grounded directly in the teacher's cmd/dex/serve.go gosundheit wiring
// (storage.NewCustomHealthCheckFunc registered as a checks.CustomCheck).
// It is not named in the spec's HTTP surface table, but a deployed service
// still needs a probe target for its own orchestration, per SPEC_FULL.md's
// supplemented-features note.
func newHealth(st *store.Store, keys *keymanager.Manager) gosundheit.Health {
	h := gosundheit.New()

	h.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "store",
			CheckFunc: func(ctx context.Context) (interface{}, error) {
				_, err := st.GetClient(ctx, "__healthcheck__")
				if err != nil && err != store.ErrNotFound {
					return nil, err
				}
				return "ok", nil
			},
		},
		ExecutionPeriod:  30 * time.Second,
		InitiallyPassing: true,
	})

	h.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "signing_key",
			CheckFunc: func(ctx context.Context) (interface{}, error) {
				if _, err := keys.Sign([]byte("healthcheck")); err != nil {
					return nil, err
				}
				return "ok", nil
			},
		},
		ExecutionPeriod:  30 * time.Second,
		InitiallyPassing: true,
	})

	return h
}

// healthzHandler exposes h as a JSON document (200 once every check has
// passed, 503 otherwise), using the library's own handler rather than
// hand-rolling a result encoder.
func healthzHandler(h gosundheit.Health) http.Handler {
	return gosundheithttp.HandleHealthJSON(h)
}
