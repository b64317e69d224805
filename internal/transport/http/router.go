package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"witnessgate/internal/batch"
	"witnessgate/internal/config"
	"witnessgate/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the management surface spec.md §6 describes: the
// read-only device/submission/pet projections, a manual batch-submit
// trigger, and an unauthenticated health probe.
func NewRouter(st *store.Store, cfg config.ServerConfig, submitter *batch.Submitter) *chi.Mux {
	adminHandlers := NewAdminHandlers(st, submitter)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
		r.Get("/devices", adminHandlers.Devices())
		r.Get("/submissions", adminHandlers.Submissions())
		r.Get("/pets", adminHandlers.Pets())
		r.Post("/batch/run", adminHandlers.RunBatch())
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
