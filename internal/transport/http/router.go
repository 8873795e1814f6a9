package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"voble/internal/config"
	"voble/internal/mcpserver"
	"voble/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc GameService, st Pinger, cfg config.ServerConfig, version string) *chi.Mux {
	mcpSrv := mcpserver.New(svc, version)
	wsSrv := ws.NewServer(svc)

	gameHandlers := NewGameHandlers(svc)
	adminHandlers := NewAdminHandlers(st, version)

	apiLog := APILogMiddleware(svc.Player().String())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLog).Get("/healthz", adminHandlers.Health())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.With(apiLog).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(apiLog).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(apiLog).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(apiLog).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLog)
		r.Get("/period", gameHandlers.Period())

		r.Route("/game", func(r chi.Router) {
			r.Get("/state", gameHandlers.State())
			r.Post("/start", gameHandlers.Start())
			r.Post("/retry", gameHandlers.Retry())
			r.Post("/phase", gameHandlers.SetPhase())
			r.Post("/guess", gameHandlers.Guess())
			r.Post("/complete", gameHandlers.Complete())
			r.Get("/ws", wsSrv.HandleWS)
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	fmt.Print(RouteTable(r))
}

// RouteTable lists every registered route, sorted by path then method.
func RouteTable(r chi.Router) string {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return ""
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
	return b.String()
}
