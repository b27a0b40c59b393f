package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	appgame "tori-server/internal/app/game"
	"tori-server/internal/config"
	"tori-server/internal/store"
	"tori-server/internal/token"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *appgame.Service, st *store.Store, tokens *token.Issuer, cfg config.ServerConfig) *chi.Mux {
	gameHandlers := NewGameHandlers(svc, tokens)
	healthHandlers := NewHealthHandlers(st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", healthHandlers.Health())

	r.Route("/game", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Post("/loading", gameHandlers.Loading())
		r.Post("/start", gameHandlers.GameStart())
		r.Post("/playdata", gameHandlers.PlayData())
		r.Post("/ranking", gameHandlers.Ranking())
		r.Post("/end", gameHandlers.GameEnd())
		r.Post("/quit", gameHandlers.GameQuit())
		r.Post("/result", gameHandlers.Result())
	})

	r.Route("/debug", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
		r.Get("/vars", expvar.Handler().ServeHTTP)
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
