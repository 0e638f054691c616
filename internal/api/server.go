// Package api exposes the dashboard's REST and websocket surface. The
// handlers only parse parameters and serialize JSON; every invariant
// lives in the engine packages.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/getlens/lens/internal/engine"
)

// Server is the dashboard HTTP server.
type Server struct {
	engine *engine.Engine
	hub    *Hub
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// NewServer mounts the dashboard API under basePath and registers the
// live-tail hub as the engine's request notifier.
func NewServer(addr, basePath string, eng *engine.Engine, log zerolog.Logger) *Server {
	s := &Server{
		engine: eng,
		hub:    NewHub(log),
		router: chi.NewRouter(),
		log:    log,
	}
	eng.SetNotify(s.hub.BroadcastRequest)

	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Route(basePath+"/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/requests", s.listRequests)
		r.Get("/queries", s.listQueries)
		r.Get("/queries/grouped", s.groupedQueries)
		r.Get("/queries/{id}/explain", s.explainQuery)
		r.Get("/events", s.listEvents)
		r.Get("/emails", s.listEmails)
		r.Get("/logs", s.listLogs)
		r.Get("/traces", s.listTraces)
		r.Get("/traces/{id}", s.getTrace)

		r.Get("/overview", s.getOverview)
		r.Get("/chart", s.getChart)

		r.Get("/filters", s.listSavedFilters)
		r.Post("/filters", s.createSavedFilter)
		r.Delete("/filters/{id}", s.deleteSavedFilter)
	})
	s.router.Get(basePath+"/live", s.hub.ServeWS)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s
}

// Start runs the hub and serves until Shutdown.
func (s *Server) Start() error {
	go s.hub.Run()
	s.log.Info().Str("addr", s.server.Addr).Msg("dashboard listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and the live-tail hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, used by httptest in the handler tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
