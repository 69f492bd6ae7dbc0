package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/logger"
)

// Server is the strata HTTP API server.
type Server struct {
	eng     *engine.Engine
	router  chi.Router
	log     *slog.Logger
	version string
	started time.Time
}

// New creates a new Server around the engine.
func New(eng *engine.Engine, version string, log *slog.Logger) *Server {
	s := &Server{
		eng:     eng,
		log:     logger.OrDiscard(log).With(logger.Scope("http")),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/classify", s.handleClassify)
		r.Get("/decay-config", s.handleDecayConfig)

		r.Post("/nodes", s.handleAddNode)
		r.Post("/edges", s.handleAddEdge)
		r.Get("/edges", s.handleGetEdge)
		r.Get("/edges/{edgeID}/relevance", s.handleRelevance)
		r.Post("/edges/{edgeID}/engage", s.handleEngage)

		r.Post("/neighbors", s.handleNeighbors)
		r.Get("/path", s.handlePath)

		r.Post("/reclassify", s.handleReclassify)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.eng.DB.PingContext(r.Context()); err != nil {
		dbOK = false
	}
	schema, _ := s.eng.DB.SchemaVersion()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime":         time.Since(s.started).Seconds(),
		"db":             dbOK,
		"db_path":        s.eng.DB.Path,
		"schema_version": schema,
		"decay_config":   s.eng.Decay.Source(),
	})
}

// requestLogger logs one record per request at debug, or warn for 5xx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.log.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
