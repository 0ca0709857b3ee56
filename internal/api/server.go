// Package api serves the catalog, client insights and ranked recommendations
// over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/cache"
	"github.com/sells-group/portfolio-advisor/internal/metrics"
	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/ranking"
	"github.com/sells-group/portfolio-advisor/internal/registry"
	"github.com/sells-group/portfolio-advisor/internal/store"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 4 << 20

// Server holds the API's dependencies.
type Server struct {
	catalog     store.CatalogRepository
	insights    store.InsightRepository
	ranker      *ranking.Ranker
	cache       *cache.RankingCache
	metrics     *metrics.Metrics
	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithCache serves repeated rankings from a Redis cache.
func WithCache(c *cache.RankingCache) Option {
	return func(s *Server) { s.cache = c }
}

// WithMetrics instruments requests and mounts GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// New builds a Server. A nil ranker uses ranking defaults.
func New(catalog store.CatalogRepository, insights store.InsightRepository, ranker *ranking.Ranker, opts ...Option) *Server {
	if ranker == nil {
		ranker = ranking.New()
	}
	s := &Server{
		catalog:     catalog,
		insights:    insights,
		ranker:      ranker,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/offerings", s.handleListOfferings)
		r.Get("/clients", s.handleListClients)
		r.Get("/clients/{client}/recommendations", s.handleRecommendations)
		r.Post("/rank", s.handleRank)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps an error to a status code. Internal errors are logged
// and reported without detail.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *registry.SchemaError
	switch {
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &schemaErr), model.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
