// Package api serves peer comparisons over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/analysis"
	"github.com/fintech-community/peerbench/engine/config"
	"github.com/fintech-community/peerbench/engine/metrics"
	"github.com/fintech-community/peerbench/engine/schema"
)

// Server provides the HTTP comparison endpoints
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	Handler() http.Handler
}

// server implements the API server
type server struct {
	cfg        *config.ServerConfig
	service    analysis.Service
	validator  *schema.ProfileValidator
	metrics    *metrics.Metrics
	host       *metrics.HostCollector
	log        logrus.FieldLogger
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a new API server instance. m may be nil to disable metrics.
func NewServer(
	cfg *config.ServerConfig,
	service analysis.Service,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) (Server, error) {
	validator, err := schema.NewProfileValidator()
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:       cfg,
		service:   service,
		validator: validator,
		metrics:   m,
		log:       log.WithField("component", "api-server"),
	}

	if host, err := metrics.NewHostCollector(); err == nil {
		s.host = host
	} else {
		s.log.WithError(err).Warn("Host metrics unavailable")
	}

	s.router = s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler with all middleware applied
func (s *server) Handler() http.Handler {
	return s.router
}

// Start starts listening in the background
func (s *server) Start(ctx context.Context) error {
	s.log.Info("Starting API server")

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go func() {
		s.log.WithFields(logrus.Fields{
			"addr":        s.httpServer.Addr,
			"snapshot_id": s.service.SnapshotID(),
		}).Info("API server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("API server failed")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP API server
func (s *server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("Stopping API server")

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("Failed to shutdown API server gracefully")
		return err
	}

	s.log.Info("API server stopped")
	return nil
}

// setupRoutes configures all HTTP routes and middleware
func (s *server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.enableCORS)
	router.Use(s.loggingMiddleware)
	router.Use(s.errorHandlingMiddleware)

	router.HandleFunc("/", s.handleRoot).Methods("GET", "OPTIONS")
	router.HandleFunc("/compare/{clientId}", s.handleCompareByID).Methods("GET", "OPTIONS")
	router.HandleFunc("/compare-by-profile", s.handleCompareByProfile).Methods("POST", "OPTIONS")
	router.HandleFunc("/community", s.handleCommunity).Methods("GET", "OPTIONS")
	router.HandleFunc("/clusters", s.handleClusters).Methods("GET", "OPTIONS")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.cfg.EnableMetrics && s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("No route for %s", r.URL.Path))
	})

	return router
}

// enableCORS adds CORS headers to responses
func (s *server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and records request metrics
func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapper.statusCode,
			"duration_ms": duration.Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request processed")

		if s.metrics != nil {
			s.metrics.ObserveRequest(routeTemplate(r), r.Method, wrapper.statusCode, duration)
		}
	})
}

// errorHandlingMiddleware turns handler panics into a 500 payload
func (s *server) errorHandlingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic in HTTP handler")
				s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// routeTemplate returns the matched route pattern so metric labels stay bounded
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// responseWriterWrapper wraps http.ResponseWriter to capture status codes
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// writeJSONResponse writes a JSON response with the given status code
func (s *server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response with the given status code and message
func (s *server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errorResponse := map[string]interface{}{
		"error":   true,
		"message": message,
		"status":  statusCode,
	}

	s.writeJSONResponse(w, statusCode, errorResponse)
}
