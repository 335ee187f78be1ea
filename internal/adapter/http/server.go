package http

import (
	"context"
	"net/http"
	"time"

	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/usecase"
	"github.com/gorilla/mux"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	log    logger.Logger
	router *mux.Router
	server *http.Server
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
	AuthRequired bool
}

// UseCases bundles the application services exposed over HTTP
type UseCases struct {
	Audits    *usecase.AuditUseCase
	Responses *usecase.ResponseUseCase
	Standards *usecase.StandardUseCase
	Scoring   *usecase.ScoringUseCase
}

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options carries the optional collaborators of the server
type Options struct {
	Logger      logger.Logger
	Verifier    *TokenVerifier
	RateLimiter RateLimiter
	Health      HealthChecker
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, uc UseCases, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	router := mux.NewRouter()

	NewAuditHandler(uc.Audits, uc.Scoring).RegisterRoutes(router)
	NewResponseHandler(uc.Responses).RegisterRoutes(router)
	NewStandardHandler(uc.Standards).RegisterRoutes(router)
	NewWeightHandler().RegisterRoutes(router)

	router.HandleFunc("/health", healthHandler(opts.Health)).Methods("GET")
	// preflight requests are answered by corsMiddleware
	router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Use(correlationMiddleware)
	router.Use(loggingMiddleware(log))
	router.Use(recoveryMiddleware(log))
	router.Use(corsMiddleware(config.CORSOrigins))
	router.Use(authMiddleware(opts.Verifier, config.AuthRequired))
	if opts.RateLimiter != nil {
		router.Use(rateLimitMiddleware(opts.RateLimiter, log))
	}

	return &Server{
		addr:   ":" + config.Port,
		log:    log,
		router: router,
		server: &http.Server{
			Addr:         ":" + config.Port,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info(context.Background(), "starting HTTP server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, Envelope{
					Status:  false,
					Message: "database unreachable",
					Data:    map[string]string{"status": "degraded"},
				})
				return
			}
		}
		success(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
	}
}
