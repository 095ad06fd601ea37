// Package api provides the HTTP API server and handlers for the Midas collaboration server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/midasapp/midas-server/internal/ratelimit"
	"github.com/midasapp/midas-server/internal/service"
	"github.com/midasapp/midas-server/internal/store"
)

// Services groups the business services used by the handlers.
type Services struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Tags     *service.TagService
	Projects *service.ProjectService
	Tasks    *service.TaskService
	Likes    *service.LikeService
}

// DocumentCounter reports the size of the tag search index.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// Options tunes the HTTP layer.
type Options struct {
	// CORSOrigins is the browser allow list. Empty allows any origin.
	CORSOrigins []string
	// AuthRequestsPerMinute and AuthBurst limit auth endpoints per client IP.
	AuthRequestsPerMinute int
	AuthBurst             int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	index           DocumentCounter
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates the HTTP server with all middleware and routes configured.
// index may be nil.
func NewServer(st store.Store, index DocumentCounter, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.AuthRequestsPerMinute <= 0 {
		opts.AuthRequestsPerMinute = 20
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 10
	}

	router := chi.NewRouter()
	s := &Server{
		store:    st,
		index:    index,
		services: services,
		router:   router,
		logger:   logger,
		authRateLimiter: ratelimit.New(
			ratelimit.PerInterval(opts.AuthRequestsPerMinute, time.Minute),
			opts.AuthBurst,
			10*time.Minute,
		),
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Midas API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

func (s *Server) setupMiddleware(opts Options) {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Link", "Location"},
		MaxAge:         300,
	}))
	s.router.Use(clientInfoMiddleware)
	s.router.Use(authMiddleware(s.services.Auth))
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerTagRoutes()
	s.registerProjectRoutes()
	s.registerTaskRoutes()
	s.registerLikeRoutes()
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.Log(r.Context(), level, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// bearer marks an operation as accepting a bearer token.
var bearer = []map[string][]string{{"bearer": {}}}
