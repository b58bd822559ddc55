// Package web is the HTTP boundary of the agent: request dispatch, page and
// asset endpoints, uploaded file serving and the per-page event stream.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/hyphertext/internal/assets"
	"github.com/codefionn/hyphertext/internal/config"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/orchestrator"
	"github.com/codefionn/hyphertext/internal/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "hyphertext-agent"

// ModelCatalog resolves requested model ids.
type ModelCatalog interface {
	Resolve(modelID string) (string, error)
	Default() string
	Models() []llm.ModelSpec
}

// Submitter queues requests for background processing.
type Submitter interface {
	Submit(req orchestrator.Request) error
}

// Deps are the collaborators of a Server. Blobs and FilesDir are optional;
// without them uploads and file serving are disabled.
type Deps struct {
	Store      store.Store
	Models     ModelCatalog
	Dispatcher Submitter
	Blobs      assets.BlobStore
	FilesDir   string
	Hub        *Hub
	Logger     *logger.Logger
}

// Server represents the web server
type Server struct {
	cfg        config.ServerConfig
	deps       Deps
	router     *httprouter.Router
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates a new web server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Global().WithPrefix("web")
	}
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: httprouter.New(),
		log:    log,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     logger.NewStdLogger(log, slog.LevelError),
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealth)
	s.router.GET("/models", s.handleModels)
	s.router.POST("/agent/run", s.handleAgentRun)

	s.router.POST("/pages", s.handleCreatePage)
	s.router.GET("/pages/:id", s.handleGetPage)
	s.router.GET("/pages/:id/versions", s.handleVersions)
	s.router.GET("/pages/:id/history", s.handleHistory)
	s.router.POST("/pages/:id/assets", s.handleUpload)
	s.router.POST("/pages/:id/messages", s.handlePostMessage)
	s.router.GET("/pages/:id/events", s.handleEvents)
	s.router.GET("/messages/:id", s.handleGetMessage)

	if s.deps.FilesDir != "" {
		s.router.ServeFiles("/files/*filepath", http.Dir(s.deps.FilesDir))
	}
}

// Handler returns the routed handler wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	return s.cors(s.router)
}

// Start starts the hub and serves until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	go s.deps.Hub.Run()

	s.log.Info("web server listening on %s", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections, disconnects event subscribers and
// waits for in-flight handlers until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping web server")
	s.deps.Hub.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) allowedOrigin(origin string) (string, bool) {
	if slices.Contains(s.cfg.AllowedOrigins, "*") {
		return "*", true
	}
	if origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin) {
		return origin, true
	}
	return "", false
}

// cors answers preflight requests and decorates responses for allowed
// origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allow, ok := s.allowedOrigin(r.Header.Get("Origin")); ok {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "600")
			if allow != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
