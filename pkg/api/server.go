// Package api exposes the portal services over HTTP as JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"intranet-portal/pkg/auth"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/manual"
	"intranet-portal/pkg/poll"
	"intranet-portal/pkg/treasury"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server routes HTTP requests to the portal services.
type Server struct {
	treasury *treasury.Service
	manual   *manual.Service
	polls    *poll.Service
	auth     *auth.Service
	tokens   *auth.Tokens
	ping     func(ctx context.Context) error

	router *mux.Router
	server *http.Server
	config ServerConfig
	logger *logging.Logger
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration

	// CookieName carries the session token (default: portal_session)
	CookieName string

	// SecureCookies marks the session cookie Secure; enable behind TLS
	SecureCookies bool

	// MaxUploadBytes bounds a multipart attachment upload
	MaxUploadBytes int64
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:        ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		CookieName:     auth.DefaultCookieName,
		MaxUploadBytes: manual.DefaultMaxUploadBytes,
	}
}

// Dependencies wires a Server. The four services and Tokens are required.
type Dependencies struct {
	Treasury *treasury.Service
	Manual   *manual.Service
	Polls    *poll.Service
	Auth     *auth.Service
	Tokens   *auth.Tokens

	// Ping checks the backing store for /health; nil skips the check.
	Ping func(ctx context.Context) error

	// Registry receives the HTTP metrics and is served at /metrics. A
	// fresh registry is used when nil.
	Registry *prometheus.Registry

	Logger *logging.Logger
}

// NewServer creates the API server and its routes.
func NewServer(deps Dependencies, config ServerConfig) (*Server, error) {
	if config.CookieName == "" {
		config.CookieName = auth.DefaultCookieName
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = manual.DefaultMaxUploadBytes
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNoOpLogger()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	httpMetrics := NewHTTPMetrics("portal")
	if err := httpMetrics.Register(deps.Registry); err != nil {
		return nil, err
	}

	s := &Server{
		treasury: deps.Treasury,
		manual:   deps.Manual,
		polls:    deps.Polls,
		auth:     deps.Auth,
		tokens:   deps.Tokens,
		ping:     deps.Ping,
		config:   config,
		logger:   deps.Logger.Named("api"),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "Not found.", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
	})

	r.Use(requestID, s.recoverer, httpMetrics.Middleware(s.logger))
	r.Use(auth.Middleware(deps.Tokens, config.CookieName, deps.Logger))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/users/pending", s.handlePendingUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/approve", s.handleApproveUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/reject", s.handleRejectUser).Methods(http.MethodPost)

	r.HandleFunc("/treasury", s.handleLedgerIndex).Methods(http.MethodGet)
	r.HandleFunc("/treasury", s.handleTransactionStore).Methods(http.MethodPost)
	r.HandleFunc("/treasury/refresh", s.handleLedgerRefresh).Methods(http.MethodGet)
	r.HandleFunc("/treasury/new", s.handleTransactionNew).Methods(http.MethodGet)
	r.HandleFunc("/treasury/export.xlsx", s.handleLedgerExport).Methods(http.MethodGet)
	r.HandleFunc("/treasury/{id}", s.handleTransactionEdit).Methods(http.MethodGet)
	r.HandleFunc("/treasury/{id}", s.handleTransactionUpdate).Methods(http.MethodPut, http.MethodPost)
	r.HandleFunc("/treasury/{id}", s.handleTransactionDelete).Methods(http.MethodDelete)
	r.HandleFunc("/treasury/{id}/status", s.handleTransactionStatus).Methods(http.MethodPost)

	r.HandleFunc("/manual", s.handleArticleList).Methods(http.MethodGet)
	r.HandleFunc("/manual", s.handleArticleCreate).Methods(http.MethodPost)
	r.HandleFunc("/manual/preview", s.handleArticlePreview).Methods(http.MethodPost)
	r.HandleFunc("/manual/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/manual/{id}", s.handleArticleShow).Methods(http.MethodGet)
	r.HandleFunc("/manual/{id}", s.handleArticleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/manual/{id}", s.handleArticleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/manual/{id}/attachments", s.handleAttachmentList).Methods(http.MethodGet)
	r.HandleFunc("/manual/{id}/attachments", s.handleAttachmentUpload).Methods(http.MethodPost)
	r.HandleFunc("/manual/{id}/attachments/{aid}", s.handleAttachmentDownload).Methods(http.MethodGet)
	r.HandleFunc("/manual/{id}/attachments/{aid}", s.handleAttachmentDelete).Methods(http.MethodDelete)

	r.HandleFunc("/polls", s.handlePollList).Methods(http.MethodGet)
	r.HandleFunc("/polls", s.handlePollCreate).Methods(http.MethodPost)
	r.HandleFunc("/polls/{id}", s.handlePollShow).Methods(http.MethodGet)
	r.HandleFunc("/polls/{id}/vote", s.handlePollVote).Methods(http.MethodPost)
	r.HandleFunc("/polls/{id}/close", s.handlePollClose).Methods(http.MethodPost)

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server in a goroutine. Listener failures other
// than a clean shutdown are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports liveness and, when configured, store reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			response["status"] = "unhealthy"
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	writeJSON(w, http.StatusOK, response)
}
