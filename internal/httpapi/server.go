package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/storage"
)

// ContactService is what the HTTP surface needs from the contact use case.
type ContactService interface {
	SaveContact(ctx context.Context, payload model.SaveContactPayload, lastEvent *model.LastEvent) (*model.Contact, error)
	UpdateContact(ctx context.Context, payload model.UpdateContactPayload) (*model.Contact, error)
	DueFollowups(ctx context.Context) ([]model.Contact, error)
}

// Dependencies are the collaborators of the server. Metrics may be nil.
type Dependencies struct {
	Service  ContactService
	Verifier auth.TokenVerifier
	Health   storage.HealthChecker
	Metrics  http.Handler
	Logger   *zap.Logger
}

// Server is the dashboard and browser-extension API.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *zap.Logger

	service    ContactService
	verifier   auth.TokenVerifier
	health     storage.HealthChecker
	limiter    *LimiterStore
	cookieName string
}

// NewServer builds the router with every route and middleware attached.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		router:     mux.NewRouter(),
		logger:     log.Named("http"),
		service:    deps.Service,
		verifier:   deps.Verifier,
		health:     deps.Health,
		cookieName: cfg.Auth.CookieName,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = NewLimiterStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
	}

	s.router.Use(s.requestIDMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	if deps.Metrics != nil {
		s.router.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware, s.authMiddleware)
	api.HandleFunc("/contact/save", s.handleSave).Methods(http.MethodPost)
	api.HandleFunc("/contact/update", s.handleUpdate).Methods(http.MethodPost, http.MethodPatch)
	api.HandleFunc("/followups", s.handleFollowups).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
