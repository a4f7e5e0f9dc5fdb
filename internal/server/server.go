package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/matching"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/stats"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Session, error)
	Me(ctx context.Context, userID string) (*repository.User, error)
	Verify(token string) (domain.Identity, error)
}

type ListingService interface {
	CreateListing(ctx context.Context, id domain.Identity, in matching.ListingInput) (*matching.ListingView, error)
	ListVisible(ctx context.Context, id domain.Identity) ([]matching.ListingView, error)
	GetListing(ctx context.Context, id domain.Identity, listingID string) (*matching.ListingView, error)
	SubmitRequest(ctx context.Context, id domain.Identity, listingID string, message *string) (*repository.Request, error)
	CompleteListing(ctx context.Context, id domain.Identity, listingID string) (*matching.ListingView, error)
}

type StatsService interface {
	Compute(ctx context.Context, id domain.Identity) (*stats.Stats, error)
}

// ListingReader lets the audit trail record the status a listing had before
// a request touched it.
type ListingReader interface {
	GetListing(ctx context.Context, id string) (*repository.Listing, error)
}

type Server struct {
	auth     AuthService
	listings ListingService
	stats    StatsService
	reader   ListingReader
	logger   *zap.Logger
	server   *http.Server

	AuditManager *AuditManager
	now          func() time.Time
}

func New(authSvc AuthService, listings ListingService, statsSvc StatsService, reader ListingReader, audit *AuditManager, logger *zap.Logger) *Server {
	return &Server{
		auth:         authSvc,
		listings:     listings,
		stats:        statsSvc,
		reader:       reader,
		logger:       logger,
		AuditManager: audit,
		now:          time.Now,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests and the
// audit queue.
func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", zap.String("port", port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.AuditManager.Shutdown(ctx)
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auditLogMiddleware)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet).Name("health")
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost).Name("register")
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost).Name("login")

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet).Name("me")
	authed.HandleFunc("/listings", s.handleListListings).Methods(http.MethodGet).Name("list_listings")
	authed.HandleFunc("/listings", s.handleCreateListing).Methods(http.MethodPost).Name("create_listing")
	authed.HandleFunc("/listings/{id}", s.handleGetListing).Methods(http.MethodGet).Name("get_listing")
	authed.HandleFunc("/listings/{id}/request", s.handleRequestPickup).Methods(http.MethodPost).Name("request_pickup")
	authed.HandleFunc("/listings/{id}/complete", s.handleCompleteListing).Methods(http.MethodPost).Name("complete_listing")
	authed.HandleFunc("/dashboard/stats", s.handleStats).Methods(http.MethodGet).Name("dashboard_stats")

	return r
}
