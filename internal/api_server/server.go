package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"

	api "github.com/verifyhub/case-engine/api/v1alpha1"
	"github.com/verifyhub/case-engine/internal/auth"
	"github.com/verifyhub/case-engine/internal/config"
	handlers "github.com/verifyhub/case-engine/internal/handlers/v1alpha1"
	"github.com/verifyhub/case-engine/internal/service"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/pkg/metrics"
	"github.com/verifyhub/case-engine/pkg/middleware"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	caseSrv  *service.CaseService
	listener net.Listener
}

// New returns a new instance of the case api server.
func New(
	cfg *config.Config,
	store store.Store,
	caseService *service.CaseService,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		caseSrv:  caseService,
		listener: listener,
	}
}

// Router builds the full handler chain. /health is served without authentication.
func (s *Server) Router() (http.Handler, error) {
	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth, s.store.Principal())
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.Register(prometheus.DefaultRegisterer)

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*"},
			AllowedMethods:   []string{"GET", "PUT", "POST", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"ETag", "Location"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, api.Health{Status: "ok"})
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticator.Authenticator)
		handlers.NewServiceHandler(s.caseSrv).Routes(r)
	})

	return router, nil
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router, err := s.Router()
	if err != nil {
		return err
	}
	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
