// Package server exposes the marketplace over HTTP with echo.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/config"
	"github.com/sudo-init-do/quickquid/internal/identity"
	"github.com/sudo-init-do/quickquid/internal/logging"
	"github.com/sudo-init-do/quickquid/internal/marketplace"
	"github.com/sudo-init-do/quickquid/internal/middleware"
	"github.com/sudo-init-do/quickquid/internal/monitoring"
)

// Deps are the collaborators the HTTP layer needs
type Deps struct {
	Marketplace *marketplace.Marketplace
	Auth        *middleware.JWTAuthenticator
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger zerolog.Logger
}

// Server is the HTTP API
type Server struct {
	echo *echo.Echo
	cfg  *config.Config
	mp   *marketplace.Marketplace
	auth *middleware.JWTAuthenticator
	deps Deps
	log  zerolog.Logger
}

func New(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo: e,
		cfg:  cfg,
		mp:   deps.Marketplace,
		auth: deps.Auth,
		deps: deps,
		log:  deps.Logger.With().Str("component", "http").Logger(),
	}

	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler(s.log)

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	if cfg.Monitoring.PrometheusEnabled {
		e.Use(monitoring.MetricsMiddleware())
	}
	e.Use(logging.RequestLogger())
	e.Use(echomw.BodyLimit("1M"))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	e := s.echo

	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	if s.cfg.Monitoring.PrometheusEnabled {
		e.GET("/metrics", monitoring.EchoHandler())
	}

	// Route-level auth keeps unknown paths a plain 404
	optional := s.auth.Optional()
	authed := s.auth.Middleware()
	seller := middleware.RequireRoles(identity.RoleSeller)
	buyer := middleware.RequireRoles(identity.RoleBuyer)

	// Public catalog; a token is honoured so owners can read their drafts
	e.GET("/marketplace/services", s.queryCatalog, optional)
	e.GET("/marketplace/categories", s.listCategories)
	e.GET("/marketplace/services/:id", s.getService, optional)
	e.GET("/marketplace/services/:id/reviews", s.listServiceReviews)
	e.GET("/sellers/:id/reviews", s.listSellerReviews)

	e.PATCH("/user/profile", s.updateProfile, authed)
	e.GET("/user/:id/profile", s.getProfile)

	e.POST("/marketplace/services", s.createService, authed, seller)
	e.GET("/marketplace/services/me", s.listMyServices, authed, seller)
	e.PATCH("/marketplace/services/:id", s.updateService, authed, seller)
	e.POST("/marketplace/services/:id/activate", s.activateService, authed, seller)
	e.POST("/marketplace/services/:id/pause", s.pauseService, authed, seller)
	e.DELETE("/marketplace/services/:id", s.removeService, authed, seller)

	e.POST("/marketplace/requests", s.submitRequest, authed, buyer)
	e.GET("/marketplace/requests/me", s.listMyRequests, authed)
	e.GET("/marketplace/requests/:id", s.getRequest, authed)
	e.POST("/marketplace/requests/:id/respond", s.respondToRequest, authed, seller)

	e.GET("/marketplace/orders/me", s.listMyOrders, authed)
	e.GET("/marketplace/orders/:id", s.getOrder, authed)
	e.POST("/marketplace/orders/:id/deliver", s.deliverOrder, authed, seller)
	e.POST("/marketplace/orders/:id/complete", s.completeOrder, authed, buyer)
	e.POST("/marketplace/orders/:id/cancel", s.cancelOrder, authed)
	e.POST("/marketplace/orders/:id/review", s.submitReview, authed, buyer)
	e.GET("/marketplace/orders/:id/review", s.getOrderReview, authed)

	e.GET("/sellers/me/stats", s.sellerStats, authed, seller)
}

// ServeHTTP lets the server be mounted or driven by httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured port until Shutdown is called
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
	return s.echo.StartServer(srv)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": s.cfg.Server.Name})
}

func (s *Server) ready(c echo.Context) error {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(c.Request().Context()); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "storage unreachable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

// caller returns the identity attached by the auth middleware, or the zero
// identity for anonymous requests.
func caller(c echo.Context) identity.Identity {
	who, _ := identity.FromContext(c.Request().Context())
	return who
}
