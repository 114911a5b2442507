package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/greenstreak/greenstreak/internal/observability"
	"github.com/greenstreak/greenstreak/internal/server/handlers"
)

const (
	adminRateLimit = 10
	adminRateBurst = 5
)

func (s *Server) registerRoutes(opts Options) {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if opts.API != nil {
		s.router.Mount("/api/v1", opts.API.Routes())
	}

	s.registerAdminEndpoint(opts.AdminToken)
}

// registerAdminEndpoint exposes gofulmen's signal handler (shutdown, reload)
// behind bearer auth. Without a token the route does not exist.
func (s *Server) registerAdminEndpoint(token string) {
	logger := observability.Logger()
	if token == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: token,
		RateLimit: adminRateLimit,
		RateBurst: adminRateBurst,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.Int("rate_limit_per_min", adminRateLimit),
			zap.Int("burst", adminRateBurst))
	}
}
