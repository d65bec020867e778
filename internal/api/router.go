// Package api provides the HTTP API for swarmpush.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/swarmpush/swarmpush/internal/api/handler"
	"github.com/swarmpush/swarmpush/internal/api/middleware"
	"github.com/swarmpush/swarmpush/internal/auth"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/dispatch"
	"github.com/swarmpush/swarmpush/internal/notification"
	"github.com/swarmpush/swarmpush/internal/provider/resilience"
	"github.com/swarmpush/swarmpush/internal/registry"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	RequireTLS  bool
	Metrics     *middleware.Metrics

	TokenService  *auth.TokenService
	DeviceService *device.Service
	Engine        *dispatch.Engine
	Inbox         *notification.Inbox
	// Providers feeds readiness with gateway circuit state. Optional.
	Providers *resilience.Registry
	// Stream backs the websocket snapshot stream. Defaults to a
	// registry.Local over DeviceService.
	Stream registry.Store
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "swarmpush-api"
	}
	stream := cfg.Stream
	if stream == nil {
		stream = registry.NewLocal(cfg.DeviceService, cfg.Logger)
	}
	inbox := cfg.Inbox
	if inbox == nil {
		inbox = notification.NewInbox()
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DeviceService, cfg.Providers)
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService, cfg.Logger)
	streamHandler := handler.NewStreamHandler(stream, cfg.Logger)
	broadcastHandler := handler.NewBroadcastHandler(cfg.Engine, cfg.Logger)
	notificationHandler := handler.NewNotificationHandler(inbox)

	authMiddleware := middleware.Auth(cfg.TokenService)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.Route("/devices", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", deviceHandler.ListDevices)
			r.With(middleware.RateLimitByIP(middleware.RegistrationRateLimit), middleware.RequireJSON).
				Post("/", deviceHandler.RegisterDevice)
			r.Get("/stream", streamHandler.Stream)
			r.With(authMiddleware).Delete("/{pushToken}", deviceHandler.UnregisterDevice)
		})

		r.Route("/broadcasts", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByOperator(middleware.BroadcastRateLimit))
			r.With(middleware.RequireJSON).Post("/", broadcastHandler.Send)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.With(middleware.RequireJSON).Post("/", notificationHandler.Record)
			r.Get("/latest", notificationHandler.Latest)
		})
	})

	return r
}
