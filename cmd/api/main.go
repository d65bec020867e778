// Package main provides the entrypoint for the swarmpush API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/swarmpush/swarmpush/internal/api"
	"github.com/swarmpush/swarmpush/internal/api/middleware"
	"github.com/swarmpush/swarmpush/internal/auth"
	"github.com/swarmpush/swarmpush/internal/config"
	"github.com/swarmpush/swarmpush/internal/database"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/dispatch"
	"github.com/swarmpush/swarmpush/internal/gateway/expo"
	"github.com/swarmpush/swarmpush/internal/gateway/fcm"
	"github.com/swarmpush/swarmpush/internal/notification"
	"github.com/swarmpush/swarmpush/internal/provider/resilience"
	"github.com/swarmpush/swarmpush/internal/registry"
	"github.com/swarmpush/swarmpush/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "swarmpush-api"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(log zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting swarmpush API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, cfg.TelemetryConfig(serviceName, Version))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	dispatchMetrics, err := dispatch.NewMetrics()
	if err != nil {
		return fmt.Errorf("init dispatch metrics: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := device.NewHub()
	repo, closeRepo, err := openRepository(ctx, cfg, hub, g, log)
	if err != nil {
		return err
	}
	defer closeRepo()
	deviceService := device.NewService(repo, hub, log)

	if cfg.PubSub.Enabled() {
		relay, err := registry.NewPubSubRelay(ctx, registry.PubSubRelayConfig{
			ProjectID:    cfg.PubSub.ProjectID,
			Topic:        cfg.PubSub.Topic,
			Subscription: cfg.PubSub.Subscription,
			Hub:          hub,
			Logger:       log,
		})
		if err != nil {
			return fmt.Errorf("init pubsub relay: %w", err)
		}
		defer func() {
			if err := relay.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close pubsub relay")
			}
		}()
		g.Go(func() error { return relay.Run(ctx) })
	}

	providers := resilience.NewRegistry()
	gateway, err := openGateway(ctx, cfg, providers, log)
	if err != nil {
		return err
	}

	tokenService, err := auth.NewTokenService(auth.TokenConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("init token service: %w", err)
		}
		log.Warn().Msg("JWT_SIGNING_KEY not set, using an insecure development key")
		tokenService, err = auth.NewTokenService(auth.TokenConfig{
			SigningKey: "local-dev-signing-key-change-in-production",
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		})
		if err != nil {
			return err
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		RequireTLS:    cfg.App.RequireTLS,
		Metrics:       httpMetrics,
		TokenService:  tokenService,
		DeviceService: deviceService,
		Engine: dispatch.NewEngine(dispatch.EngineConfig{
			Gateway: gateway,
			Logger:  log,
			Metrics: dispatchMetrics,
		}),
		Inbox:     notification.NewInbox(),
		Providers: providers,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: the snapshot stream is long-lived.
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// openRepository opens the configured device store. For Postgres it also
// starts the NOTIFY listener on g.
func openRepository(ctx context.Context, cfg *config.Config, hub *device.Hub, g *errgroup.Group, log zerolog.Logger) (device.Repository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dbConfig := cfg.Database.Postgres()
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(dbConfig, log); err != nil {
				return nil, nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		listener := device.NewPostgresListener(pool, hub, log)
		g.Go(func() error {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("device listener: %w", err)
			}
			return nil
		})
		return device.NewPostgresRepository(pool), pool.Close, nil

	case config.DriverSQLite:
		repo, err := device.OpenSQLiteRepository(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", cfg.Database.SQLitePath).Msg("sqlite store opened")
		return repo, func() { _ = repo.Close() }, nil

	default:
		log.Warn().Msg("using in-memory device store, registrations are lost on restart")
		return device.NewInMemoryRepository(), func() {}, nil
	}
}

func openGateway(ctx context.Context, cfg *config.Config, providers *resilience.Registry, log zerolog.Logger) (dispatch.Gateway, error) {
	switch cfg.Gateway.Provider {
	case config.ProviderFCM:
		client, err := fcm.NewFromCredentials(ctx, cfg.Gateway.FCMCredentialsFile, log)
		if err != nil {
			return nil, fmt.Errorf("init fcm gateway: %w", err)
		}
		log.Info().Msg("using FCM push gateway")
		return client, nil
	default:
		log.Info().Str("url", cfg.Gateway.ExpoURL).Msg("using Expo push gateway")
		return expo.NewClient(expo.ClientConfig{
			URL:         cfg.Gateway.ExpoURL,
			AccessToken: cfg.Gateway.ExpoAccessToken,
			Registry:    providers,
			Timeout:     cfg.Gateway.Timeout,
		}), nil
	}
}
