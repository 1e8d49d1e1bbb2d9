package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workforce-auth/internal/api/http"
	"github.com/spec-kit/workforce-auth/internal/api/http/handlers"
	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/config"
	"github.com/spec-kit/workforce-auth/internal/events"
	"github.com/spec-kit/workforce-auth/internal/observability"
	"github.com/spec-kit/workforce-auth/internal/persistence"
	"github.com/spec-kit/workforce-auth/internal/repository"
	"github.com/spec-kit/workforce-auth/internal/service"
	"github.com/spec-kit/workforce-auth/internal/servicetoken"
	"github.com/spec-kit/workforce-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	codec, err := auth.NewTokenCodec(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	identityCache := repository.NewIdentityCache(redis.Client, cfg.Auth.IdentityCacheTTL())

	identifier := auth.NewIdentifier(auth.IdentifierDeps{
		Codec:         codec,
		Cache:         identityCache,
		Directory:     userRepo,
		CacheTTL:      cfg.Auth.IdentityCacheTTL(),
		ServiceSecret: cfg.Auth.ServicesCommonSecret,
		Logger:        logger,
	})
	guard := auth.NewAccessGuard(identifier, logger)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartIdentityInvalidation(dispatcher, identifier, logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:      userRepo,
		Codec:         codec,
		ServiceSecret: cfg.Auth.ServicesCommonSecret,
		BcryptCost:    cfg.Auth.BcryptCost,
		Logger:        logger,
	})
	userService := service.NewUserService(userRepo, dispatcher, logger)

	tokenManager := servicetoken.NewManager(newServiceTokenIssuer(cfg, codec), logger,
		servicetoken.WithInterval(cfg.ServiceToken.RefreshInterval()),
		servicetoken.WithThreshold(cfg.ServiceToken.RefreshThreshold()),
	)
	managerDone := tokenManager.Start(ctx)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		APIPrefix: cfg.App.APIPrefix,
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tokens:    handlers.NewTokenHandler(authService),
		Users:     handlers.NewUsersHandler(userService),
		Guard:     guard,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	<-managerDone
	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

// newServiceTokenIssuer fetches tokens from a remote auth service when one is
// configured and mints them locally otherwise.
func newServiceTokenIssuer(cfg *config.Config, codec *auth.TokenCodec) servicetoken.Issuer {
	if cfg.ServiceToken.AuthURL != "" {
		return servicetoken.NewHTTPIssuer(
			cfg.ServiceToken.AuthURL,
			cfg.App.APIPrefix,
			cfg.Auth.ServicesCommonSecret,
			cfg.ServiceToken.RequestTimeout(),
		)
	}
	return servicetoken.NewLocalIssuer(codec, cfg.Auth.ServicesCommonSecret)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
