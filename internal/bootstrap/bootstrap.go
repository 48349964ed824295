// Package bootstrap assembles the application from its configuration
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	authz "github.com/yigit/libris/internal/app/auth"
	appControllers "github.com/yigit/libris/internal/app/controllers"
	appMigrations "github.com/yigit/libris/internal/app/migrations"
	appRepos "github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/app/repositories/memory"
	"github.com/yigit/libris/internal/app/repositories/postgres"
	appRoutes "github.com/yigit/libris/internal/app/routes"
	appServices "github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/config"
	"github.com/yigit/libris/internal/db"
	"github.com/yigit/libris/internal/metrics"
	appMiddleware "github.com/yigit/libris/internal/middleware"
	pkgAuth "github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/helpers"
	"github.com/yigit/libris/internal/pkg/logger"
	"github.com/yigit/libris/internal/seed"
)

// Storage holds the selected store and the connections behind it
type Storage struct {
	Store    appRepos.Store
	Postgres *db.PostgresDB // nil with the memory driver
	Redis    *db.Redis      // nil when redis is not configured or unreachable
}

// Close releases every open connection
func (s *Storage) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	Services       *appServices.Services
	Controllers    appRoutes.Controllers
	AuthMiddleware *appMiddleware.AuthMiddleware
	JWTService     *pkgAuth.JWTService
	Limiter        appMiddleware.Limiter
	Logger         zerolog.Logger
}

// App is a fully wired application
type App struct {
	Config  *config.Config
	Storage *Storage
	Deps    *Dependencies
	Router  *gin.Engine
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.Configure(logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: logger.Format(strings.ToLower(cfg.Logging.Format)),
	})
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// NewApp connects storage, seeds default data and builds the router
func NewApp(cfg *config.Config, lgr zerolog.Logger) (*App, error) {
	storage, err := SetupStorage(cfg, lgr)
	if err != nil {
		return nil, err
	}

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := seed.CreateDefaultData(seedCtx, storage.Store, cfg, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	deps, err := BuildDependencies(cfg, storage, lgr)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to setup dependencies: %w", err)
	}

	return &App{
		Config:  cfg,
		Storage: storage,
		Deps:    deps,
		Router:  SetupRouter(cfg, deps, lgr),
	}, nil
}

// SetupStorage opens the configured store, applying migrations for postgres,
// and connects redis when an address is configured.
func SetupStorage(cfg *config.Config, lgr zerolog.Logger) (*Storage, error) {
	storage := &Storage{}

	switch strings.ToLower(cfg.Database.Driver) {
	case config.DriverMemory:
		lgr.Warn().Msg("Using in-memory storage; data is lost on restart")
		storage.Store = memory.NewStore()
	default:
		lgr.Info().Msg("Establishing database connection...")
		database, err := db.NewPostgresDB(cfg)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to connect to database")
			return nil, err
		}
		lgr.Info().Msg("Database connection successfully established.")

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		lgr.Info().Msg("Running database migrations...")
		if err := appMigrations.NewMigrator(database.Pool).Up(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}
		lgr.Info().Msg("Database migrations successfully applied.")

		storage.Postgres = database
		storage.Store = postgres.NewStore(database)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := db.NewRedis(cfg)
		if err != nil {
			lgr.Warn().Err(err).Msg("Redis unavailable, rate limiting falls back to in-memory buckets")
		} else {
			lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to redis")
			storage.Redis = rdb
		}
	}

	return storage, nil
}

// BuildDependencies initializes services, middleware and controllers.
func BuildDependencies(cfg *config.Config, storage *Storage, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 168*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})

	deps.Services = appServices.NewServices(appServices.Deps{
		Store:      storage.Store,
		Authorizer: authz.NewAuthorizer(),
		JWT:        deps.JWTService,
		Clock:      helpers.SystemClock,
		Logger:     lgr,
	})

	if err := appMiddleware.RegisterValidators(); err != nil {
		return nil, err
	}
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, authz.NewPrincipalLoader(storage.Store.Repos()))

	if cfg.RateLimit.Enabled {
		if storage.Redis != nil {
			deps.Limiter = appMiddleware.NewRedisWindow(storage.Redis.Client, cfg.RateLimit.RequestsPerMinute)
		} else {
			deps.Limiter = appMiddleware.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		}
	}

	checks := map[string]appControllers.HealthChecker{}
	if storage.Postgres != nil {
		checks["postgres"] = storage.Postgres
	}
	if storage.Redis != nil {
		checks["redis"] = storage.Redis
	}

	deps.Controllers = appRoutes.Controllers{
		Auth:        appControllers.NewAuthController(deps.Services.Auth, lgr),
		Catalog:     appControllers.NewCatalogController(deps.Services.Catalog, lgr),
		BookRequest: appControllers.NewBookRequestController(deps.Services.Lending, lgr),
		Student:     appControllers.NewStudentController(deps.Services.Student, lgr),
		Health:      appControllers.NewHealthController(checks),
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	}

	metrics.Init()

	router := gin.New()
	router.Use(
		appMiddleware.RequestID(),
		appMiddleware.RequestLogger(lgr),
		appMiddleware.Recovery(lgr),
		appMiddleware.HTTPMetrics(),
	)
	if deps.Limiter != nil {
		router.Use(appMiddleware.RateLimit(deps.Limiter, lgr))
	}

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)
	return router
}
