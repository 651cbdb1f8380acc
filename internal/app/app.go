package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/database"
	"github.com/moviepulse/kino/internal/handlers"
	"github.com/moviepulse/kino/internal/messaging"
	"github.com/moviepulse/kino/internal/middleware"
	"github.com/moviepulse/kino/internal/ml"
	"github.com/moviepulse/kino/internal/rules"
	"github.com/moviepulse/kino/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	catalog  *catalog.Catalog
	tables   *rules.Tables
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	consumerCancel context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Load the read-side state before anything serves traffic: catalog
	// snapshot, rule tables, embedding snapshot.
	cat := catalog.New(db.PG, app.logger)
	if err := cat.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load movie catalog: %w", err)
	}
	app.catalog = cat

	tables, err := rules.Load(cfg.Data.GenresFile, cfg.Data.MoodsFile, cat, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule tables: %w", err)
	}
	app.tables = tables

	embeddings := ml.NewEmbeddingStore(
		cfg.Data.Dimensions, db.Redis.Cold, cfg.Recommendation.Caching.EmbeddingsTTL, app.logger,
	)
	if err := embeddings.LoadFile(cfg.Data.EmbeddingsFile); err != nil {
		return nil, fmt.Errorf("failed to load embedding snapshot: %w", err)
	}

	svc, err := services.New(cfg, app.logger, db, cat, tables, embeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	app.handlers = handlers.New(cfg, app.logger, svc, cat, tables)

	app.setupRouter()
	app.startWatchEventConsumer()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// startWatchEventConsumer drains the watch-events topic into the append-only
// watch log.
func (a *App) startWatchEventConsumer() {
	ctx, cancel := context.WithCancel(context.Background())
	a.consumerCancel = cancel

	go func() {
		err := a.services.MessageBus.ConsumeWatchEvents(ctx, func(message messaging.WatchEventMessage) error {
			event := message.Event
			return a.services.WatchHistory.Record(ctx, &event)
		})
		if err != nil && ctx.Err() == nil {
			a.logger.WithError(err).Error("Watch event consumer stopped")
		}
	}()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.consumerCancel != nil {
		a.consumerCancel()
	}

	if err := a.services.MessageBus.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing message bus")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))
	router.Use(middleware.CompressionMiddleware())

	// Health and scrape endpoints stay outside auth.
	router.GET("/health", a.handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(a.services.Auth, a.logger))
		api.Use(middleware.RateLimit(a.services.RateLimit, a.logger))
		api.Use(middleware.CacheInvalidationMiddleware(a.db.Redis.Warm, a.logger))

		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/similar/:movieId", a.handlers.Recommendation.GetSimilar)
			recommendations.GET("/browse", a.handlers.Recommendation.Browse)
		}

		api.POST("/watch", a.handlers.Watch.Record)

		api.GET("/badges", a.handlers.Badge.Definitions)

		users := api.Group("/users")
		{
			users.Use(middleware.CacheMiddleware(a.db.Redis.Warm, &middleware.CacheConfig{
				DefaultTTL: 5 * time.Minute,
				MaxSize:    1 << 20,
				KeyPrefix:  "cache",
			}, a.logger))
			users.GET("/:userId/watch", a.handlers.Watch.History)
			users.GET("/:userId/badges", a.handlers.Badge.Progress)
			users.GET("/:userId/affinity", a.handlers.Badge.Affinity)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/rules/reload", a.handlers.Admin.ReloadRules)
			admin.GET("/config", a.handlers.Admin.GetPipelineConfig)
			admin.GET("/metrics", a.handlers.Metrics.GetOverview)
		}
	}

	a.router = router
}
