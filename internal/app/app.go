package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stockroom/internal/catalog"
	"github.com/MrSnakeDoc/stockroom/internal/config"
	"github.com/MrSnakeDoc/stockroom/internal/feed"
	"github.com/MrSnakeDoc/stockroom/internal/httpserver"
	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/redis"
	"github.com/MrSnakeDoc/stockroom/internal/scheduler"
	filestore "github.com/MrSnakeDoc/stockroom/internal/store/file"
	redisstore "github.com/MrSnakeDoc/stockroom/internal/store/redis"
	"github.com/MrSnakeDoc/stockroom/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	catalog     *catalog.Manager
	mirror      *redisstore.Mirror
	reloader    *scheduler.FeedReloader
	janitor     *scheduler.ArchiveJanitor
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	catDeps := catalog.Deps{
		Store: filestore.NewCatalogStore(cfg.CatalogFile, loggerClient),
		Feed: feed.NewParser(cfg.FeedFile, feed.Options{
			DefaultVAT:     cfg.DefaultVAT,
			SkipOutOfStock: cfg.SkipOutOfStock,
		}, loggerClient),
		Lists:    filestore.NewListStore(cfg.ListsFile, loggerClient),
		Featured: filestore.NewFeaturedStore(cfg.FeaturedFile, loggerClient),
	}

	// The price mirror is optional, but once configured it must be reachable.
	var (
		redisClient *goredis.Client
		mirror      *redisstore.Mirror
	)
	if cfg.MirrorEnabled() {
		client, err := redis.Connect(context.Background(), redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisClient = client
		mirror = redisstore.NewMirror(client, cfg.RedisKeyPrefix)
		catDeps.Sink = mirror
		loggerClient.Info("Redis price mirror enabled", logger.String("prefix", cfg.RedisKeyPrefix))
	} else {
		loggerClient.Info("Redis not configured, price mirror disabled")
	}

	manager := catalog.New(catDeps, catalog.Options{
		RetainManual: cfg.RetainManual,
		DefaultVAT:   cfg.DefaultVAT,
	}, loggerClient)

	reloader := scheduler.NewFeedReloader(manager, cfg.FeedFile, loggerClient, cfg.ReloadInterval)
	janitor := scheduler.NewArchiveJanitor(
		filepath.Dir(cfg.FeedFile),
		cfg.ArchivePattern,
		cfg.ArchiveKeep,
		cfg.FeedFile,
		loggerClient,
		cfg.ArchiveInterval,
	)

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RateLimit:    cfg.RateLimitPerMin,
		RateBurst:    cfg.RateLimitBurst,
		Catalog:      manager,
		Reloader:     reloader,
	}
	if mirror != nil {
		d.Mirror = mirror
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		catalog:     manager,
		mirror:      mirror,
		reloader:    reloader,
		janitor:     janitor,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Stockroom %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Stockroom %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Serve the stored catalog first, the feed may be missing or stale.
	a.catalog.Load()

	a.reloader.Start(ctx)
	a.logger.Info("feed reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	a.janitor.Start(ctx)
	a.logger.Info("archive janitor started",
		logger.Duration("interval", a.cfg.ArchiveInterval),
		logger.Int("keep", a.cfg.ArchiveKeep))

	if a.mirror != nil {
		if err := scheduler.NewMirrorSyncer(a.mirror, a.catalog, a.logger).Sync(ctx); err != nil {
			a.logger.Warn("initial price mirror sync failed", logger.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Stockroom stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
