package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/config"
	"github.com/rpattn/changereport/internal/db"
	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/httpapi"
	"github.com/rpattn/changereport/internal/reportcache"
	"github.com/rpattn/changereport/internal/reporting"
	"github.com/rpattn/changereport/internal/reporting/metrics"
	"github.com/rpattn/changereport/internal/repository"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, configFile, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	if configFile != "" {
		logger.WithField("file", configFile).Info("loaded configuration")
	} else {
		logger.Info("no config.yaml found, using defaults and environment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if cfg.Database.Migrate {
		version, err := db.RunMigrations(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		logger.WithField("version", version).Info("database schema up to date")
	}

	// Create repositories
	kinds := reporting.DefaultChildcareKinds(nil)
	historyTables := make(map[domain.EntityKind]string, len(kinds))
	liveTables := make(map[domain.EntityKind]repository.LiveTable, len(kinds))
	for _, spec := range kinds {
		historyTables[spec.Kind] = cfg.Tables.HistoryTable(string(spec.Kind))
		liveTables[spec.Kind] = repository.LiveTable{
			Name:          cfg.Tables.LiveTable(string(spec.Kind)),
			UpdatedColumn: cfg.Tables.UpdatedColumn,
		}
	}
	historyRepo, err := repository.NewHistoryRepository(conn.Pool, historyTables)
	if err != nil {
		logger.Fatalf("Failed to create history repository: %v", err)
	}
	indexRepo := repository.NewRelatedChangeRepository(conn.Pool)
	var liveRepo repository.LiveStore
	if cfg.Report.LiveFallback {
		liveRepo = repository.NewEntityRepository(conn.Pool, liveTables)
	}

	registry, err := reporting.NewDefaultRegistry(historyRepo)
	if err != nil {
		logger.Fatalf("Invalid entity registry: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.New(promRegistry)

	cache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to create report cache: %v", err)
	}
	defer closeCache()

	service := reporting.NewService(registry, indexRepo, liveRepo,
		reporting.WithLogger(logger),
		reporting.WithMetrics(engineMetrics),
		reporting.WithTimeout(cfg.Report.DefaultTimeout),
		reporting.WithPageSize(cfg.Report.PageSize),
		reporting.WithConcurrency(cfg.Report.Concurrency),
		reporting.WithMaxWindowSpan(cfg.Report.MaxWindowSpan),
		reporting.WithCache(cache),
		reporting.WithCacheSettle(cfg.Cache.Settle),
	)

	router := httpapi.NewRouter(service, logger, httpapi.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxWindowSpan:  cfg.Report.MaxWindowSpan,
		Live:           liveRepo,
		Health:         conn.Ping,
		Gatherer:       promRegistry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("starting change report server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

// newCache builds the configured closed-window cache. The returned func
// releases its resources.
func newCache(ctx context.Context, cfg config.CacheConfig) (reporting.Cache, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.CacheMemory:
		lru, err := reportcache.NewLRU(cfg.Size)
		if err != nil {
			return nil, noop, err
		}
		return lru, noop, nil
	case config.CacheRedis:
		client, err := reportcache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return reportcache.NewRedis(client, cfg.Prefix, cfg.TTL), func() { _ = client.Close() }, nil
	default:
		return nil, noop, nil
	}
}
