package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tillbridge-pos-agent/internal/backend"
	"tillbridge-pos-agent/internal/config"
	"tillbridge-pos-agent/internal/handler"
	"tillbridge-pos-agent/internal/router"
	"tillbridge-pos-agent/internal/service"
	"tillbridge-pos-agent/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting TillBridge POS agent...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s, store: %s", cfg.App.Environment, cfg.App.StoreID)

	// Initialize queue store based on config
	var queueStore store.QueueStore
	switch cfg.QueueStore.Type {
	case "redis":
		redisStore, err := store.NewRedisQueueStore(store.RedisQueueConfig{
			Addr:      cfg.QueueStore.RedisAddress(),
			Password:  cfg.QueueStore.RedisPassword,
			DB:        cfg.QueueStore.RedisDB,
			KeyPrefix: cfg.QueueStore.KeyPrefix,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Redis queue store: %v", err)
		}
		queueStore = redisStore
		log.Println("Redis queue store initialized")
	case "mysql":
		mysqlStore, err := store.NewMySQLQueueStore(cfg.QueueStore.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL queue store: %v", err)
		}
		queueStore = mysqlStore
		log.Println("MySQL queue store initialized")
	case "memory":
		queueStore = store.NewMemoryQueueStore()
		log.Println("Memory queue store initialized (queue will not survive restarts)")
	default: // sqlite
		sqliteStore, err := store.NewSQLiteQueueStore(cfg.QueueStore.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite queue store: %v", err)
		}
		queueStore = sqliteStore
		log.Println("SQLite queue store initialized")
	}
	defer queueStore.Close()

	// Initialize product cache store based on config
	var cacheStore store.ProductCacheStore
	switch cfg.CacheStore.Type {
	case "memory":
		cacheStore = store.NewMemoryProductCacheStore()
		log.Println("Memory product cache initialized")
	default: // sqlite
		sqliteCache, err := store.NewSQLiteProductCacheStore(cfg.CacheStore.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite product cache: %v", err)
		}
		cacheStore = sqliteCache
		log.Println("SQLite product cache initialized")
	}
	defer cacheStore.Close()

	// Backend client
	backendClient := backend.New(backend.Config{
		BaseURL:  cfg.Backend.BaseURL,
		APIToken: cfg.Backend.APIToken,
		PingPath: cfg.Backend.PingPath,
		Timeout:  cfg.Backend.Timeout,
	})

	// Initialize services
	queueManager := service.NewQueueManager(queueStore, backendClient, service.QueueManagerConfig{
		MaxRetries: cfg.Sync.MaxRetries,
		BaseDelay:  cfg.Sync.BaseDelay,
		OpPause:    cfg.Sync.OpPause,
	})

	catalogManager := service.NewCatalogManager(cacheStore, backendClient, service.CatalogManagerConfig{
		TTL:      cfg.CacheStore.TTL,
		PageSize: cfg.Sync.PageSize,
	})

	saleCoordinator := service.NewSaleCoordinator(queueManager, catalogManager, backendClient)

	monitor := service.NewConnectivityMonitor(backendClient, queueManager, cfg.Sync.ConnectivityInterval)
	monitor.Start()

	scheduler := service.NewSyncScheduler(queueManager, catalogManager, cfg.App.StoreID, cfg.Sync.Interval)
	scheduler.Start()

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	posHandler := handler.NewPOSHandler(saleCoordinator, catalogManager)
	syncHandler := handler.NewSyncHandler(queueManager, monitor, catalogManager, cfg.App.StoreID)

	// Create router
	r := router.New(router.Config{
		Handler:     healthHandler,
		POSHandler:  posHandler,
		SyncHandler: syncHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Agent listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down agent...")

	scheduler.Stop()
	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// One last drain attempt so a brief stop while online loses nothing
	if queueManager.Online() {
		log.Println("Final queue drain before shutdown...")
		if err := queueManager.ProcessQueue(ctx); err != nil {
			log.Printf("Final drain error: %v", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Agent stopped")
}
