package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tempest-engine/work/catalog"
	"tempest-engine/work/client"
	"tempest-engine/work/config"
	"tempest-engine/work/guide"
	"tempest-engine/work/handlers"
	"tempest-engine/work/logger"
	"tempest-engine/work/middleware"
	"tempest-engine/work/scheduler"
	"tempest-engine/work/source"
	"tempest-engine/work/store"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// set up logging
	logger.SetLogLevel(cfg.LogLevel)
	if cfg.Debug {
		logger.SetLogLevel("DEBUG")
	}

	// Initialize worker pool for schedule generation fan-out
	workerPool, err := ants.NewPool(cfg.WorkerThreads, ants.WithPreAlloc(true))
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer workerPool.Release()

	// Open the warm-cache snapshot store; the engine still runs without it
	var snapshots catalog.Snapshotter
	if db, err := store.Open(cfg.SnapshotPath); err != nil {
		logger.Warn("{main - main} snapshot store unavailable, cold starts will be empty: %v", err)
	} else {
		snapshots = db
		defer db.Close()
	}

	// Initialize HTTP client and asset source
	httpClient := client.NewHeaderSettingClient(cfg)
	assetSource := source.NewClient(cfg, httpClient)

	// Build the catalog and populate it: live sync first, snapshot fallback
	library := catalog.New(cfg, assetSource, snapshots)
	library.WarmStart(context.Background())

	// Create the scheduling engine and generate the initial window
	engine := scheduler.New(cfg, library, workerPool, clock.New())
	engine.Regenerate("startup")
	engine.Start()

	// Read-side guide service
	epg := guide.NewService(cfg, engine, clock.New())

	// Periodic catalog re-sync, decoupled from the engine's refresh tick
	syncStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-syncStop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				if err := library.Sync(ctx); err != nil {
					logger.Warn("{main - main} periodic catalog sync failed: %v", err)
				}
				cancel()
			}
		}
	}()

	// Setup HTTP routes
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HandleHealth(Version)).Methods("GET")
	router.HandleFunc("/api/channels", middleware.GzipMiddleware(handlers.HandleChannels(epg))).Methods("GET")
	router.HandleFunc("/api/guide", middleware.GzipMiddleware(handlers.HandleGuide(epg))).Methods("GET")
	router.HandleFunc("/api/schedule", middleware.GzipMiddleware(handlers.HandleAllSchedules(epg))).Methods("GET")
	router.HandleFunc("/api/search", middleware.GzipMiddleware(handlers.HandleSearch(epg))).Methods("GET")
	router.HandleFunc("/api/stats", middleware.GzipMiddleware(handlers.HandleStats(epg))).Methods("GET")
	router.HandleFunc("/api/channels/{channel}/now", handlers.HandleCurrentProgram(epg)).Methods("GET")
	router.HandleFunc("/api/channels/{channel}/next", handlers.HandleNextProgram(epg)).Methods("GET")
	router.HandleFunc("/api/channels/{channel}/schedule", middleware.GzipMiddleware(handlers.HandleChannelSchedule(epg))).Methods("GET")
	router.HandleFunc("/api/channels/{channel}/schedule", handlers.HandleScheduleAsset(engine)).Methods("POST")
	router.HandleFunc("/api/channels/{channel}/schedule/{item}", handlers.HandleRemoveScheduledItem(engine)).Methods("DELETE")
	router.HandleFunc("/api/regenerate", handlers.HandleRegenerate(engine)).Methods("POST")
	router.HandleFunc("/api/sync", handlers.HandleSync(library)).Methods("POST")

	// Metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.ListenPort)

	// show info
	logger.Info("Starting Tempest Engine %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Base URL: %s", cfg.BaseURL)
	logger.Info("  - Channels: %d", len(cfg.Channels))
	logger.Info("  - Catalog Assets: %d", library.Size())
	logger.Info("  - Schedule Window: %d days", cfg.ScheduleDays)
	logger.Info("  - Refresh Interval: %s", cfg.RefreshInterval)
	logger.Info("  - Regenerate Interval: %s", cfg.RegenerateInterval)
	logger.Info("  - Sync Interval: %s", cfg.SyncInterval)
	logger.Info("  - Worker Threads: %d", cfg.WorkerThreads)
	logger.Info("  - Debug Enabled: %v", cfg.Debug)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// shut down gracefully on SIGINT/SIGTERM: stop the refresh and sync loops,
	// let in-flight work finish, then drain the server
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutdown requested...")
		engine.Stop()
		close(syncStop)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("{main - main} server shutdown: %v", err)
		}
	}()

	// fire us up
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}
