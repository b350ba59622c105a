package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/verse-engine/internal/config"
	"github.com/jwebster45206/verse-engine/internal/events"
	"github.com/jwebster45206/verse-engine/internal/handlers"
	"github.com/jwebster45206/verse-engine/internal/logger"
	"github.com/jwebster45206/verse-engine/internal/storage"
	"github.com/jwebster45206/verse-engine/internal/worker"
	pkgstorage "github.com/jwebster45206/verse-engine/pkg/storage"
	"github.com/jwebster45206/verse-engine/pkg/world"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Verse Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"world_id", cfg.WorldID,
		"progress_store", cfg.ProgressStore,
		"event_bus", cfg.EventBus)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	store, err := storage.Open(storageCtx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()
	log.Info("Storage connection established successfully")

	if cfg.ResetProgress {
		if err := store.DeleteProgress(storageCtx, cfg.WorldID); err != nil {
			log.Error("Failed to reset progress", "error", err, "world_id", cfg.WorldID)
			os.Exit(1)
		}
		log.Warn("Saved progress deleted", "world_id", cfg.WorldID)
	}

	// Redis backs the event bus and the world lock when the store does not
	// already provide a client
	var redisClient *redis.Client
	if rs, ok := store.(*storage.RedisStorage); ok {
		redisClient = rs.Client()
	} else if cfg.EventBus == config.BusRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Failed to close Redis client", "error", err)
			}
		}()
	}

	var publisher events.Publisher
	var subscriber events.Subscriber
	if cfg.EventBus == config.BusRedis {
		b := events.NewBroadcaster(redisClient, log)
		publisher, subscriber = b, b
	} else {
		b := events.NewBus()
		publisher, subscriber = b, b
	}

	base := world.DefaultConfig()
	base.Clock = cfg.ClockOptions()
	base.Session = cfg.SessionOptions()
	base.Plot = cfg.PlotOptions()
	base.Seed = cfg.RNGSeed
	worldCfg, err := pkgstorage.LoadWorldConfig(storageCtx, store, base)
	if err != nil {
		log.Error("Failed to load world content", "error", err, "data_dir", cfg.DataDir)
		os.Exit(1)
	}
	for i := range worldCfg.Sites {
		if worldCfg.Sites[i].Cooldown == 0 {
			worldCfg.Sites[i].Cooldown = cfg.TriggerCooldown
		}
	}

	sink := events.NewSink(cfg.WorldID, publisher, log)
	w, err := world.New(cfg.WorldID, worldCfg, sink, store, log)
	if err != nil {
		log.Error("Failed to build world", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	// Only the replica holding the world lock drives time and takes commands
	// when state is shared. The worker takes the world off standby once it
	// holds the lock.
	var lockClient *redis.Client
	if cfg.ProgressStore == config.StoreRedis {
		lockClient = redisClient
		w.Follow()
	}

	if err := w.Start(storageCtx); err != nil {
		log.Error("Failed to start world", "error", err)
		os.Exit(1)
	}
	ticker := worker.New(w, lockClient, worker.Options{
		WorldID:  cfg.WorldID,
		WorkerID: cfg.WorkerID,
		Interval: cfg.TickInterval,
		LockTTL:  cfg.WorldLockTTL,
	}, log)
	go func() {
		if err := ticker.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, w, log))

	sitesHandler := handlers.NewSitesHandler(w, log)
	mux.Handle("/v1/sites", sitesHandler)
	mux.Handle("/v1/sites/", sitesHandler)

	sessionHandler := handlers.NewSessionHandler(w, log)
	mux.Handle("/v1/session", sessionHandler)
	mux.Handle("/v1/session/", sessionHandler)

	plotsHandler := handlers.NewPlotsHandler(w, log)
	mux.Handle("/v1/plots", plotsHandler)
	mux.Handle("/v1/plots/", plotsHandler)

	actionsHandler := handlers.NewActionsHandler(w, log)
	mux.Handle("/v1/actions", actionsHandler)
	mux.Handle("/v1/actions/", actionsHandler)

	worldHandler := handlers.NewWorldHandler(w, log)
	mux.Handle("/v1/world", worldHandler)
	mux.Handle("/v1/environment", worldHandler)
	mux.Handle("/v1/progress", worldHandler)

	mux.Handle("/v1/events", handlers.NewEventsHandler(subscriber, cfg.WorldID, log))
	mux.Handle("/v1/stream", handlers.NewStreamHandler(w, subscriber, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.RequestLogger(log, handlers.RequireLeader(w, log, mux)),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout removed to enable streaming - streaming endpoints handle their own timeouts
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	ticker.Stop()
	w.Stop()
	cancel()

	log.Info("Server exited")
}
