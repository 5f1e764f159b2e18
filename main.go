package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"nutrichat/internal/advice"
	"nutrichat/internal/api"
	"nutrichat/internal/auth"
	"nutrichat/internal/config"
	"nutrichat/internal/history"
	"nutrichat/internal/logging"
	"nutrichat/internal/metrics"
	"nutrichat/internal/redis"
	"nutrichat/internal/storage"
	"nutrichat/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, logCloser, err := logging.Init(cfg.BasicConfig.Log, os.Stderr)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbType, dbCfg, err := cfg.Database()
	if err != nil {
		log.Fatalf("database config: %v", err)
	}
	logger.Info("opening database", "type", dbType)
	db, err := storage.Open(dbType, dbCfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, user_tokens, chat_turns
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	var store history.Store
	switch cfg.History.Backend {
	case "pebble":
		pebbleStore, err := history.OpenPebble(cfg.History.PebblePath)
		if err != nil {
			log.Fatalf("open pebble history: %v", err)
		}
		defer pebbleStore.Close()
		store = pebbleStore
	default:
		store = history.NewSQLStore(db)
	}
	if rdb != nil {
		cached := history.NewCachedStore(store, rdb, cfg.History.CacheDuration(), logger)
		if err := cached.Listen(ctx); err != nil {
			log.Fatalf("subscribe history invalidations: %v", err)
		}
		store = cached
	}

	// the server is the backend; it talks to the model directly
	if cfg.Advice.Provider == "backend" {
		cfg.Advice.Provider = "gemini"
	}
	generator, err := advice.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("init advice generator: %v", err)
	}
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}, generator)
	defer dispatcher.Stop()

	m := metrics.New()
	m.WatchQueue(dispatcher.QueueDepth, dispatcher.Workers)

	authService := auth.NewService(db, rdb, time.Duration(cfg.BasicConfig.TokenTTL)*time.Hour)
	handlers := api.NewHandler(authService, store, dispatcher, m, api.Options{
		RateLimit:     cfg.BasicConfig.RateLimit,
		RateBurst:     cfg.BasicConfig.RateBurst,
		AdviceTimeout: cfg.Advice.Timeout(),
	})
	handlers.SetReadiness(func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if rdb != nil {
			return rdb.Ping(ctx)
		}
		return nil
	})

	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	handlers.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.BasicConfig.ServerAddress, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown", "error", err)
		}
	}()

	logger.Info("server listening", "addr", srv.Addr, "provider", cfg.Advice.Provider, "history", cfg.History.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}
