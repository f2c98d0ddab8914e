package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/adam0307a/yurts-laundry-tracker/config"
	"github.com/adam0307a/yurts-laundry-tracker/internal/api"
	"github.com/adam0307a/yurts-laundry-tracker/internal/catalog"
	"github.com/adam0307a/yurts-laundry-tracker/internal/db"
	"github.com/adam0307a/yurts-laundry-tracker/internal/engine"
	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
	"github.com/adam0307a/yurts-laundry-tracker/internal/notifier"
	"github.com/adam0307a/yurts-laundry-tracker/internal/store"
	"github.com/adam0307a/yurts-laundry-tracker/internal/sweeper"
	"github.com/adam0307a/yurts-laundry-tracker/internal/view"
)

func main() {
	logger := log.New(os.Stdout, "laundry-tracker ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Auth.TokenSecret == "" {
		logger.Fatalf("auth.token_secret must be configured")
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// A broken catalog is a startup-time fatal condition.
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatalf("failed to load catalog from %s: %v", cfg.Catalog.Path, err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := feed.NewBroker()
	appStore := store.NewGormStore(gormDB, broker)
	logger.Println("data store initialized")

	if err := appStore.Seed(ctx, cat.BlockModels(), cat.MachineModels()); err != nil {
		logger.Fatalf("failed to seed catalog: %v", err)
	}

	// The view follows the change feed; subscribe before the initial load so
	// no event is missed in between.
	events, cancelSub := broker.Subscribe()
	defer cancelSub()
	machineView := view.New()
	machines, err := appStore.ListMachines(ctx)
	if err != nil {
		logger.Fatalf("failed to load machines: %v", err)
	}
	machineView.Load(machines)
	go machineView.Follow(ctx, events)

	workerPool := notifier.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)
	completionNotifier := notifier.New(workerPool)

	if cfg.Sweeper.Disabled {
		logger.Println("sweeper is disabled; elapsed reservations will not be auto-released")
	} else {
		sw := sweeper.New(appStore, completionNotifier, cfg.Sweeper.Interval)
		go sw.Run(ctx)
	}

	if cfg.NATS.URL != "" {
		bridge, err := feed.NewNATSBridge(cfg.NATS.URL, cfg.NATS.Subject, broker)
		if err != nil {
			logger.Fatalf("failed to connect to NATS at %s: %v", cfg.NATS.URL, err)
		}
		go bridge.Run(ctx)
	}

	eng := engine.New(appStore)
	router := api.NewRouter(appStore, eng, machineView, &webpushOptions, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		TokenSecret:     []byte(cfg.Auth.TokenSecret),
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
