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

	"container-request-board/config"
	"container-request-board/internal/api"
	"container-request-board/internal/cleanup"
	"container-request-board/internal/db"
	"container-request-board/internal/erp"
	"container-request-board/internal/notify"
	"container-request-board/internal/store"
	"container-request-board/internal/ws"
)

// app bundles the long-lived pieces of the service so that startup and
// shutdown happen in one place, in a known order.
type app struct {
	cfg     *config.Config
	store   store.Store
	erp     *erp.Client
	hub     *ws.Hub
	pool    *notify.WorkerPool
	cleanup *cleanup.Service
	server  *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	log.Println("database initialized")

	appStore := store.NewGormStore(gormDB, cfg.Cleanup.RetentionDays)
	erpClient := erp.NewClient(&cfg.ERP)
	hub := ws.NewHub()

	var pool *notify.WorkerPool
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notify.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
	} else {
		log.Println("VAPID keys not configured, push notifications disabled")
	}

	var notifier cleanup.Notifier
	if pool != nil {
		notifier = pool
	}
	cleanupSvc := cleanup.NewService(&cfg.Cleanup, appStore, erpClient, hub, notifier)

	var apiNotifier api.Notifier
	if pool != nil {
		apiNotifier = pool
	}
	router := api.NewRouter(cfg, appStore, erpClient, cleanupSvc, hub, apiNotifier, webpushOptions)

	return &app{
		cfg:     cfg,
		store:   appStore,
		erp:     erpClient,
		hub:     hub,
		pool:    pool,
		cleanup: cleanupSvc,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

// start launches the background services and the HTTP server.
func (a *app) start(ctx context.Context) {
	if a.pool != nil {
		a.pool.Start(ctx)
	}
	go a.cleanup.Run(ctx)

	go func() {
		log.Printf("HTTP server starting on port %d", a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
}

// stop drains the server and the websocket hub.
func (a *app) stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.hub.Shutdown(shutdownCtx)
	return a.server.Shutdown(shutdownCtx)
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	log.Printf("configuration loaded from %s", configPath)

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("Shutdown signal received, stopping services...")
	cancel()

	if err := a.stop(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
