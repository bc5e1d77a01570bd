package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/config"
	"github.com/karthikraju391/pairchat/handlers"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/media"
	"github.com/karthikraju391/pairchat/nats_service"
	"github.com/karthikraju391/pairchat/store"
)

func main() {
	if err := run(); err != nil {
		logger.Error("server_exit", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Logging.Level)

	tree, err := openTree(cfg)
	if err != nil {
		return err
	}
	defer tree.Close()

	var notifier store.Notifier = store.NewHub()
	if cfg.Notifier.Driver == config.NotifierNats {
		natsSvc, err := nats_service.NewNatsService(nats_service.Options{
			URL:           cfg.Notifier.NatsURL,
			StreamName:    cfg.Notifier.StreamName,
			SubjectPrefix: cfg.Notifier.SubjectPrefix,
		})
		if err != nil {
			return fmt.Errorf("initialize NATS notifier: %w", err)
		}
		defer natsSvc.Close()
		notifier = natsSvc
	}
	logger.Info("store_ready", "tree", cfg.Store.Driver, "notifier", cfg.Notifier.Driver)

	client := store.NewClient(tree, notifier, store.WithBuffer(cfg.Chat.SubscriptionBuffer))
	defer client.Close()

	var uploader media.Uploader = media.Disabled{}
	if cfg.Media.CloudinaryURL != "" {
		cld, err := media.NewCloudinary(cfg.Media.CloudinaryURL, cfg.Media.Folder)
		if err != nil {
			return err
		}
		uploader = cld
	}

	mode := chat.Lenient
	if cfg.Chat.StrictClassify {
		mode = chat.Strict
	}
	app := handlers.NewApp(&handlers.Handler{
		Store:    client,
		Media:    uploader,
		Mode:     mode,
		Location: time.Local,
	}, cfg.Auth.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting", "addr", cfg.Server.Addr)
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("server_shutting_down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber_shutdown_error", "error", err)
	}
	logger.Info("server_stopped")
	return nil
}

func openTree(cfg *config.Config) (store.Tree, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		return store.OpenPostgres(cfg.Store.DatabaseURL)
	default:
		if err := os.MkdirAll(cfg.Store.PebblePath, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", cfg.Store.PebblePath, err)
		}
		return store.OpenPebble(cfg.Store.PebblePath, nil)
	}
}
