package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Zyldzkie/gas-guard/internal/alerts"
	"github.com/Zyldzkie/gas-guard/internal/api"
	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/gateway"
	"github.com/Zyldzkie/gas-guard/internal/logging"
	"github.com/Zyldzkie/gas-guard/internal/monitor"
	"github.com/Zyldzkie/gas-guard/internal/profile"
	"github.com/Zyldzkie/gas-guard/internal/storage"
	"github.com/Zyldzkie/gas-guard/internal/thresholds"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "gasguard.yaml", "path to config file")
	identity := flag.String("identity", "", "identity (email) to monitor; empty runs the API/admin surface only")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gasguard", version)
		return
	}

	path := config.ResolvePath(*configPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			fmt.Fprintln(os.Stderr, "cannot write default config:", err)
			os.Exit(1)
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel, "gasguard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if err := store.Init(ctx); err != nil {
		logger.Error("storage schema init failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	feedClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Feed.RedisAddr,
		Password: cfg.Feed.RedisPassword,
		DB:       cfg.Feed.RedisDB,
	})
	defer feedClient.Close()
	if err := feedClient.Ping(ctx).Err(); err != nil {
		logger.Warn("value feed unreachable at startup", "addr", cfg.Feed.RedisAddr, "err", err)
	}

	recent := alerts.NewStore(cfg.Alerts.StoreLimit)
	writer := alerts.NewWriter(store, recent, logging.WithComponent(logger, "writer"))
	provider := thresholds.NewRedisProvider(feedClient, cfg.Thresholds)
	resolver := profile.NewResolver(store)

	gateway.Start(ctx, mgr, feedClient, logging.WithComponent(logger, "gateway"))

	var session *monitor.Session
	if *identity != "" {
		session = monitor.NewSession(*identity, monitor.Deps{
			Resolver:   resolver,
			Thresholds: provider,
			Writer:     writer,
			FeedClient: feedClient,
			FeedConfig: cfg.Feed,
			Monitor:    cfg.Monitor,
			Logger:     logging.WithComponent(logger, "monitor"),
		})
		if err := session.Start(ctx); err != nil {
			switch {
			case errors.Is(err, profile.ErrBindingNotFound):
				logger.Error("cannot monitor: no profile for identity", "identity", *identity)
			case errors.Is(err, monitor.ErrNoHardwareID):
				logger.Error("cannot monitor: identity has no hardware id set", "identity", *identity)
			default:
				logger.Error("monitoring failed to start", "identity", *identity, "err", err)
			}
			os.Exit(1)
		}
		defer session.Stop()
	}

	var sessionStatus api.SessionStatus
	if session != nil {
		sessionStatus = session
	}
	api.Start(ctx, mgr, store, recent, sessionStatus, logging.WithComponent(logger, "api"), version)

	stop := make(chan struct{})
	go mgr.Watch(3*time.Second, func(newCfg *config.Config) {
		logger.Info("config reloaded", "path", mgr.Path())
		if session != nil {
			session.UpdateConfig(newCfg)
		}
	}, func(err error) {
		logger.Warn("config reload failed", "err", err)
	}, stop)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
		logger.Info("shutting down")
	case <-ctx.Done():
	}
	close(stop)
	cancel()
	time.Sleep(500 * time.Millisecond)
	logger.Info("exited")
}
