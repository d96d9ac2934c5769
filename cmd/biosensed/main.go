package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"biosense/internal/api"
	"biosense/internal/config"
	"biosense/internal/events"
	"biosense/internal/ingest"
	"biosense/internal/live"
	"biosense/internal/logging"
	"biosense/internal/model"
	"biosense/internal/pipeline"
	"biosense/internal/results"
	"biosense/internal/storage"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "biosense.yaml", "path to the config file")
	writeDefault := flag.Bool("write-default-config", false, "write the default config to the given path and exit")
	flag.Parse()

	path := config.ResolvePath(*configPath)

	if *writeDefault {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			fmt.Fprintln(os.Stderr, "write config:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", path)
		return
	}

	mgr, err := config.NewManager(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	cfg := mgr.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting biosensed", "version", version, "config", path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		initCancel()
		if err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	publisher := live.NewPublisher(cfg.Live, logger)
	if publisher != nil {
		if err := publisher.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup", "addr", cfg.Live.Addr, "err", err)
		} else {
			logger.Info("live publishing enabled", "addr", cfg.Live.Addr, "channel", cfg.Live.Channel)
		}
		defer publisher.Close()
	}

	resultsStore := results.NewStore(cfg.Results.StoreLimit)
	eventStore := events.NewStore(cfg.Events.StoreLimit)

	engine := pipeline.NewEngine(cfg, logger, resultsStore, eventStore, store, publisher)

	packets := make(chan model.RawPacket, cfg.Ingest.ChannelBuffer)
	engine.Start(ctx, packets)

	ingest.StartKafka(ctx, mgr, packets, logger)
	ingest.StartMQTT(ctx, mgr, packets, logger)
	ingest.StartReplay(ctx, mgr, packets, logger)

	api.Start(ctx, mgr, resultsStore, eventStore, engine, logger, version)

	stopWatch := make(chan struct{})
	go mgr.Watch(3*time.Second, func(next *config.Config) {
		logger.Info("config reloaded", "path", path)
		engine.UpdateConfig(next)
	}, func(err error) {
		logger.Warn("config reload failed", "err", err)
	}, stopWatch)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig.String())

	close(stopWatch)
	cancel()
	logger.Info("stopped")
}
