package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ta-streamv1/internal/indstream"
	"ta-streamv1/internal/logger"
)

func main() {
	cfg := indstream.LoadConfig()
	log := logger.Init("indstream", logger.ParseLevel(cfg.LogLevel))
	log.Info("configuration loaded", "feed", cfg.FeedURL, "redis", cfg.RedisAddr,
		"indicators", len(cfg.Specs))

	svc, err := indstream.New(cfg, log)
	if err != nil {
		log.Error("init failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}
