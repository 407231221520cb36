package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/spl/pkg/config"
	"github.com/oarkflow/spl/pkg/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("SPL_CONFIG"), "Path to the configuration file (BCL, YAML, or JSON)")
	addr := flag.String("addr", "", "Listen address, overrides the config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	cfg.Apply()
	logger := config.NewLogger(cfg.Log, os.Stderr)

	srv, err := server.NewServer(server.Config{
		Version:        cfg.Server.Version,
		CacheSize:      cfg.Server.CacheSize,
		MaxSourceBytes: cfg.Server.MaxSourceBytes,
		JournalFile:    cfg.Server.JournalFile,
		Logger:         logger,
		AccessLog:      true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := srv.Start(cfg.Server.Address); err != nil {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()
	<-ctx.Done()

	done := make(chan error, 1)
	go func() { done <- srv.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
			os.Exit(1)
		}
	case <-time.After(30 * time.Second):
		logger.Error().Msg("shutdown timeout reached, forcing exit")
		os.Exit(1)
	}
}
