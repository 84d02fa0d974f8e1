package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/config"
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/logger"
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/storage"
	"github.com/kimjunyun7/binance-futures/internal/web"
)

// Read-only dashboard over an existing trading database. Useful for
// inspecting results while the bot itself is stopped.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to open sqlite", zap.Error(err))
	}
	defer store.Close()

	if err := web.InitTemplates(cfg.Server.TemplateDir); err != nil {
		log.Fatal("Failed to initialize templates", zap.Error(err))
	}

	server := web.NewServer(cfg.Server.Port, store, store, store, nil, cfg.Symbol, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	server.Shutdown(context.Background())
}
