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
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/advisor"
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/exchange"
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/logger"
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/news"
	"github.com/kimjunyun7/binance-futures/internal/infrastructure/storage"
	"github.com/kimjunyun7/binance-futures/internal/scheduler"
	"github.com/kimjunyun7/binance-futures/internal/usecase"
	"github.com/kimjunyun7/binance-futures/internal/web"
)

// Paper-trading variant: real market data and advice, simulated fills
// against a persisted wallet. No exchange credentials needed.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Printf("Failed to load secrets: %v\n", err)
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
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitWallet(context.Background(), cfg.Trading.InitialBalance); err != nil {
		log.Fatal("Failed to init wallet", zap.Error(err))
	}

	// Public market data only; no keys means signed endpoints are never hit.
	binance := exchange.NewBinanceAdapter("", "", cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint)

	prompt, err := advisor.LoadPromptFile(cfg.Advisor.PromptFile)
	if err != nil {
		log.Fatal("Failed to load prompt file", zap.Error(err))
	}
	aiAdvisor := advisor.NewOpenAIAdvisor(secrets.OpenAIAPIKey, cfg.Advisor.BaseURL, cfg.Advisor.Model, prompt, log)

	ledger := usecase.NewLedger(store, store)
	marketService := newMarketService(binance, secrets.SerperAPIKey, store, cfg, log)
	executor := usecase.NewPaperExecutor(store, log)
	// nil exchange keeps the trader off signed endpoints entirely.
	trader := usecase.NewTraderService(ledger, marketService, aiAdvisor, store, executor, nil, usecase.TraderConfig{
		Symbol:         cfg.Symbol,
		MinMarginUSDT:  cfg.Trading.MinMarginUSDT,
		ReviewInterval: cfg.ReviewInterval(),
	}, log)

	binance.OnPriceUpdate(func(symbol string, price float64) {
		marketService.SetLastPrice(symbol, price)
	})
	if err := binance.Subscribe([]string{cfg.Symbol}); err != nil {
		log.Error("Failed to subscribe to price stream, falling back to REST", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(cfg.PollInterval(), cfg.ErrorBackoff(), trader, log)
	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error("Scheduler stopped", zap.Error(err))
		}
	}()

	if err := web.InitTemplates(cfg.Server.TemplateDir); err != nil {
		log.Fatal("Failed to initialize templates", zap.Error(err))
	}
	server := web.NewServer(cfg.Server.Port, store, store, store, marketService, cfg.Symbol, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	sched.Stop()
	cancel()
	server.Shutdown(context.Background())
}

func newMarketService(
	binance *exchange.BinanceAdapter,
	serperKey string,
	store *storage.SQLiteStore,
	cfg *config.Config,
	log *zap.Logger,
) *usecase.MarketService {
	query := cfg.Symbol
	if len(query) > 4 && query[len(query)-4:] == "USDT" {
		query = query[:len(query)-4]
	}
	if serperKey == "" {
		log.Warn("SERPER_API_KEY not set, trading without news context")
		return usecase.NewMarketService(binance, nil, store, store, store, cfg.Symbol, query, log)
	}
	return usecase.NewMarketService(binance, news.NewSerperClient(serperKey), store, store, store, cfg.Symbol, query, log)
}
