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

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
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
	if secrets.BinanceAPIKey == "" || secrets.BinanceSecretKey == "" {
		fmt.Println("BINANCE_API_KEY and BINANCE_SECRET_KEY are required for live trading")
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange
	binance := exchange.NewBinanceAdapter(
		secrets.BinanceAPIKey,
		secrets.BinanceSecretKey,
		cfg.Exchange.RESTEndpoint,
		cfg.Exchange.WSEndpoint,
	)

	// 5. Init Advisor + News
	prompt, err := advisor.LoadPromptFile(cfg.Advisor.PromptFile)
	if err != nil {
		log.Fatal("Failed to load prompt file", zap.Error(err))
	}
	aiAdvisor := advisor.NewOpenAIAdvisor(secrets.OpenAIAPIKey, cfg.Advisor.BaseURL, cfg.Advisor.Model, prompt, log)

	var newsProvider *news.SerperClient
	if secrets.SerperAPIKey != "" {
		newsProvider = news.NewSerperClient(secrets.SerperAPIKey)
	} else {
		log.Warn("SERPER_API_KEY not set, trading without news context")
	}

	// 6. Init Services
	ledger := usecase.NewLedger(store, store)
	balance := usecase.ExchangeBalance{Exchange: binance}
	marketService := newMarketService(binance, newsProvider, store, balance, cfg, log)
	executor := usecase.NewTradeExecutor(binance, log)
	trader := usecase.NewTraderService(ledger, marketService, aiAdvisor, store, executor, binance, usecase.TraderConfig{
		Symbol:         cfg.Symbol,
		MinMarginUSDT:  cfg.Trading.MinMarginUSDT,
		ReviewInterval: cfg.ReviewInterval(),
	}, log)

	// 7. Stream prices into the market service
	binance.OnPriceUpdate(func(symbol string, price float64) {
		marketService.SetLastPrice(symbol, price)
	})
	if err := binance.Subscribe([]string{cfg.Symbol}); err != nil {
		log.Error("Failed to subscribe to price stream, falling back to REST", zap.Error(err))
	}

	// 8. Start Trading Loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(cfg.PollInterval(), cfg.ErrorBackoff(), trader, log)
	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error("Scheduler stopped", zap.Error(err))
		}
	}()

	// 9. Start Web Server
	if err := web.InitTemplates(cfg.Server.TemplateDir); err != nil {
		log.Fatal("Failed to initialize templates", zap.Error(err))
	}
	server := web.NewServer(cfg.Server.Port, store, store, balance, marketService, cfg.Symbol, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 10. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	sched.Stop()
	cancel()
	server.Shutdown(context.Background())
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.File != "" {
		return logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	}
	return logger.NewLogger(cfg.Logging.Level)
}

func newMarketService(
	binance *exchange.BinanceAdapter,
	newsProvider *news.SerperClient,
	store *storage.SQLiteStore,
	balance usecase.BalanceSource,
	cfg *config.Config,
	log *zap.Logger,
) *usecase.MarketService {
	// A typed nil in the interface would dodge the provider nil checks.
	if newsProvider == nil {
		return usecase.NewMarketService(binance, nil, store, store, balance, cfg.Symbol, newsQuery(cfg.Symbol), log)
	}
	return usecase.NewMarketService(binance, newsProvider, store, store, balance, cfg.Symbol, newsQuery(cfg.Symbol), log)
}

func newsQuery(symbol string) string {
	if len(symbol) > 4 && symbol[len(symbol)-4:] == "USDT" {
		return symbol[:len(symbol)-4]
	}
	return symbol
}
