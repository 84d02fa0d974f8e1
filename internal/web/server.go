package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/usecase"
)

// Server exposes the trading dashboard and a small JSON API over the
// position ledger. The market service is optional: the read-only
// dashboard binary runs without one and the live endpoints answer 503.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	positions domain.PositionRepository
	advice    domain.AdviceRepository
	balance   usecase.BalanceSource // nil hides the balance card
	market    *usecase.MarketService
	symbol    string
	logger    *zap.Logger
}

func NewServer(
	port int,
	positions domain.PositionRepository,
	advice domain.AdviceRepository,
	balance usecase.BalanceSource,
	market *usecase.MarketService,
	symbol string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		positions: positions,
		advice:    advice,
		balance:   balance,
		market:    market,
		symbol:    symbol,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Dashboard
	s.router.HandleFunc("GET /", s.handleDashboard)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handlePositionsJSON)
	s.router.HandleFunc("GET /api/positions/{id}", s.handlePositionJSON)
	s.router.HandleFunc("GET /api/positions/{id}/adjustments", s.handleAdjustmentsJSON)

	// Advice log
	s.router.HandleFunc("GET /api/advice", s.handleAdviceJSON)

	// Performance
	s.router.HandleFunc("GET /api/stats", s.handleStatsJSON)

	// Market data
	s.router.HandleFunc("GET /api/price", s.handlePriceJSON)
	s.router.HandleFunc("GET /api/candles", s.handleCandlesJSON)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
