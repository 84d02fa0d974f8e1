package web

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/usecase"
)

// Templates
var templates *template.Template

func InitTemplates(dir string) error {
	funcs := template.FuncMap{
		"mulPct": func(v float64) float64 { return v * 100 },
	}
	var err error
	templates, err = template.New("").Funcs(funcs).ParseGlob(filepath.Join(dir, "*.html"))
	return err
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	open, err := s.positions.FindOpen(ctx, s.symbol)
	if err != nil {
		s.logger.Error("Failed to load open position", zap.Error(err))
	}

	closed, err := s.positions.ListClosed(ctx, 0, time.Time{})
	if err != nil {
		s.logger.Error("Failed to load closed positions", zap.Error(err))
	}

	adviceLog, err := s.advice.ListAdvice(ctx, 20)
	if err != nil {
		s.logger.Error("Failed to load advice log", zap.Error(err))
	}

	var price float64
	if s.market != nil {
		if p, err := s.market.CurrentPrice(ctx); err == nil {
			price = p
		}
	}

	var balance float64
	hasBalance := false
	if s.balance != nil {
		b, err := s.balance.Balance(ctx)
		switch {
		case err == nil:
			balance = b
			hasBalance = true
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.Error("Failed to load wallet balance", zap.Error(err))
		}
	}

	recent := closed
	if len(recent) > 50 {
		recent = recent[:50]
	}

	data := map[string]interface{}{
		"Symbol":       s.symbol,
		"CurrentPrice": price,
		"Balance":      balance,
		"HasBalance":   hasBalance,
		"Open":         open,
		"Unrealized":   unrealizedPnL(open, price),
		"Closed":       recent,
		"Report":       usecase.SummarizeBySide(closed),
		"Advice":       adviceLog,
		"GeneratedAt":  time.Now().UTC(),
	}

	if err := templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.logger.Error("Template error", zap.Error(err))
		http.Error(w, "Internal Server Error", 500)
	}
}

// unrealizedPnL is exposed to the template for the open position row.
func unrealizedPnL(p *domain.Position, price float64) float64 {
	if p == nil || price == 0 {
		return 0
	}
	if p.Side == domain.SideLong {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}
