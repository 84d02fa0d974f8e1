package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/usecase"
)

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handlePositionsJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}

	open, err := s.positions.FindOpen(ctx, s.symbol)
	if err != nil {
		s.logger.Error("Failed to load open position", zap.Error(err))
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}
	closed, err := s.positions.ListClosed(ctx, limit, since)
	if err != nil {
		s.logger.Error("Failed to list closed positions", zap.Error(err))
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"open":   open,
		"closed": closed,
	})
}

func (s *Server) handlePositionJSON(w http.ResponseWriter, r *http.Request) {
	pos, err := s.positions.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Position not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to load position", zap.Error(err))
		http.Error(w, "Failed to load position", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, pos)
}

func (s *Server) handleAdjustmentsJSON(w http.ResponseWriter, r *http.Request) {
	adjustments, err := s.positions.ListAdjustments(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("Failed to list adjustments", zap.Error(err))
		http.Error(w, "Failed to load adjustments", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, adjustments)
}

func (s *Server) handleAdviceJSON(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := s.advice.ListAdvice(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list advice", zap.Error(err))
		http.Error(w, "Failed to load advice", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, records)
}

func (s *Server) handleStatsJSON(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}

	closed, err := s.positions.ListClosed(r.Context(), 0, since)
	if err != nil {
		s.logger.Error("Failed to list closed positions", zap.Error(err))
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, usecase.SummarizeBySide(closed))
}

func (s *Server) handlePriceJSON(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		http.Error(w, "Market data unavailable", http.StatusServiceUnavailable)
		return
	}
	price, err := s.market.CurrentPrice(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch price", zap.Error(err))
		http.Error(w, "Failed to fetch price", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"symbol": s.symbol,
		"price":  price,
	})
}

func (s *Server) handleCandlesJSON(w http.ResponseWriter, r *http.Request) {
	if s.market == nil {
		http.Error(w, "Market data unavailable", http.StatusServiceUnavailable)
		return
	}

	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "15m"
	}
	limit := 96
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	candles, err := s.market.Candles(r.Context(), interval, limit)
	if err != nil {
		s.logger.Error("Failed to fetch candles", zap.Error(err))
		http.Error(w, "Failed to fetch candles", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, candles)
}
