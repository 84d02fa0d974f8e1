package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

const (
	BinanceBaseURL = "https://fapi.binance.com"
	BinanceWSURL   = "wss://fstream.binance.com/ws"

	recvWindowMs = 5000
)

// BinanceAdapter talks to the Binance USDT-M futures API. REST covers
// market data, account state and order placement; mark-price updates
// stream over websocket to registered callbacks.
type BinanceAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client
	wsConn    *websocket.Conn
	callbacks []func(symbol string, price float64)
	mu        sync.Mutex
}

func NewBinanceAdapter(apiKey, apiSecret, baseURL, wsURL string) *BinanceAdapter {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	if wsURL == "" {
		wsURL = BinanceWSURL
	}
	return &BinanceAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// --- REST API ---

func (b *BinanceAdapter) sign(query string) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// sendSigned issues an authenticated request. Binance signs the full
// query string (timestamp and recvWindow included) and expects the
// signature appended as the last parameter.
func (b *BinanceAdapter) sendSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindowMs))

	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("binance API error: %s", string(respBody))
	}

	return respBody, nil
}

func (b *BinanceAdapter) sendPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("binance API error: %s", string(respBody))
	}

	return respBody, nil
}

func (b *BinanceAdapter) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := b.sendPublic(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return 0, err
	}

	var result struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", result.Price, err)
	}
	return price, nil
}

func (b *BinanceAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := b.sendPublic(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}

	// Each kline is a mixed array: open time (ms), open, high, low,
	// close, volume as strings, then fields we ignore. The response is
	// already in chronological order.
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, ok := k[0].(float64)
		if !ok {
			continue
		}
		c := domain.Candle{Time: int64(openTime) / 1000}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		valid := true
		for i, dst := range fields {
			s, ok := k[i+1].(string)
			if !ok {
				valid = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				valid = false
				break
			}
			*dst = v
		}
		if valid {
			candles = append(candles, c)
		}
	}

	return candles, nil
}

func (b *BinanceAdapter) GetBalance(ctx context.Context) (float64, error) {
	body, err := b.sendSigned(ctx, http.MethodGet, "/fapi/v2/balance", nil)
	if err != nil {
		return 0, err
	}

	var result []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}

	for _, entry := range result {
		if entry.Asset == "USDT" {
			bal, err := strconv.ParseFloat(entry.AvailableBalance, 64)
			if err != nil {
				return 0, fmt.Errorf("parse balance %q: %w", entry.AvailableBalance, err)
			}
			return bal, nil
		}
	}
	return 0, fmt.Errorf("no USDT balance in account")
}

func (b *BinanceAdapter) GetPositionAmount(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := b.sendSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return 0, err
	}

	var result []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}

	for _, entry := range result {
		if entry.Symbol != symbol {
			continue
		}
		amt, err := strconv.ParseFloat(entry.PositionAmt, 64)
		if err != nil {
			return 0, fmt.Errorf("parse position amount %q: %w", entry.PositionAmt, err)
		}
		return amt, nil
	}
	return 0, nil
}

func (b *BinanceAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	_, err := b.sendSigned(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	return err
}

func (b *BinanceAdapter) placeOrder(ctx context.Context, params url.Values) error {
	_, err := b.sendSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	return err
}

func (b *BinanceAdapter) MarketBuy(ctx context.Context, symbol string, quantity float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(quantity))
	return b.placeOrder(ctx, params)
}

func (b *BinanceAdapter) MarketSell(ctx context.Context, symbol string, quantity float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(quantity))
	return b.placeOrder(ctx, params)
}

// PlaceStopLoss places a reduce-only stop-market order on the opposite
// side of the position, so a fill always shrinks exposure.
func (b *BinanceAdapter) PlaceStopLoss(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error {
	return b.placeTrigger(ctx, symbol, side, quantity, stopPrice, "STOP_MARKET")
}

func (b *BinanceAdapter) PlaceTakeProfit(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error {
	return b.placeTrigger(ctx, symbol, side, quantity, stopPrice, "TAKE_PROFIT_MARKET")
}

func (b *BinanceAdapter) placeTrigger(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64, orderType string) error {
	orderSide := "SELL"
	if side == domain.SideShort {
		orderSide = "BUY"
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", orderSide)
	params.Set("type", orderType)
	params.Set("quantity", formatQty(quantity))
	params.Set("stopPrice", formatQty(stopPrice))
	params.Set("reduceOnly", "true")
	return b.placeOrder(ctx, params)
}

func (b *BinanceAdapter) CancelOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	_, err := b.sendSigned(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	return err
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// --- WebSocket ---

func (b *BinanceAdapter) OnPriceUpdate(callback func(symbol string, price float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, callback)
}

func (b *BinanceAdapter) Subscribe(symbols []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wsConn == nil {
		c, _, err := websocket.DefaultDialer.Dial(b.wsURL, nil)
		if err != nil {
			return err
		}
		b.wsConn = c
		go b.readLoop()
	}

	return b.subscribe(symbols)
}

func (b *BinanceAdapter) subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@markPrice@1s"
	}

	subMsg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     time.Now().UnixMilli(),
	}
	return b.wsConn.WriteJSON(subMsg)
}

func (b *BinanceAdapter) readLoop() {
	defer func() {
		b.wsConn.Close()
		b.mu.Lock()
		b.wsConn = nil
		b.mu.Unlock()
	}()

	for {
		_, message, err := b.wsConn.ReadMessage()
		if err != nil {
			log.Println("WS read error:", err)
			return
		}

		var event struct {
			EventType string `json:"e"`
			Symbol    string `json:"s"`
			MarkPrice string `json:"p"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.EventType != "markPriceUpdate" {
			continue
		}

		price, err := strconv.ParseFloat(event.MarkPrice, 64)
		if err != nil {
			continue
		}

		b.mu.Lock()
		callbacks := make([]func(string, float64), len(b.callbacks))
		copy(callbacks, b.callbacks)
		b.mu.Unlock()

		for _, cb := range callbacks {
			cb(event.Symbol, price)
		}
	}
}
