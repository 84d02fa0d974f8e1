package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

const serperNewsURL = "https://google.serper.dev/news"

// SerperClient fetches recent headlines from the Serper news API.
type SerperClient struct {
	apiKey string
	url    string
	client *http.Client
}

func NewSerperClient(apiKey string) *SerperClient {
	return &SerperClient{
		apiKey: apiKey,
		url:    serperNewsURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewSerperClientWithURL is used by tests to point at a stub server.
func NewSerperClientWithURL(apiKey, url string) *SerperClient {
	c := NewSerperClient(apiKey)
	c.url = url
	return c
}

func (s *SerperClient) RecentNews(ctx context.Context, query string, limit int) ([]domain.NewsItem, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"q":   query,
		"gl":  "us",
		"hl":  "en",
		"num": limit,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("serper API error: %s", string(body))
	}

	var result struct {
		News []domain.NewsItem `json:"news"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if limit > 0 && len(result.News) > limit {
		result.News = result.News[:limit]
	}
	return result.News, nil
}
