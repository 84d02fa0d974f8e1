package news

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "bitcoin", payload["q"])
		assert.Equal(t, "us", payload["gl"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"news": []map[string]string{
				{"title": "Bitcoin breaks above 30k", "date": "2 hours ago"},
				{"title": "ETF inflows accelerate", "date": "5 hours ago"},
				{"title": "Miner selling pressure eases", "date": "1 day ago"},
			},
		})
	}))
	defer srv.Close()

	client := NewSerperClientWithURL("secret", srv.URL)
	items, err := client.RecentNews(context.Background(), "bitcoin", 2)
	require.NoError(t, err)

	// The limit caps what the server over-delivers.
	require.Len(t, items, 2)
	assert.Equal(t, "Bitcoin breaks above 30k", items[0].Title)
	assert.Equal(t, "2 hours ago", items[0].Date)
}

func TestRecentNewsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Unauthorized"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewSerperClientWithURL("bad-key", srv.URL)
	_, err := client.RecentNews(context.Background(), "bitcoin", 5)
	assert.Error(t, err)
}
