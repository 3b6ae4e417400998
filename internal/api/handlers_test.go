package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b3quotes/b3-quote-service/internal/cache"
	"github.com/b3quotes/b3-quote-service/internal/models"
)

type fakeStore struct {
	quotes []*models.Quote
}

func (s *fakeStore) forTicker(ticker string) []*models.Quote {
	var out []*models.Quote
	for _, q := range s.quotes {
		if q.Ticker == ticker {
			out = append(out, q)
		}
	}
	return out
}

func (s *fakeStore) GetLatestQuote(ticker string) (*models.Quote, error) {
	quotes := s.forTicker(ticker)
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quotes found for %s", ticker)
	}
	latest := quotes[0]
	for _, q := range quotes[1:] {
		if q.TradingDate.After(latest.TradingDate) {
			latest = q
		}
	}
	return latest, nil
}

func (s *fakeStore) GetQuoteHistory(ticker string, limit int, from, to *time.Time) ([]*models.Quote, error) {
	var out []*models.Quote
	for _, q := range s.forTicker(ticker) {
		if from != nil && q.TradingDate.Before(*from) {
			continue
		}
		if to != nil && q.TradingDate.After(*to) {
			continue
		}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) GetQuotesByDate(date time.Time) ([]*models.Quote, error) {
	var out []*models.Quote
	for _, q := range s.quotes {
		if q.TradingDate.Equal(date) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeStore) ListTickers() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, q := range s.quotes {
		if !seen[q.Ticker] {
			seen[q.Ticker] = true
			out = append(out, q.Ticker)
		}
	}
	return out, nil
}

func (s *fakeStore) ListTickersActive(from, to time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, q := range s.quotes {
		if q.TradingDate.Before(from) || q.TradingDate.After(to) {
			continue
		}
		if !seen[q.Ticker] {
			seen[q.Ticker] = true
			out = append(out, q.Ticker)
		}
	}
	return out, nil
}

func (s *fakeStore) ListTradingDates() ([]time.Time, error) {
	seen := map[time.Time]bool{}
	var out []time.Time
	for _, q := range s.quotes {
		if !seen[q.TradingDate] {
			seen[q.TradingDate] = true
			out = append(out, q.TradingDate)
		}
	}
	return out, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.Quote
	gets    int
	hits    int
}

func (c *fakeCache) GetLatest(_ context.Context, ticker string) (*models.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if q, ok := c.entries[ticker]; ok {
		c.hits++
		return q, nil
	}
	return nil, cache.ErrMiss
}

func (c *fakeCache) SetLatest(_ context.Context, q *models.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*models.Quote)
	}
	c.entries[q.Ticker] = q
	return nil
}

func testQuote(ticker string, date time.Time, close string) *models.Quote {
	c := decimal.RequireFromString(close)
	return &models.Quote{
		Ticker: ticker, TradingDate: date,
		Open: c, Close: c, High: c, Low: c,
		Volume: 1000, IngestedAt: time.Now(),
	}
}

func newTestServer(store QuoteStore, quoteCache QuoteCache) *httptest.Server {
	handler := NewHandler(store, quoteCache, slog.New(slog.DiscardHandler))
	return httptest.NewServer(SetupRoutes(handler))
}

func get(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestHandlers(t *testing.T) {
	day1 := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	store := &fakeStore{quotes: []*models.Quote{
		testQuote("PETR4", day1, "32.50"),
		testQuote("PETR4", day2, "33.10"),
		testQuote("VALE3", day1, "68.42"),
	}}

	srv := newTestServer(store, nil)
	defer srv.Close()

	t.Run("health check", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/health")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("latest quote", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/quotes/PETR4/latest")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "PETR4", body["ticker"])
		assert.Equal(t, "33.10", body["close"])
	})

	t.Run("latest quote uppercases the ticker", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/quotes/petr4/latest")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "PETR4", body["ticker"])
	})

	t.Run("latest quote for unknown ticker is 404", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/quotes/NOPE3/latest")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("history with range filter", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/quotes/PETR4?from=2025-10-01&to=2025-10-03")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("history rejects bad limit", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/quotes/PETR4?limit=9999")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("history rejects bad dates", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/quotes/PETR4?from=03-10-2025")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("history for unknown ticker is 404", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/quotes/NOPE3")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("tickers", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/tickers")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("active tickers requires a range", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/tickers/active")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("active tickers within range", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/tickers/active?from=2025-10-04&to=2025-10-07")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("trading dates", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/dates")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("quotes by date", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/dates/2025-10-03/quotes")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("quotes by date rejects bad date", func(t *testing.T) {
		resp, _ := get(t, srv.URL+"/api/v1/dates/not-a-date/quotes")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLatestQuoteCaching(t *testing.T) {
	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{quotes: []*models.Quote{testQuote("PETR4", day, "33.10")}}
	qc := &fakeCache{}

	srv := newTestServer(store, qc)
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/api/v1/quotes/PETR4/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, qc.gets)
	assert.Zero(t, qc.hits)

	resp, body := get(t, srv.URL+"/api/v1/quotes/PETR4/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, qc.gets)
	assert.Equal(t, 1, qc.hits)
	assert.Equal(t, "PETR4", body["ticker"])
}
