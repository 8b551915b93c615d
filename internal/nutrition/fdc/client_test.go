package fdc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodlog/internal/common/logger"
)

func newClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:  server.URL,
		APIKey:   apiKey,
		CacheTTL: time.Hour,
		CacheMax: 16,
	}, nil, logger.NewTestLogger(t))
}

// ==========================
// 1. Search
// ==========================

func TestSearch(t *testing.T) {
	requests := 0
	client := newClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/foods/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "banana", r.URL.Query().Get("query"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		w.Write([]byte(`{"foods":[{"fdcId":1105314,"description":"Banana, raw","brandOwner":""}]}`))
	})

	hits := client.Search(context.Background(), "banana")
	require.Len(t, hits, 1)
	assert.Equal(t, 1105314, hits[0].FdcID)

	client.Search(context.Background(), "banana")
	assert.Equal(t, 1, requests)
}

func TestSearch_DisabledWithoutAPIKey(t *testing.T) {
	requests := 0
	client := newClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		requests++
	})

	assert.False(t, client.Enabled())
	assert.Empty(t, client.Search(context.Background(), "banana"))
	assert.Zero(t, requests)
}

func TestSearch_FailureCachedAsEmpty(t *testing.T) {
	requests := 0
	client := newClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	assert.Empty(t, client.Search(context.Background(), "banana"))
	assert.Empty(t, client.Search(context.Background(), "banana"))
	assert.Equal(t, 1, requests)
}

// ==========================
// 2. Food Detail
// ==========================

func TestFood(t *testing.T) {
	requests := 0
	client := newClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/food/1105314", r.URL.Path)
		w.Write([]byte(`{
			"fdcId": 1105314,
			"description": "Banana, raw",
			"foodNutrients": [{"nutrientName":"Energy","unitName":"KCAL","value":89}],
			"foodPortions": [{"gramWeight":118,"portionDescription":"1 medium banana"}]
		}`))
	})

	food := client.Food(context.Background(), 1105314)
	require.NotNil(t, food)
	assert.Equal(t, "Banana, raw", food.Description)
	require.Len(t, food.FoodNutrients, 1)
	assert.Equal(t, 89.0, food.FoodNutrients[0].Value)
	require.Len(t, food.FoodPortions, 1)
	assert.Equal(t, 118.0, food.FoodPortions[0].GramWeight)

	client.Food(context.Background(), 1105314)
	assert.Equal(t, 1, requests)
}

func TestFood_FailureNegativeCached(t *testing.T) {
	requests := 0
	client := newClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	})

	assert.Nil(t, client.Food(context.Background(), 42))
	assert.Nil(t, client.Food(context.Background(), 42))
	assert.Equal(t, 1, requests)
}
