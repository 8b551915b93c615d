// Package fdc is the USDA FoodData Central lookup client. Without an API key
// the client is disabled and every lookup reports a miss; with one, failures
// follow the same never-fatal, negative-cached policy as the other provider.
package fdc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"foodlog/internal/common/cache"
	stderrors "foodlog/internal/common/errors"
	commonhttp "foodlog/internal/common/http"
	"foodlog/internal/common/logger"
	"foodlog/internal/common/metrics"
)

const providerName = "fooddata_central"

// Hit is a search result row.
type Hit struct {
	FdcID       int    `json:"fdcId"`
	Description string `json:"description"`
	BrandOwner  string `json:"brandOwner"`
}

// Nutrient is one entry of a food's nutrient table.
type Nutrient struct {
	NutrientName string  `json:"nutrientName"`
	UnitName     string  `json:"unitName"`
	Value        float64 `json:"value"`
}

// MeasureUnit names a household measure for a food portion.
type MeasureUnit struct {
	Name string `json:"name"`
}

// Portion is one food-portion candidate with its gram weight.
type Portion struct {
	GramWeight         float64     `json:"gramWeight"`
	PortionDescription string      `json:"portionDescription"`
	Modifier           string      `json:"modifier"`
	MeasureUnit        MeasureUnit `json:"measureUnit"`
}

// Food is the detail record for one fdcId.
type Food struct {
	FdcID           int        `json:"fdcId"`
	Description     string     `json:"description"`
	BrandOwner      string     `json:"brandOwner"`
	FoodNutrients   []Nutrient `json:"foodNutrients"`
	ServingSize     float64    `json:"servingSize"`
	ServingSizeUnit string     `json:"servingSizeUnit"`
	FoodPortions    []Portion  `json:"foodPortions"`
}

// Config holds the client settings. An empty APIKey disables the client.
type Config struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
	CacheMax int
}

type Client struct {
	config      Config
	httpClient  *commonhttp.Client
	searchCache *cache.LRU[string, []Hit]
	foodCache   *cache.LRU[string, *Food]
	remote      *cache.Remote
	logger      logger.Logger
}

func NewClient(cfg Config, remote *cache.Remote, log logger.Logger) *Client {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 7 * 24 * time.Hour
	}
	if cfg.CacheMax == 0 {
		cfg.CacheMax = 500
	}
	return &Client{
		config:      cfg,
		httpClient:  commonhttp.NewClient(15 * time.Second),
		searchCache: cache.NewLRU[string, []Hit](cfg.CacheMax, cfg.CacheTTL),
		foodCache:   cache.NewLRU[string, *Food](cfg.CacheMax, cfg.CacheTTL),
		remote:      remote,
		logger:      log,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.config.APIKey != ""
}

type searchResponse struct {
	Foods []Hit `json:"foods"`
}

// Search returns up to ten hits for a text query. Disabled or failed
// searches return an empty slice.
func (c *Client) Search(ctx context.Context, query string) []Hit {
	if !c.Enabled() {
		return []Hit{}
	}

	cacheKey := "fdc:search:" + strings.ToLower(query)
	if hits, ok := c.searchCache.Get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues("fdc", "hit").Inc()
		return hits
	}
	metrics.CacheEvents.WithLabelValues("fdc", "miss").Inc()

	if payload, ok := c.remote.Get(ctx, cacheKey); ok {
		var hits []Hit
		if err := json.Unmarshal(payload, &hits); err == nil {
			c.searchCache.Set(cacheKey, hits)
			return hits
		}
	}

	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("query", query)
	params.Set("pageSize", "10")

	var data searchResponse
	if err := c.httpClient.GetJSON(ctx, c.config.BaseURL+"/foods/search?"+params.Encode(), &data); err != nil {
		provErr := stderrors.ClassifyProviderError(providerName, err)
		c.logger.Warn("fooddata central search failed", map[string]interface{}{
			"query":     query,
			"error":     provErr.Error(),
			"code":      string(provErr.Code),
			"retryable": provErr.Retryable,
		})
		metrics.ProviderLookups.WithLabelValues("fooddata_central", "text", "error").Inc()
		c.storeSearch(ctx, cacheKey, []Hit{})
		return []Hit{}
	}

	hits := data.Foods
	if hits == nil {
		hits = []Hit{}
	}
	if len(hits) == 0 {
		metrics.ProviderLookups.WithLabelValues("fooddata_central", "text", "miss").Inc()
	} else {
		metrics.ProviderLookups.WithLabelValues("fooddata_central", "text", "hit").Inc()
	}
	c.storeSearch(ctx, cacheKey, hits)
	return hits
}

// Food returns the detail record for a search hit, or nil on miss/failure.
func (c *Client) Food(ctx context.Context, fdcID int) *Food {
	if !c.Enabled() {
		return nil
	}

	cacheKey := fmt.Sprintf("fdc:food:%d", fdcID)
	if food, ok := c.foodCache.Get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues("fdc", "hit").Inc()
		return food
	}
	metrics.CacheEvents.WithLabelValues("fdc", "miss").Inc()

	if payload, ok := c.remote.Get(ctx, cacheKey); ok {
		var food *Food
		if err := json.Unmarshal(payload, &food); err == nil {
			c.foodCache.Set(cacheKey, food)
			return food
		}
	}

	params := url.Values{}
	params.Set("api_key", c.config.APIKey)

	var food Food
	if err := c.httpClient.GetJSON(ctx, fmt.Sprintf("%s/food/%d?%s", c.config.BaseURL, fdcID, params.Encode()), &food); err != nil {
		provErr := stderrors.ClassifyProviderError(providerName, err)
		c.logger.Warn("fooddata central food lookup failed", map[string]interface{}{
			"fdc_id":    fdcID,
			"error":     provErr.Error(),
			"code":      string(provErr.Code),
			"retryable": provErr.Retryable,
		})
		metrics.ProviderLookups.WithLabelValues("fooddata_central", "text", "error").Inc()
		c.storeFood(ctx, cacheKey, nil)
		return nil
	}

	metrics.ProviderLookups.WithLabelValues("fooddata_central", "text", "hit").Inc()
	c.storeFood(ctx, cacheKey, &food)
	return &food
}

func (c *Client) storeSearch(ctx context.Context, key string, hits []Hit) {
	c.searchCache.Set(key, hits)
	if payload, err := json.Marshal(hits); err == nil {
		c.remote.Set(ctx, key, payload)
	}
}

func (c *Client) storeFood(ctx context.Context, key string, food *Food) {
	c.foodCache.Set(key, food)
	if payload, err := json.Marshal(food); err == nil {
		c.remote.Set(ctx, key, payload)
	}
}
