// Package openfoodfacts is the Open Food Facts lookup client. Lookups never
// fail the caller: network or non-200 outcomes are logged, cached as
// negative results for the full TTL, and reported as a miss.
package openfoodfacts

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

const providerName = "open_food_facts"

const fields = "product_name,brands,code,nutriments,serving_size,quantity,product_quantity,product_quantity_unit"

// Product is the subset of an Open Food Facts product the resolver consumes.
// Nutriments stays a loose map: OFF key names vary per product and the
// resolver picks the ones it understands.
type Product struct {
	Code                string                 `json:"code"`
	ProductName         string                 `json:"product_name"`
	Brands              string                 `json:"brands"`
	Nutriments          map[string]interface{} `json:"nutriments"`
	ServingSize         string                 `json:"serving_size"`
	Quantity            string                 `json:"quantity"`
	ProductQuantity     interface{}            `json:"product_quantity"`
	ProductQuantityUnit string                 `json:"product_quantity_unit"`
}

// Config holds the client settings.
type Config struct {
	BaseURL  string
	CacheTTL time.Duration
	CacheMax int
}

// Client queries Open Food Facts with an in-process TTL+LRU cache and an
// optional shared Redis tier in front of the network.
type Client struct {
	config       Config
	httpClient   *commonhttp.Client
	productCache *cache.LRU[string, *Product]
	searchCache  *cache.LRU[string, []Product]
	remote       *cache.Remote
	logger       logger.Logger
}

func NewClient(cfg Config, remote *cache.Remote, log logger.Logger) *Client {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 7 * 24 * time.Hour
	}
	if cfg.CacheMax == 0 {
		cfg.CacheMax = 500
	}
	return &Client{
		config:       cfg,
		httpClient:   commonhttp.NewClient(15 * time.Second),
		productCache: cache.NewLRU[string, *Product](cfg.CacheMax, cfg.CacheTTL),
		searchCache:  cache.NewLRU[string, []Product](cfg.CacheMax, cfg.CacheTTL),
		remote:       remote,
		logger:       log,
	}
}

type productResponse struct {
	Status  int      `json:"status"`
	Product *Product `json:"product"`
}

// ProductByBarcode returns the product for an EAN/UPC barcode, or nil when
// the product is unknown or the provider is unreachable.
func (c *Client) ProductByBarcode(ctx context.Context, barcode string) *Product {
	cacheKey := "off:barcode:" + barcode
	if p, ok := c.productCache.Get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues("off", "hit").Inc()
		return p
	}
	metrics.CacheEvents.WithLabelValues("off", "miss").Inc()

	if payload, ok := c.remote.Get(ctx, cacheKey); ok {
		var p *Product
		if err := json.Unmarshal(payload, &p); err == nil {
			c.productCache.Set(cacheKey, p)
			return p
		}
	}

	u := fmt.Sprintf("%s/api/v2/product/%s?fields=%s",
		c.config.BaseURL, url.PathEscape(barcode), url.QueryEscape(fields))

	var data productResponse
	if err := c.httpClient.GetJSON(ctx, u, &data); err != nil {
		provErr := stderrors.ClassifyProviderError(providerName, err)
		c.logger.Warn("open food facts barcode lookup failed", map[string]interface{}{
			"barcode":   barcode,
			"error":     provErr.Error(),
			"code":      string(provErr.Code),
			"retryable": provErr.Retryable,
		})
		metrics.ProviderLookups.WithLabelValues("open_food_facts", "barcode", "error").Inc()
		c.storeProduct(ctx, cacheKey, nil)
		return nil
	}

	if data.Status != 1 || data.Product == nil {
		metrics.ProviderLookups.WithLabelValues("open_food_facts", "barcode", "miss").Inc()
		c.storeProduct(ctx, cacheKey, nil)
		return nil
	}

	metrics.ProviderLookups.WithLabelValues("open_food_facts", "barcode", "hit").Inc()
	c.storeProduct(ctx, cacheKey, data.Product)
	return data.Product
}

type searchResponse struct {
	Products []Product `json:"products"`
}

// Search runs a text search, optionally biased to a country. A failed or
// empty search is cached as an empty slice.
func (c *Client) Search(ctx context.Context, query, countryISO2 string) []Product {
	cacheKey := fmt.Sprintf("off:search:%s:%s", strings.ToUpper(countryISO2), strings.ToLower(query))
	if hits, ok := c.searchCache.Get(cacheKey); ok {
		metrics.CacheEvents.WithLabelValues("off", "hit").Inc()
		return hits
	}
	metrics.CacheEvents.WithLabelValues("off", "miss").Inc()

	if payload, ok := c.remote.Get(ctx, cacheKey); ok {
		var hits []Product
		if err := json.Unmarshal(payload, &hits); err == nil {
			c.searchCache.Set(cacheKey, hits)
			return hits
		}
	}

	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("page_size", "10")
	params.Set("fields", fields)
	if countryISO2 != "" {
		// Country hint is best-effort; OFF ignores unsupported values.
		params.Set("cc", strings.ToLower(countryISO2))
	}

	var data searchResponse
	if err := c.httpClient.GetJSON(ctx, c.config.BaseURL+"/api/v2/search?"+params.Encode(), &data); err != nil {
		provErr := stderrors.ClassifyProviderError(providerName, err)
		c.logger.Warn("open food facts search failed", map[string]interface{}{
			"query":     query,
			"error":     provErr.Error(),
			"code":      string(provErr.Code),
			"retryable": provErr.Retryable,
		})
		metrics.ProviderLookups.WithLabelValues("open_food_facts", "text", "error").Inc()
		c.storeSearch(ctx, cacheKey, []Product{})
		return []Product{}
	}

	hits := data.Products
	if hits == nil {
		hits = []Product{}
	}
	if len(hits) == 0 {
		metrics.ProviderLookups.WithLabelValues("open_food_facts", "text", "miss").Inc()
	} else {
		metrics.ProviderLookups.WithLabelValues("open_food_facts", "text", "hit").Inc()
	}
	c.storeSearch(ctx, cacheKey, hits)
	return hits
}

func (c *Client) storeProduct(ctx context.Context, key string, p *Product) {
	c.productCache.Set(key, p)
	if payload, err := json.Marshal(p); err == nil {
		c.remote.Set(ctx, key, payload)
	}
}

func (c *Client) storeSearch(ctx context.Context, key string, hits []Product) {
	c.searchCache.Set(key, hits)
	if payload, err := json.Marshal(hits); err == nil {
		c.remote.Set(ctx, key, payload)
	}
}
