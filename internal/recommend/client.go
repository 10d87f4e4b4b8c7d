package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sorpresa-shop/backend/internal/domain"
)

// ProductFinder expands recommended product names into catalog entries.
type ProductFinder interface {
	FindByNames(ctx context.Context, names []string) ([]domain.Product, error)
}

// Client talks to the external recommendation service. Every failure mode
// (timeout, bad status, malformed body, cache outage) degrades to an empty
// list; recommendations must never fail the operation that requested them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	catalog    ProductFinder
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, catalog ProductFinder, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		catalog:    catalog,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

type recommendResponse struct {
	Recommendations []string `json:"recommendations"`
}

// ForProduct returns up to five products related to the named one.
func (c *Client) ForProduct(ctx context.Context, productName string) []domain.Product {
	if c == nil || c.baseURL == "" {
		return []domain.Product{}
	}

	names := c.cachedNames(ctx, productName)
	if names == nil {
		var err error
		names, err = c.fetchNames(ctx, productName)
		if err != nil {
			c.logger.Warn("recommendation lookup failed", "product", productName, "error", err)
			return []domain.Product{}
		}
		c.storeNames(ctx, productName, names)
	}

	if len(names) > 5 {
		names = names[:5]
	}

	products, err := c.catalog.FindByNames(ctx, names)
	if err != nil {
		c.logger.Warn("failed to expand recommendations", "product", productName, "error", err)
		return []domain.Product{}
	}

	return products
}

func (c *Client) fetchNames(ctx context.Context, productName string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/recommend/%s", c.baseURL, url.PathEscape(productName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommendation service returned status %d", resp.StatusCode)
	}

	var body recommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode recommendation response: %w", err)
	}

	if body.Recommendations == nil {
		return nil, fmt.Errorf("recommendation response missing recommendations field")
	}

	return body.Recommendations, nil
}

func (c *Client) cachedNames(ctx context.Context, productName string) []string {
	if c.cache == nil {
		return nil
	}

	data, err := c.cache.Get(ctx, cacheKey(productName)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("recommendation cache read failed", "product", productName, "error", err)
		}
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil
	}

	return names
}

func (c *Client) storeNames(ctx context.Context, productName string, names []string) {
	if c.cache == nil {
		return
	}

	data, err := json.Marshal(names)
	if err != nil {
		return
	}

	if err := c.cache.Set(ctx, cacheKey(productName), data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("recommendation cache write failed", "product", productName, "error", err)
	}
}

func cacheKey(productName string) string {
	return "recommend:" + productName
}
