package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/metrics"
)

// Default endpoints of the public OpenFoodFacts API
const (
	DefaultProductEndpoint = "https://world.openfoodfacts.org/api/v2/product"
	DefaultSearchEndpoint  = "https://world.openfoodfacts.org/cgi/search.pl"
	DefaultUserAgent       = "AllergenLens/1.0 (allergen assistant)"
)

// Config holds the client settings
type Config struct {
	ProductEndpoint   string
	SearchEndpoint    string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client handles communication with the OpenFoodFacts API
type Client struct {
	httpClient      *http.Client
	productEndpoint string
	searchEndpoint  string
	userAgent       string
	fields          string
	rateLimiter     *rate.Limiter
	logger          *zap.Logger
}

// NewClient creates a new OpenFoodFacts API client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.ProductEndpoint == "" {
		cfg.ProductEndpoint = DefaultProductEndpoint
	}
	if cfg.SearchEndpoint == "" {
		cfg.SearchEndpoint = DefaultSearchEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	// OpenFoodFacts asks API users to stay around 100 product reads per minute
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		productEndpoint: strings.TrimRight(cfg.ProductEndpoint, "/"),
		searchEndpoint:  cfg.SearchEndpoint,
		userAgent:       cfg.UserAgent,
		fields:          strings.Join(domain.ProductFields, ","),
		rateLimiter:     rate.NewLimiter(limit, 10),
		logger:          logger.OrNop(log).Named("openfoodfacts"),
	}
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (int, []byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrOpenFoodFactsFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", domain.ErrOpenFoodFactsFailure, err)
	}

	return resp.StatusCode, body, nil
}

// GetProduct fetches a single product by barcode
func (c *Client) GetProduct(ctx context.Context, code string) (*domain.ProductRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidRequest
	}

	params := url.Values{}
	params.Set("fields", c.fields)
	reqURL := fmt.Sprintf("%s/%s?%s", c.productEndpoint, url.PathEscape(code), params.Encode())

	status, body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		c.logger.Warn("barcode lookup failed", zap.String("code", code), zap.Error(err))
		metrics.ProductLookups.WithLabelValues("barcode", metrics.OutcomeError).Inc()
		return nil, err
	}

	if status != http.StatusOK {
		c.logger.Info("barcode lookup non-success status",
			zap.String("code", code), zap.Int("status", status))
		return nil, c.statusError("barcode", status)
	}

	var payload productResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("barcode lookup decode error", zap.String("code", code), zap.Error(err))
		metrics.ProductLookups.WithLabelValues("barcode", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%w: decode product: %v", domain.ErrOpenFoodFactsFailure, err)
	}

	if payload.Product == nil {
		c.logger.Debug("no product for barcode", zap.String("code", code))
		metrics.ProductLookups.WithLabelValues("barcode", metrics.OutcomeMiss).Inc()
		return nil, domain.ErrProductNotFound
	}

	product := payload.Product.toDomain()
	if product.Code == "" {
		product.Code = code
	}

	metrics.ProductLookups.WithLabelValues("barcode", metrics.OutcomeHit).Inc()
	return product, nil
}

// SearchProduct runs a simple free-text search and returns the single best-scored result
func (c *Client) SearchProduct(ctx context.Context, term string) (*domain.ProductRecord, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.ErrInvalidRequest
	}

	params := url.Values{}
	params.Set("action", "process")
	params.Set("search_terms", term)
	params.Set("search_simple", "1")
	params.Set("json", "1")
	params.Set("page_size", "1")
	params.Set("fields", c.fields)
	reqURL := fmt.Sprintf("%s?%s", c.searchEndpoint, params.Encode())

	status, body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		c.logger.Warn("search failed", zap.String("term", term), zap.Error(err))
		metrics.ProductLookups.WithLabelValues("search", metrics.OutcomeError).Inc()
		return nil, err
	}

	if status != http.StatusOK {
		c.logger.Info("search non-success status", zap.String("term", term), zap.Int("status", status))
		return nil, c.statusError("search", status)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("search decode error", zap.String("term", term), zap.Error(err))
		metrics.ProductLookups.WithLabelValues("search", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%w: decode search: %v", domain.ErrOpenFoodFactsFailure, err)
	}

	for _, p := range payload.Products {
		if p != nil {
			c.logger.Debug("search hit", zap.String("term", term), zap.String("code", string(p.Code)))
			metrics.ProductLookups.WithLabelValues("search", metrics.OutcomeHit).Inc()
			return p.toDomain(), nil
		}
	}

	c.logger.Debug("no products for term", zap.String("term", term))
	metrics.ProductLookups.WithLabelValues("search", metrics.OutcomeMiss).Inc()
	return nil, domain.ErrProductNotFound
}

func (c *Client) statusError(kind string, status int) error {
	if status == http.StatusNotFound {
		metrics.ProductLookups.WithLabelValues(kind, metrics.OutcomeMiss).Inc()
		return domain.ErrProductNotFound
	}
	metrics.ProductLookups.WithLabelValues(kind, metrics.OutcomeError).Inc()
	return fmt.Errorf("%w: status %d", domain.ErrOpenFoodFactsFailure, status)
}
