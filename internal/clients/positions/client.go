// Package positions provides a client for the portfolio position service
package positions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the PositionSource interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.PositionSource = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new position service client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("position service error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("Position service request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type positionsResponse struct {
	Data []positionData `json:"data"`
}

type positionData struct {
	Symbol            string   `json:"symbol"`
	Quantity          float64  `json:"quantity"`
	CostBasis         float64  `json:"cost_basis"`
	LastPrice         *float64 `json:"last_price"`
	Industry          string   `json:"industry"`
	GrowthForecastPct *float64 `json:"growth_forecast_pct"`
	RiskScore         *float64 `json:"risk_score"`
	VolatilityPct     *float64 `json:"volatility_pct"`
}

// ListPositions retrieves every position held by userID. Rows without a symbol are skipped.
func (c *Client) ListPositions(ctx context.Context, userID string) ([]models.Position, error) {
	var resp positionsResponse
	path := fmt.Sprintf("/v1/users/%s/positions", url.PathEscape(userID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	positions := make([]models.Position, 0, len(resp.Data))
	for _, p := range resp.Data {
		if strings.TrimSpace(p.Symbol) == "" {
			c.logger.Warn().Str("user_id", userID).Msg("Skipping position without symbol")
			continue
		}
		positions = append(positions, models.Position{
			Symbol:            strings.TrimSpace(p.Symbol),
			Quantity:          p.Quantity,
			CostBasis:         p.CostBasis,
			LastPrice:         p.LastPrice,
			Industry:          p.Industry,
			GrowthForecastPct: p.GrowthForecastPct,
			RiskScore:         p.RiskScore,
			VolatilityPct:     p.VolatilityPct,
		})
	}

	c.logger.Debug().Str("user_id", userID).Int("count", len(positions)).Msg("Positions listed")
	return positions, nil
}
