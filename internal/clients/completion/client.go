// Package completion provides a client for an HTTP text-completion service fronting a language model
package completion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
)

const (
	DefaultTimeout   = 90 * time.Second
	DefaultRateLimit = 2 // requests per second

	// TraceHeader carries the trace id alongside the trace_id body field.
	TraceHeader = "X-Trace-ID"

	completePath = "/v1/complete"
)

// Client implements CompletionClient
type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *common.Logger
}

var _ interfaces.CompletionClient = (*Client)(nil)

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
		c.client.SetTimeout(timeout)
	}
}

// NewClient creates a new completion service client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	rc := resty.New()
	rc.SetBaseURL(strings.TrimRight(baseURL, "/"))
	rc.SetTimeout(DefaultTimeout)
	rc.SetHeader("Accept", "application/json")
	if apiKey != "" {
		rc.SetAuthToken(apiKey)
	}

	c := &Client{
		client:  rc,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a failure reported by the completion service, either as a non-2xx status with a
// structured body or as a 200 with success=false.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RawText    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion service error: %s (code: %s, status: %d)", e.Message, e.Code, e.StatusCode)
}

// ErrorCode returns the service's machine-readable error code
func (e *APIError) ErrorCode() string { return e.Code }

// RawPayload returns the model output the service rejected, if any
func (e *APIError) RawPayload() string { return e.RawText }

type completeResponse struct {
	Success      bool   `json:"success"`
	Response     string `json:"response"`
	TokensUsed   int    `json:"tokens_used"`
	ModelVersion string `json:"model_version"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RawText string `json:"raw_text"`
}

// Complete posts req to the service and returns the model's raw response text.
func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, waitError(ctx, err)
	}

	var ok completeResponse
	var failed errorResponse

	c.logger.Debug().Str("model", req.Model).Str("trace_id", req.TraceID).Msg("Completion request")

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader(TraceHeader, req.TraceID).
		SetBody(req).
		SetResult(&ok).
		SetError(&failed).
		Post(completePath)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.IsError() {
		apiErr := &APIError{
			StatusCode: resp.StatusCode(),
			Code:       failed.Code,
			Message:    failed.Message,
			RawText:    failed.RawText,
		}
		if apiErr.Code == "" {
			apiErr.Code = fmt.Sprintf("http_%d", resp.StatusCode())
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return nil, apiErr
	}

	if !ok.Success {
		code := ok.Code
		if code == "" {
			code = "unsuccessful"
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Code:       code,
			Message:    ok.Message,
			RawText:    ok.Response,
		}
	}

	c.logger.Debug().
		Str("trace_id", req.TraceID).
		Int("tokens", ok.TokensUsed).
		Dur("latency", resp.Time()).
		Msg("Completion response")

	return &models.CompletionResponse{
		Text:         ok.Response,
		TokensUsed:   ok.TokensUsed,
		ModelVersion: ok.ModelVersion,
	}, nil
}

// waitError maps a limiter failure onto the context error it stands for. The limiter refuses
// early when the deadline would pass before a token is free, before ctx itself is done.
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rate limit wait: %w", ctxErr)
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("rate limit wait: %w: %v", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("rate limit wait: %w", err)
}
