// Package gemini provides a completion client for the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
)

const (
	DefaultModel = "gemini-2.0-flash"

	// TraceHeader carries the trace id on every generateContent call.
	TraceHeader = "X-Trace-ID"
)

// Client implements CompletionClient over genai
type Client struct {
	client      *genai.Client
	model       string
	baseURL     string
	temperature float32
	logger      *common.Logger
}

var _ interfaces.CompletionClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model used when a request names none
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:       DefaultModel,
		temperature: 0.2,
		logger:      common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = genaiClient

	return c, nil
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// Complete sends one prompt with a JSON response schema and returns the raw text.
func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
		Temperature:      genai.Ptr(c.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   toSchema(req.JSONSchema),
		HTTPOptions: &genai.HTTPOptions{
			Headers: http.Header{TraceHeader: []string{req.TraceID}},
		},
	}

	c.logger.Debug().Str("model", model).Str("trace_id", req.TraceID).Msg("Generating content")

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.UserPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, err
	}

	resp := &models.CompletionResponse{
		Text:         text,
		ModelVersion: strings.TrimSpace(result.ModelVersion),
	}
	if resp.ModelVersion == "" {
		resp.ModelVersion = model
	}
	if result.UsageMetadata != nil {
		resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}
	return resp, nil
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// toSchema converts a JSON schema map into the genai subset. Keywords genai has no field for
// (additionalProperties) are dropped; the response is validated again after decoding.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}

	switch t, _ := m["type"].(string); t {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	}

	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
				names = append(names, name)
			}
		}
		sort.Strings(names)
		s.PropertyOrdering = names
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	s.Required = toStrings(m["required"])
	s.Enum = toStrings(m["enum"])
	s.MaxLength = toInt64(m["maxLength"])
	s.MinItems = toInt64(m["minItems"])
	s.MaxItems = toInt64(m["maxItems"])
	return s
}

func toStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt64(v any) *int64 {
	switch n := v.(type) {
	case int:
		return genai.Ptr(int64(n))
	case int64:
		return genai.Ptr(n)
	case float64:
		return genai.Ptr(int64(n))
	}
	return nil
}
