package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
)

// Sentinels for errors.Is on narrative failures.
var (
	ErrTransport      = errors.New("narrative transport failure")
	ErrInvalidPayload = errors.New("narrative payload invalid")
)

// Error codes reported in models.PipelineError.
const (
	CodeTransport      = "narrative_unavailable"
	CodeTimeout        = "timeout"
	CodeInvalidPayload = "invalid_payload"
)

// NarrativeError describes a failed narrative request. Kind separates transport failures from
// unusable model output so callers can offer a retry without re-running the aggregator.
type NarrativeError struct {
	Kind    models.ErrorKind
	Code    string
	TraceID string
	RawText string
	Err     error
}

func (e *NarrativeError) Error() string {
	return fmt.Sprintf("narrative %s error (%s, trace %s): %v", e.Kind, e.Code, e.TraceID, e.Err)
}

func (e *NarrativeError) Unwrap() error { return e.Err }

// Is matches ErrTransport or ErrInvalidPayload by kind.
func (e *NarrativeError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == models.ErrorKindTransport
	case ErrInvalidPayload:
		return e.Kind == models.ErrorKindPayload
	}
	return false
}

// PipelineError converts the failure into the envelope form.
func (e *NarrativeError) PipelineError() models.PipelineError {
	return models.PipelineError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Err.Error(),
		RawText: e.RawText,
		TraceID: e.TraceID,
	}
}

// codedError is implemented by client errors that carry a structured body from the remote side.
type codedError interface {
	error
	ErrorCode() string
	RawPayload() string
}

// NarrativeResult is the outcome of one narrative request.
type NarrativeResult struct {
	TraceID      string
	Text         string
	TokensUsed   int
	ModelVersion string
	Latency      time.Duration
	Truncated    bool
	Validation   Validation
}

// Data renders the result as the llm_data block of the envelope.
func (r *NarrativeResult) Data() *models.NarrativeData {
	return &models.NarrativeData{
		PayloadStatus: r.Validation.Status,
		Annotations:   r.Validation.Annotations,
		Violations:    r.Validation.Violations,
		TokensUsed:    r.TokensUsed,
		ModelVersion:  r.ModelVersion,
		Truncated:     r.Truncated,
	}
}

// Requester builds prompts and sends them to a completion client. It never retries.
type Requester struct {
	client        interfaces.CompletionClient
	promptCharCap int
	timeout       time.Duration
	logger        *common.Logger
}

// RequesterOption configures a Requester
type RequesterOption func(*Requester)

// WithPromptCharCap bounds the serialized position block
func WithPromptCharCap(n int) RequesterOption {
	return func(r *Requester) {
		if n > 0 {
			r.promptCharCap = n
		}
	}
}

// WithNarrativeTimeout sets the client-side deadline for one request
func WithNarrativeTimeout(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRequesterLogger sets the logger
func WithRequesterLogger(logger *common.Logger) RequesterOption {
	return func(r *Requester) {
		r.logger = logger
	}
}

// NewRequester creates a Requester over client
func NewRequester(client interfaces.CompletionClient, opts ...RequesterOption) *Requester {
	r := &Requester{
		client:        client,
		promptCharCap: DefaultPromptCharCap,
		timeout:       90 * time.Second,
		logger:        common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request asks the model to annotate prepared. On a payload error both the result and a
// *NarrativeError are returned so the raw text and violations stay available.
func (r *Requester) Request(ctx context.Context, prepared *models.PreparedInsights, traceID string) (*NarrativeResult, error) {
	prompt := BuildPrompt(prepared, r.promptCharCap)
	result := &NarrativeResult{TraceID: traceID, Truncated: prompt.Truncated}

	req := models.CompletionRequest{
		Model:        prepared.Params.Model,
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
		JSONSchema:   AnnotationSchema(),
		TraceID:      traceID,
	}

	r.logger.Debug().
		Str("trace_id", traceID).
		Str("model", req.Model).
		Int("symbols", len(prompt.Included)).
		Bool("truncated", prompt.Truncated).
		Int("prompt_chars", len(prompt.User)).
		Msg("Requesting narrative")

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.Complete(callCtx, req)
	result.Latency = time.Since(start)

	if err != nil {
		return result, r.classify(err, traceID, callCtx)
	}

	result.Text = resp.Text
	result.TokensUsed = resp.TokensUsed
	result.ModelVersion = resp.ModelVersion
	result.Validation = ValidateAnnotations(resp.Text)

	if !result.Validation.Usable() {
		r.logger.Warn().
			Str("trace_id", traceID).
			Str("payload_status", string(result.Validation.Status)).
			Strs("violations", result.Validation.Violations).
			Msg("Narrative payload unusable")
		return result, &NarrativeError{
			Kind:    models.ErrorKindPayload,
			Code:    CodeInvalidPayload,
			TraceID: traceID,
			RawText: resp.Text,
			Err:     fmt.Errorf("%s response with no usable annotations", result.Validation.Status),
		}
	}

	if result.Validation.Status != models.PayloadValid {
		r.logger.Warn().
			Str("trace_id", traceID).
			Int("annotations", len(result.Validation.Annotations)).
			Strs("violations", result.Validation.Violations).
			Msg("Narrative payload violated schema, keeping valid annotations")
	}

	r.logger.Debug().
		Str("trace_id", traceID).
		Int("annotations", len(result.Validation.Annotations)).
		Int("tokens", result.TokensUsed).
		Dur("latency", result.Latency).
		Msg("Narrative received")

	return result, nil
}

func (r *Requester) classify(err error, traceID string, callCtx context.Context) error {
	nerr := &NarrativeError{
		Kind:    models.ErrorKindTransport,
		Code:    CodeTransport,
		TraceID: traceID,
		Err:     err,
	}

	var coded codedError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		nerr.Code = CodeTimeout
	case errors.As(err, &coded):
		if coded.ErrorCode() != "" {
			nerr.Code = coded.ErrorCode()
		}
		nerr.RawText = coded.RawPayload()
		if coded.ErrorCode() == CodeInvalidPayload {
			nerr.Kind = models.ErrorKindPayload
		}
	}

	r.logger.Warn().
		Err(err).
		Str("trace_id", traceID).
		Str("kind", string(nerr.Kind)).
		Str("code", nerr.Code).
		Msg("Narrative request failed")

	return nerr
}
