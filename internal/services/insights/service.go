package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
)

// ErrPositionSource wraps failures of the position source. Nothing can be computed without
// positions, so this is the one failure returned as an error rather than inside the envelope.
var ErrPositionSource = errors.New("position source unavailable")

// PositionSourceError carries the trace id of the request whose position lookup failed.
// It matches ErrPositionSource with errors.Is.
type PositionSourceError struct {
	TraceID string
	Err     error
}

func (e *PositionSourceError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPositionSource, e.Err)
}

func (e *PositionSourceError) Unwrap() []error {
	return []error{ErrPositionSource, e.Err}
}

// Error codes for non-fatal entries in the envelope.
const (
	CodeSchemaViolation = "schema_violation"
	CodeCacheWrite      = "cache_write_failed"
)

const defaultRequestTimeout = 120 * time.Second

// Service implements InsightsService
type Service struct {
	positions      interfaces.PositionSource
	requester      *Requester
	cache          interfaces.InsightsCache
	traces         interfaces.TraceCorrelator
	sequencer      *Sequencer
	defaults       models.AnalysisParams
	requestTimeout time.Duration
	logger         *common.Logger
}

var _ interfaces.InsightsService = (*Service)(nil)

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithDefaults sets the parameters used for fields a request leaves empty
func WithDefaults(params models.AnalysisParams) ServiceOption {
	return func(s *Service) {
		s.defaults = params.Normalized()
	}
}

// WithRequestTimeout bounds one pipeline run, including the narrative call
func WithRequestTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewService creates a new insights service
func NewService(
	positions interfaces.PositionSource,
	requester *Requester,
	cache interfaces.InsightsCache,
	traces interfaces.TraceCorrelator,
	logger *common.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		positions:      positions,
		requester:      requester,
		cache:          cache,
		traces:         traces,
		sequencer:      NewSequencer(),
		defaults:       models.AnalysisParams{}.Normalized(),
		requestTimeout: defaultRequestTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveParams fills empty fields from the service defaults and normalizes the result.
func (s *Service) ResolveParams(params models.AnalysisParams) models.AnalysisParams {
	if params.Model == "" {
		params.Model = s.defaults.Model
	}
	if params.HorizonMonths == 0 {
		params.HorizonMonths = s.defaults.HorizonMonths
	}
	if params.RiskProfile == "" {
		params.RiskProfile = s.defaults.RiskProfile
	}
	return params.Normalized()
}

// GetInsights serves the cached analysis for the current key and runs the pipeline on a miss.
func (s *Service) GetInsights(ctx context.Context, userID, sessionID string, params models.AnalysisParams) (*models.InsightsResponse, error) {
	start := time.Now()
	params = s.ResolveParams(params)
	traceID := s.traceID(ctx, sessionID)

	positions, err := s.listPositions(ctx, userID, traceID)
	if err != nil {
		return nil, err
	}
	key := KeyFor(userID, params, positions)

	// A hit reports only the store lookup, not the position fetch.
	lookup := time.Now()
	entry, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Cache read failed, recomputing")
	}
	if err == nil && found {
		s.logger.Info().
			Str("user_id", userID).
			Str("cache_key", key.String()).
			Time("cached_at", entry.CachedAt).
			Msg("Insights cache hit")
		return fromEntry(entry, params, traceID, time.Since(lookup)), nil
	}

	s.logger.Debug().Str("user_id", userID).Str("cache_key", key.String()).Msg("Insights cache miss")
	return s.run(ctx, userID, params, positions, key, traceID, start), nil
}

// RefreshInsights bypasses the cache read, recomputes and overwrites the entry for the key.
func (s *Service) RefreshInsights(ctx context.Context, userID, sessionID string, params models.AnalysisParams) (*models.InsightsResponse, error) {
	start := time.Now()
	params = s.ResolveParams(params)
	traceID := s.traceID(ctx, sessionID)

	positions, err := s.listPositions(ctx, userID, traceID)
	if err != nil {
		return nil, err
	}
	key := KeyFor(userID, params, positions)

	s.logger.Info().Str("user_id", userID).Str("cache_key", key.String()).Msg("Refreshing insights")
	return s.run(ctx, userID, params, positions, key, traceID, start), nil
}

// InvalidateInsights removes the entry for the key derived from the user's current positions.
func (s *Service) InvalidateInsights(ctx context.Context, userID string, params models.AnalysisParams) (models.CacheKey, error) {
	params = s.ResolveParams(params)

	positions, err := s.listPositions(ctx, userID, "")
	if err != nil {
		return models.CacheKey{}, err
	}
	key := KeyFor(userID, params, positions)

	if err := s.cache.Invalidate(ctx, key); err != nil {
		return key, fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	s.logger.Info().Str("user_id", userID).Str("cache_key", key.String()).Msg("Insights invalidated")
	return key, nil
}

// run executes aggregate, request, merge and put. The run is detached from ctx cancellation so a
// departing caller does not abort the narrative call; requestTimeout is the only deadline.
func (s *Service) run(
	ctx context.Context,
	userID string,
	params models.AnalysisParams,
	positions []models.Position,
	key models.CacheKey,
	traceID string,
	start time.Time,
) *models.InsightsResponse {
	keyStr := key.String()
	seq := s.sequencer.Issue(keyStr)
	defer s.sequencer.Done(keyStr)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout)
	defer cancel()

	prepared := Prepare(positions, params)
	s.logger.Debug().
		Str("cache_key", keyStr).
		Uint64("sequence", seq).
		Int("positions", len(prepared.Positions)).
		Float64("total_equity_usd", prepared.Summary.TotalEquityUSD).
		Msg("Prepared insights")

	resp := &models.InsightsResponse{
		Model:        params.Model,
		PreparedData: prepared,
		Errors:       []models.PipelineError{},
		TraceID:      traceID,
		CacheKey:     keyStr,
	}

	var narrative *NarrativeResult
	if len(prepared.Positions) > 0 {
		result, err := s.requester.Request(runCtx, prepared, traceID)
		narrative = result
		resp.LLMMS = result.Latency.Milliseconds()

		if err != nil {
			var nerr *NarrativeError
			if !errors.As(err, &nerr) {
				nerr = &NarrativeError{Kind: models.ErrorKindTransport, Code: CodeTransport, TraceID: traceID, Err: err}
			}
			resp.Errors = append(resp.Errors, nerr.PipelineError())
			resp.PositionsWithInsights = Merge(prepared, nil)
			if nerr.Kind == models.ErrorKindPayload {
				resp.Status = models.StatusPartial
				resp.LLMData = result.Data()
			} else {
				resp.Status = models.StatusError
			}
			resp.ComputeMS = time.Since(start).Milliseconds()

			s.logger.Warn().
				Str("user_id", userID).
				Str("cache_key", keyStr).
				Str("trace_id", traceID).
				Str("status", resp.Status).
				Msg("Insights not cached after narrative failure")
			return resp
		}

		resp.LLMData = result.Data()
		if result.Validation.Status != models.PayloadValid {
			resp.Errors = append(resp.Errors, models.PipelineError{
				Kind:    models.ErrorKindPayload,
				Code:    CodeSchemaViolation,
				Message: fmt.Sprintf("%d schema violation(s), %d annotation(s) kept", len(result.Validation.Violations), len(result.Validation.Annotations)),
				TraceID: traceID,
			})
		}
	}

	var annotations []models.NarrativeAnnotation
	if narrative != nil {
		annotations = narrative.Validation.Annotations
	}
	resp.PositionsWithInsights = Merge(prepared, annotations)
	resp.Status = CoverageStatus(resp.PositionsWithInsights)
	resp.ComputeMS = time.Since(start).Milliseconds()

	entry := &models.CacheEntry{
		Key: keyStr,
		Value: models.CachedInsights{
			Prepared:    prepared,
			Annotations: annotations,
			Merged:      resp.PositionsWithInsights,
			Narrative:   resp.LLMData,
			Status:      resp.Status,
			Errors:      resp.Errors,
		},
		CachedAt:  time.Now().UTC(),
		ComputeMS: resp.ComputeMS,
		LLMMS:     resp.LLMMS,
		Sequence:  seq,
		TraceID:   traceID,
	}
	if narrative != nil {
		entry.ModelVersion = narrative.ModelVersion
	}

	applied, err := s.sequencer.Apply(keyStr, seq, func() error {
		return s.cache.Put(runCtx, key, entry)
	})
	switch {
	case !applied:
		resp.Superseded = true
		s.logger.Info().
			Str("cache_key", keyStr).
			Uint64("sequence", seq).
			Uint64("latest", s.sequencer.Latest(keyStr)).
			Msg("Insights result superseded, not cached")
	case err != nil:
		resp.Errors = append(resp.Errors, models.PipelineError{
			Kind:    models.ErrorKindCache,
			Code:    CodeCacheWrite,
			Message: err.Error(),
			TraceID: traceID,
		})
		s.logger.Error().Err(err).Str("cache_key", keyStr).Msg("Failed to cache insights")
	default:
		cachedAt := entry.CachedAt
		resp.CachedAt = &cachedAt
		s.logger.Debug().Str("cache_key", keyStr).Uint64("sequence", seq).Msg("Insights cached")
	}

	return resp
}

func (s *Service) listPositions(ctx context.Context, userID, traceID string) ([]models.Position, error) {
	positions, err := s.positions.ListPositions(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("trace_id", traceID).Msg("Failed to list positions")
		return nil, &PositionSourceError{TraceID: traceID, Err: err}
	}
	return positions, nil
}

// traceID returns the session's trace id. Correlator failures must not block analysis, so a
// one-off id is used instead.
func (s *Service) traceID(ctx context.Context, sessionID string) string {
	if s.traces != nil {
		id, err := s.traces.TraceID(ctx, sessionID)
		if err == nil && id != "" {
			return id
		}
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Trace correlator failed, using one-off trace id")
	}
	return uuid.NewString()
}

func fromEntry(entry *models.CacheEntry, params models.AnalysisParams, traceID string, elapsed time.Duration) *models.InsightsResponse {
	errs := entry.Value.Errors
	if errs == nil {
		errs = []models.PipelineError{}
	}
	cachedAt := entry.CachedAt
	return &models.InsightsResponse{
		Status:                entry.Value.Status,
		Model:                 params.Model,
		PreparedData:          entry.Value.Prepared,
		LLMData:               entry.Value.Narrative,
		PositionsWithInsights: entry.Value.Merged,
		Errors:                errs,
		Cached:                true,
		ComputeMS:             elapsed.Milliseconds(),
		LLMMS:                 0,
		TraceID:               traceID,
		CacheKey:              entry.Key,
		CachedAt:              &cachedAt,
	}
}
