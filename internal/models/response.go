package models

import (
	"fmt"
	"time"
)

// Response statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindPayload   ErrorKind = "payload"
	ErrorKindSource    ErrorKind = "source"
	ErrorKindCache     ErrorKind = "cache"
)

// PipelineError is reported inside the response envelope. RawText keeps the model output
// for payload errors so it can be shown for diagnosis.
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	RawText string    `json:"raw_text,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s error (%s): %s", e.Kind, e.Code, e.Message)
}

// InsightsResponse is the envelope returned for both cached reads and refreshes.
type InsightsResponse struct {
	Status                string             `json:"status"`
	Model                 string             `json:"model"`
	PreparedData          *PreparedInsights  `json:"prepared_data"`
	LLMData               *NarrativeData     `json:"llm_data,omitempty"`
	PositionsWithInsights []PositionAnalysis `json:"positions_with_insights"`
	Errors                []PipelineError    `json:"errors"`
	Cached                bool               `json:"cached"`
	ComputeMS             int64              `json:"compute_ms"`
	LLMMS                 int64              `json:"llm_ms"`
	TraceID               string             `json:"trace_id"`
	CacheKey              string             `json:"cache_key"`
	CachedAt              *time.Time         `json:"cached_at,omitempty"`
	Superseded            bool               `json:"superseded,omitempty"`
}
