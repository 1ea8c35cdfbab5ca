package models

import (
	"fmt"
	"net/url"
	"time"
)

// CacheKey identifies one cached analysis. Two requests with equal keys ask for the same answer.
type CacheKey struct {
	UserID               string `json:"user_id"`
	HorizonMonths        int    `json:"horizon_months"`
	RiskProfile          string `json:"risk_profile"`
	Model                string `json:"model"`
	PortfolioFingerprint string `json:"portfolio_fingerprint"`
}

// String renders the storage key. User and model are escaped so separators cannot collide.
func (k CacheKey) String() string {
	return fmt.Sprintf("insights/%s/%d/%s/%s/%s",
		url.PathEscape(k.UserID),
		k.HorizonMonths,
		k.RiskProfile,
		url.PathEscape(k.Model),
		k.PortfolioFingerprint,
	)
}

// CachedInsights is the stored value of a cache entry.
type CachedInsights struct {
	Prepared    *PreparedInsights     `json:"prepared"`
	Annotations []NarrativeAnnotation `json:"annotations"`
	Merged      []PositionAnalysis    `json:"merged"`
	Narrative   *NarrativeData        `json:"narrative,omitempty"`
	Status      string                `json:"status"`
	Errors      []PipelineError       `json:"errors"`
}

// CacheEntry is one stored analysis. Entries have no TTL; they are replaced on refresh and
// become unreachable when any key input changes.
type CacheEntry struct {
	Key          string         `json:"key"`
	Value        CachedInsights `json:"value"`
	CachedAt     time.Time      `json:"cached_at"`
	ModelVersion string         `json:"model_version"`
	ComputeMS    int64          `json:"compute_ms"`
	LLMMS        int64          `json:"llm_ms"`
	Sequence     uint64         `json:"sequence"`
	TraceID      string         `json:"trace_id"`
}
