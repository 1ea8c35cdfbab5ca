package models

import "strings"

// Position is a single holding as reported by the position source.
// Optional analytics fields are nil when the source has no estimate.
type Position struct {
	Symbol            string   `json:"symbol"`
	Quantity          float64  `json:"quantity"`
	CostBasis         float64  `json:"cost_basis"` // total cost of the holding in USD
	LastPrice         *float64 `json:"last_price,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	GrowthForecastPct *float64 `json:"growth_forecast_pct,omitempty"`
	RiskScore         *float64 `json:"risk_score,omitempty"`
	VolatilityPct     *float64 `json:"volatility_pct,omitempty"`
}

// NormalizeSymbol returns the join key used between positions and annotations.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Float returns a pointer to v. Handy for building positions in tests and fixtures.
func Float(v float64) *float64 {
	return &v
}

// Risk profiles accepted in AnalysisParams.
const (
	RiskProfileConservative = "conservative"
	RiskProfileBalanced     = "balanced"
	RiskProfileAggressive   = "aggressive"
)

// Horizon bounds in months.
const (
	MinHorizonMonths     = 1
	MaxHorizonMonths     = 120
	DefaultHorizonMonths = 12
)

// AnalysisParams are the caller-chosen inputs of one analysis. They are part of the cache key.
type AnalysisParams struct {
	Model         string `json:"model"`
	HorizonMonths int    `json:"horizon_months"`
	RiskProfile   string `json:"risk_profile"`
}

// Normalized returns a copy with the horizon clamped and the risk profile canonicalised.
// An empty model is left empty so callers can apply their configured default.
func (p AnalysisParams) Normalized() AnalysisParams {
	out := AnalysisParams{
		Model:         strings.TrimSpace(p.Model),
		HorizonMonths: p.HorizonMonths,
		RiskProfile:   strings.ToLower(strings.TrimSpace(p.RiskProfile)),
	}
	if out.HorizonMonths <= 0 {
		out.HorizonMonths = DefaultHorizonMonths
	}
	if out.HorizonMonths < MinHorizonMonths {
		out.HorizonMonths = MinHorizonMonths
	}
	if out.HorizonMonths > MaxHorizonMonths {
		out.HorizonMonths = MaxHorizonMonths
	}
	switch out.RiskProfile {
	case RiskProfileConservative, RiskProfileBalanced, RiskProfileAggressive:
	default:
		out.RiskProfile = RiskProfileBalanced
	}
	return out
}
