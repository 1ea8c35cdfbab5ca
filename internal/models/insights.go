package models

// Growth bucket names.
const (
	GrowthBucketLow  = "Low/Value"
	GrowthBucketMid  = "Mid growth"
	GrowthBucketHigh = "High growth"
)

// Risk bucket names, also used as the portfolio risk class.
const (
	RiskBucketLow      = "Low"
	RiskBucketModerate = "Moderate"
	RiskBucketHigh     = "High"
)

// Concentration classes.
const (
	ConcentrationLow    = "low"
	ConcentrationMedium = "medium"
	ConcentrationHigh   = "high"
)

// Risk alignment of the portfolio against the requested risk profile.
const (
	AlignmentBelow  = "below"
	AlignmentWithin = "within"
	AlignmentAbove  = "above"
)

// UnclassifiedIndustry is the industry bucket for positions without an industry.
const UnclassifiedIndustry = "Unclassified"

// PreparedInsights is the deterministic analysis of a position list.
// It is never mutated after the aggregator returns it.
type PreparedInsights struct {
	Params    AnalysisParams     `json:"params"`
	Summary   InsightsSummary    `json:"summary"`
	Grouping  InsightsGrouping   `json:"grouping"`
	Positions []PreparedPosition `json:"positions"`
}

// InsightsSummary holds portfolio-level aggregates.
type InsightsSummary struct {
	TotalEquityUSD     float64  `json:"total_equity_usd"`
	TotalCostBasisUSD  float64  `json:"total_cost_basis_usd"`
	UnrealizedPnLUSD   float64  `json:"unrealized_pnl_usd"`
	UnrealizedPnLPct   float64  `json:"unrealized_pnl_pct"`
	ExpectedReturnPct  float64  `json:"expected_return_pct"` // over the requested horizon
	VolatilityPct      float64  `json:"volatility_pct"`
	RiskScore          float64  `json:"risk_score"` // 0-100
	RiskClass          string   `json:"risk_class"`
	RiskAlignment      string   `json:"risk_alignment"`
	ConcentrationIndex float64  `json:"concentration_index"` // sum of squared weight fractions
	ConcentrationClass string   `json:"concentration_class"`
	PositionCount      int      `json:"position_count"`
	WeightedCount      int      `json:"weighted_count"`
	PriceGaps          []string `json:"price_gaps"`
}

// InsightsGrouping holds the three parallel bucketizations.
type InsightsGrouping struct {
	Industry []Bucket `json:"industry"`
	Growth   []Bucket `json:"growth"`
	Risk     []Bucket `json:"risk"`
}

// Bucket is one group of positions with weight-averaged metrics.
// Averages are nil when no member carries the underlying field.
type Bucket struct {
	Name                 string   `json:"name"`
	WeightPct            float64  `json:"weight_pct"`
	AvgExpectedReturnPct *float64 `json:"avg_expected_return_pct"`
	AvgRiskScore         *float64 `json:"avg_risk_score"`
	MemberSymbols        []string `json:"member_symbols"`
}

// PreparedPosition holds the deterministic per-position fields.
type PreparedPosition struct {
	Symbol            string   `json:"symbol"`
	Quantity          float64  `json:"quantity"`
	Industry          string   `json:"industry"`
	MarketValueUSD    float64  `json:"market_value_usd"`
	CostBasisUSD      float64  `json:"cost_basis_usd"`
	UnrealizedPnLUSD  float64  `json:"unrealized_pnl_usd"`
	WeightPct         float64  `json:"weight_pct"`
	GrowthForecastPct *float64 `json:"growth_forecast_pct"`
	RiskScore         *float64 `json:"risk_score_0_100"`
	ExpectedReturnPct *float64 `json:"expected_return_pct"`
	VolatilityPct     *float64 `json:"volatility_pct"`
	GrowthBucket      string   `json:"growth_bucket"`
	RiskBucket        string   `json:"risk_bucket"`
	PriceGap          bool     `json:"price_gap"`
}
