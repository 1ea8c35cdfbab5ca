// Package insights computes portfolio insights: deterministic analytics, model narrative,
// the merge of both, and the read-through cache around them.
package insights

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// Bucket thresholds. Growth is in percent per year, risk is 0-100.
const (
	growthMidThreshold  = 5.0
	growthHighThreshold = 15.0
	riskLowMax          = 33.0
	riskModerateMax     = 66.0

	// imputedRiskScore stands in for a missing risk score in the portfolio-level average,
	// matching the Moderate default used for bucketing.
	imputedRiskScore = 50.0

	// volatilityRiskFactor derives a risk score from volatility when the source has none.
	volatilityRiskFactor = 2.0
)

var hundred = decimal.NewFromInt(100)

// Prepare turns a position list into PreparedInsights. It is a pure function of its inputs
// and never fails: an empty list yields a zeroed summary and empty groupings.
func Prepare(positions []models.Position, params models.AnalysisParams) *models.PreparedInsights {
	params = params.Normalized()

	out := &models.PreparedInsights{
		Params: params,
		Summary: models.InsightsSummary{
			PriceGaps: []string{},
		},
		Grouping: models.InsightsGrouping{
			Industry: []models.Bucket{},
			Growth:   []models.Bucket{},
			Risk:     []models.Bucket{},
		},
		Positions: make([]models.PreparedPosition, 0, len(positions)),
	}
	if len(positions) == 0 {
		return out
	}

	// Market values first so weights can be normalized against the positive total.
	values := make([]decimal.Decimal, len(positions))
	total := decimal.Zero
	for i, p := range positions {
		if p.LastPrice == nil {
			continue
		}
		values[i] = decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(*p.LastPrice))
		if values[i].IsPositive() {
			total = total.Add(values[i])
		}
	}

	costTotal := decimal.Zero
	for i, p := range positions {
		pp := preparePosition(p, params.HorizonMonths)
		if p.LastPrice == nil {
			pp.PriceGap = true
			out.Summary.PriceGaps = append(out.Summary.PriceGaps, pp.Symbol)
		} else {
			pp.MarketValueUSD = values[i].InexactFloat64()
			pp.UnrealizedPnLUSD = values[i].Sub(decimal.NewFromFloat(p.CostBasis)).InexactFloat64()
		}
		if values[i].IsPositive() && total.IsPositive() {
			pp.WeightPct = values[i].Div(total).Mul(hundred).InexactFloat64()
			costTotal = costTotal.Add(decimal.NewFromFloat(p.CostBasis))
			out.Summary.WeightedCount++
		}
		out.Positions = append(out.Positions, pp)
	}

	out.Summary.PositionCount = len(out.Positions)
	out.Summary.TotalEquityUSD = total.InexactFloat64()
	out.Summary.TotalCostBasisUSD = costTotal.InexactFloat64()
	pnl := total.Sub(costTotal)
	out.Summary.UnrealizedPnLUSD = pnl.InexactFloat64()
	if costTotal.IsPositive() {
		out.Summary.UnrealizedPnLPct = pnl.Div(costTotal).Mul(hundred).InexactFloat64()
	}

	summarize(out)
	out.Grouping = group(out.Positions)
	return out
}

// preparePosition derives the per-position deterministic fields except weight and value.
func preparePosition(p models.Position, horizonMonths int) models.PreparedPosition {
	pp := models.PreparedPosition{
		Symbol:            models.NormalizeSymbol(p.Symbol),
		Quantity:          p.Quantity,
		Industry:          strings.TrimSpace(p.Industry),
		CostBasisUSD:      p.CostBasis,
		GrowthForecastPct: copyFloat(p.GrowthForecastPct),
		VolatilityPct:     copyFloat(p.VolatilityPct),
	}
	if pp.Industry == "" {
		pp.Industry = models.UnclassifiedIndustry
	}

	switch {
	case p.RiskScore != nil:
		pp.RiskScore = models.Float(clamp(*p.RiskScore, 0, 100))
	case p.VolatilityPct != nil:
		pp.RiskScore = models.Float(clamp(*p.VolatilityPct*volatilityRiskFactor, 0, 100))
	}

	if p.GrowthForecastPct != nil {
		pp.ExpectedReturnPct = models.Float(*p.GrowthForecastPct * float64(horizonMonths) / 12)
	}

	pp.GrowthBucket = GrowthBucket(pp.GrowthForecastPct)
	pp.RiskBucket = RiskBucket(pp.RiskScore)
	return pp
}

// GrowthBucket classifies a growth forecast. A missing forecast counts as Low/Value.
func GrowthBucket(growthPct *float64) string {
	switch {
	case growthPct == nil:
		return models.GrowthBucketLow
	case *growthPct >= growthHighThreshold:
		return models.GrowthBucketHigh
	case *growthPct >= growthMidThreshold:
		return models.GrowthBucketMid
	default:
		return models.GrowthBucketLow
	}
}

// RiskBucket classifies a 0-100 risk score. A missing score counts as Moderate.
func RiskBucket(score *float64) string {
	if score == nil {
		return models.RiskBucketModerate
	}
	return riskClass(*score)
}

func riskClass(score float64) string {
	switch {
	case score <= riskLowMax:
		return models.RiskBucketLow
	case score <= riskModerateMax:
		return models.RiskBucketModerate
	default:
		return models.RiskBucketHigh
	}
}

// ConcentrationClass classifies a Herfindahl index (0..1) on the same 33/66 scale as risk.
func ConcentrationClass(hhi float64) string {
	switch riskClass(hhi * 100) {
	case models.RiskBucketLow:
		return models.ConcentrationLow
	case models.RiskBucketModerate:
		return models.ConcentrationMedium
	default:
		return models.ConcentrationHigh
	}
}

// summarize fills the weighted portfolio-level metrics.
func summarize(out *models.PreparedInsights) {
	var expected, volatility, risk, hhi float64
	for _, p := range out.Positions {
		w := p.WeightPct / 100
		if w <= 0 {
			continue
		}
		if p.ExpectedReturnPct != nil {
			expected += w * *p.ExpectedReturnPct
		}
		if p.VolatilityPct != nil {
			volatility += w * *p.VolatilityPct
		}
		score := imputedRiskScore
		if p.RiskScore != nil {
			score = *p.RiskScore
		}
		risk += w * score
		hhi += w * w
	}

	s := &out.Summary
	s.ExpectedReturnPct = expected
	s.VolatilityPct = volatility
	s.RiskScore = clamp(risk, 0, 100)
	s.RiskClass = riskClass(s.RiskScore)
	s.RiskAlignment = riskAlignment(s.RiskClass, out.Params.RiskProfile)
	s.ConcentrationIndex = hhi
	s.ConcentrationClass = ConcentrationClass(hhi)
}

var riskRank = map[string]int{
	models.RiskBucketLow:      0,
	models.RiskBucketModerate: 1,
	models.RiskBucketHigh:     2,
}

var profileRank = map[string]int{
	models.RiskProfileConservative: 0,
	models.RiskProfileBalanced:     1,
	models.RiskProfileAggressive:   2,
}

func riskAlignment(class, profile string) string {
	diff := riskRank[class] - profileRank[profile]
	switch {
	case diff < 0:
		return models.AlignmentBelow
	case diff > 0:
		return models.AlignmentAbove
	default:
		return models.AlignmentWithin
	}
}

// group builds the industry, growth and risk bucketizations. Every position lands in exactly
// one bucket of each kind; empty buckets are omitted.
func group(positions []models.PreparedPosition) models.InsightsGrouping {
	byIndustry := make(map[string][]models.PreparedPosition)
	byGrowth := make(map[string][]models.PreparedPosition)
	byRisk := make(map[string][]models.PreparedPosition)
	var industries []string

	for _, p := range positions {
		if _, ok := byIndustry[p.Industry]; !ok {
			industries = append(industries, p.Industry)
		}
		byIndustry[p.Industry] = append(byIndustry[p.Industry], p)
		byGrowth[p.GrowthBucket] = append(byGrowth[p.GrowthBucket], p)
		byRisk[p.RiskBucket] = append(byRisk[p.RiskBucket], p)
	}

	g := models.InsightsGrouping{
		Industry: make([]models.Bucket, 0, len(industries)),
		Growth:   []models.Bucket{},
		Risk:     []models.Bucket{},
	}
	for _, name := range industries {
		g.Industry = append(g.Industry, newBucket(name, byIndustry[name]))
	}
	sort.SliceStable(g.Industry, func(i, j int) bool {
		if g.Industry[i].WeightPct != g.Industry[j].WeightPct {
			return g.Industry[i].WeightPct > g.Industry[j].WeightPct
		}
		return g.Industry[i].Name < g.Industry[j].Name
	})

	for _, name := range []string{models.GrowthBucketLow, models.GrowthBucketMid, models.GrowthBucketHigh} {
		if members := byGrowth[name]; len(members) > 0 {
			g.Growth = append(g.Growth, newBucket(name, members))
		}
	}
	for _, name := range []string{models.RiskBucketLow, models.RiskBucketModerate, models.RiskBucketHigh} {
		if members := byRisk[name]; len(members) > 0 {
			g.Risk = append(g.Risk, newBucket(name, members))
		}
	}
	return g
}

func newBucket(name string, members []models.PreparedPosition) models.Bucket {
	b := models.Bucket{
		Name:          name,
		MemberSymbols: make([]string, 0, len(members)),
	}
	for _, m := range members {
		b.WeightPct += m.WeightPct
		b.MemberSymbols = append(b.MemberSymbols, m.Symbol)
	}
	b.AvgExpectedReturnPct = weightedAverage(members, b.WeightPct, func(p models.PreparedPosition) *float64 { return p.ExpectedReturnPct })
	b.AvgRiskScore = weightedAverage(members, b.WeightPct, func(p models.PreparedPosition) *float64 { return p.RiskScore })
	return b
}

// weightedAverage sums weight*value over members that carry the field and divides by the
// full bucket weight. It returns nil when no member carries the field or the bucket has no weight.
func weightedAverage(members []models.PreparedPosition, bucketWeight float64, field func(models.PreparedPosition) *float64) *float64 {
	var num float64
	seen := false
	for _, m := range members {
		if v := field(m); v != nil {
			num += m.WeightPct * *v
			seen = true
		}
	}
	if !seen || bucketWeight <= 0 {
		return nil
	}
	return models.Float(num / bucketWeight)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(*v)
}
