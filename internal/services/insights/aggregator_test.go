package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-insights/internal/models"
)

func pos(symbol string, qty, price float64) models.Position {
	return models.Position{Symbol: symbol, Quantity: qty, CostBasis: qty * price * 0.8, LastPrice: models.Float(price)}
}

func balanced() models.AnalysisParams {
	return models.AnalysisParams{Model: "test-model", HorizonMonths: 12, RiskProfile: models.RiskProfileBalanced}
}

func sumWeights(p *models.PreparedInsights) float64 {
	var total float64
	for _, pp := range p.Positions {
		total += pp.WeightPct
	}
	return total
}

func TestPrepare_EmptyPortfolio(t *testing.T) {
	p := Prepare(nil, balanced())

	require.NotNil(t, p)
	assert.Equal(t, 0.0, p.Summary.TotalEquityUSD)
	assert.Equal(t, 0, p.Summary.PositionCount)
	assert.NotNil(t, p.Grouping.Industry)
	assert.NotNil(t, p.Grouping.Growth)
	assert.NotNil(t, p.Grouping.Risk)
	assert.Empty(t, p.Grouping.Industry)
	assert.Empty(t, p.Grouping.Growth)
	assert.Empty(t, p.Grouping.Risk)
	assert.Empty(t, p.Positions)
	assert.NotNil(t, p.Positions)
}

func TestPrepare_WeightNormalization(t *testing.T) {
	cases := [][]models.Position{
		{pos("AAPL", 6, 10), pos("MSFT", 4, 10)},
		{pos("A", 3, 33.33), pos("B", 7, 1.01), pos("C", 11, 0.07)},
		{pos("ONLY", 1, 1)},
		{pos("A", 1, 100), pos("ZERO", 0, 50), pos("SHORT", -5, 10), {Symbol: "GAP", Quantity: 10}},
	}
	for _, positions := range cases {
		p := Prepare(positions, balanced())
		assert.InDelta(t, 100, sumWeights(p), 0.5)
		assert.Len(t, p.Positions, len(positions))
	}
}

func TestPrepare_NonPositiveAndUnpricedRetained(t *testing.T) {
	p := Prepare([]models.Position{
		pos("AAPL", 10, 100),
		pos("ZERO", 0, 50),
		pos("SHORT", -5, 10),
		{Symbol: "GAP", Quantity: 10, CostBasis: 100},
	}, balanced())

	require.Len(t, p.Positions, 4)
	bySymbol := map[string]models.PreparedPosition{}
	for _, pp := range p.Positions {
		bySymbol[pp.Symbol] = pp
	}

	assert.InDelta(t, 100, bySymbol["AAPL"].WeightPct, 1e-9)
	assert.Equal(t, 0.0, bySymbol["ZERO"].WeightPct)
	assert.Equal(t, 0.0, bySymbol["SHORT"].WeightPct)
	assert.Equal(t, 0.0, bySymbol["GAP"].WeightPct)
	assert.True(t, bySymbol["GAP"].PriceGap)
	assert.False(t, bySymbol["AAPL"].PriceGap)
	assert.Equal(t, []string{"GAP"}, p.Summary.PriceGaps)
	assert.Equal(t, 1, p.Summary.WeightedCount)
	assert.Equal(t, 4, p.Summary.PositionCount)
	assert.InDelta(t, 1000, p.Summary.TotalEquityUSD, 1e-9)
}

func TestPrepare_AllUnpriced(t *testing.T) {
	p := Prepare([]models.Position{{Symbol: "A", Quantity: 1}, {Symbol: "B", Quantity: 2}}, balanced())
	assert.Equal(t, 0.0, p.Summary.TotalEquityUSD)
	assert.Equal(t, 0.0, sumWeights(p))
	assert.Len(t, p.Summary.PriceGaps, 2)
	assert.Len(t, p.Grouping.Growth, 1)
}

func TestGrowthBucket(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, models.GrowthBucketLow},
		{models.Float(-3), models.GrowthBucketLow},
		{models.Float(4.99), models.GrowthBucketLow},
		{models.Float(5), models.GrowthBucketMid},
		{models.Float(14.99), models.GrowthBucketMid},
		{models.Float(15), models.GrowthBucketHigh},
		{models.Float(80), models.GrowthBucketHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GrowthBucket(tt.in))
	}
}

func TestRiskBucket(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, models.RiskBucketModerate},
		{models.Float(0), models.RiskBucketLow},
		{models.Float(33), models.RiskBucketLow},
		{models.Float(34), models.RiskBucketModerate},
		{models.Float(66), models.RiskBucketModerate},
		{models.Float(67), models.RiskBucketHigh},
		{models.Float(100), models.RiskBucketHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskBucket(tt.in))
	}
}

func TestPrepare_BucketsPartition(t *testing.T) {
	positions := []models.Position{
		{Symbol: "A", Quantity: 1, LastPrice: models.Float(10), GrowthForecastPct: models.Float(2), RiskScore: models.Float(10)},
		{Symbol: "B", Quantity: 1, LastPrice: models.Float(10), GrowthForecastPct: models.Float(8), RiskScore: models.Float(50)},
		{Symbol: "C", Quantity: 1, LastPrice: models.Float(10), GrowthForecastPct: models.Float(30), RiskScore: models.Float(90)},
		{Symbol: "D", Quantity: 1, LastPrice: models.Float(10)},
		{Symbol: "E", Quantity: 1},
	}
	p := Prepare(positions, balanced())

	for _, buckets := range [][]models.Bucket{p.Grouping.Growth, p.Grouping.Risk, p.Grouping.Industry} {
		seen := map[string]int{}
		for _, b := range buckets {
			for _, s := range b.MemberSymbols {
				seen[s]++
			}
		}
		assert.Len(t, seen, len(positions))
		for s, n := range seen {
			assert.Equal(t, 1, n, "symbol %s in %d buckets", s, n)
		}
	}

	require.Len(t, p.Grouping.Growth, 3)
	assert.Equal(t, models.GrowthBucketLow, p.Grouping.Growth[0].Name)
	assert.ElementsMatch(t, []string{"A", "D", "E"}, p.Grouping.Growth[0].MemberSymbols)
	require.Len(t, p.Grouping.Risk, 3)
	assert.ElementsMatch(t, []string{"B", "D", "E"}, p.Grouping.Risk[1].MemberSymbols)
}

func TestPrepare_BucketAveragesNullRules(t *testing.T) {
	p := Prepare([]models.Position{
		{Symbol: "AAPL", Quantity: 6, LastPrice: models.Float(10), Industry: "Technology", RiskScore: models.Float(40)},
		{Symbol: "MSFT", Quantity: 4, LastPrice: models.Float(10), Industry: "Technology"},
	}, balanced())

	require.Len(t, p.Grouping.Industry, 1)
	tech := p.Grouping.Industry[0]
	assert.Equal(t, "Technology", tech.Name)
	assert.InDelta(t, 100, tech.WeightPct, 1e-9)

	// Numerator only from AAPL, denominator is the full bucket weight.
	require.NotNil(t, tech.AvgRiskScore)
	assert.InDelta(t, 24, *tech.AvgRiskScore, 1e-9)

	// Nobody has a growth forecast, so the aggregate is null rather than zero.
	assert.Nil(t, tech.AvgExpectedReturnPct)

	// Portfolio risk imputes the Moderate midpoint for MSFT.
	assert.InDelta(t, 0.6*40+0.4*50, p.Summary.RiskScore, 1e-9)
}

func TestPrepare_IndustryOrderAndUnclassified(t *testing.T) {
	p := Prepare([]models.Position{
		{Symbol: "XOM", Quantity: 1, LastPrice: models.Float(20), Industry: "Energy"},
		{Symbol: "AAPL", Quantity: 1, LastPrice: models.Float(50), Industry: " Technology "},
		{Symbol: "BRK", Quantity: 1, LastPrice: models.Float(30)},
	}, balanced())

	names := []string{}
	for _, b := range p.Grouping.Industry {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Technology", models.UnclassifiedIndustry, "Energy"}, names)
}

func TestPrepare_Concentration(t *testing.T) {
	tests := []struct {
		name      string
		positions []models.Position
		hhi       float64
		class     string
	}{
		{"single", []models.Position{pos("A", 1, 10)}, 1, models.ConcentrationHigh},
		{"two equal", []models.Position{pos("A", 1, 10), pos("B", 1, 10)}, 0.5, models.ConcentrationMedium},
		{"four equal", []models.Position{pos("A", 1, 10), pos("B", 1, 10), pos("C", 1, 10), pos("D", 1, 10)}, 0.25, models.ConcentrationLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Prepare(tt.positions, balanced())
			assert.InDelta(t, tt.hhi, p.Summary.ConcentrationIndex, 1e-9)
			assert.Equal(t, tt.class, p.Summary.ConcentrationClass)
		})
	}
}

func TestPrepare_DerivedMetrics(t *testing.T) {
	params := balanced()
	params.HorizonMonths = 24
	p := Prepare([]models.Position{
		{Symbol: "G", Quantity: 1, LastPrice: models.Float(10), CostBasis: 8, GrowthForecastPct: models.Float(10)},
		{Symbol: "V", Quantity: 1, LastPrice: models.Float(10), CostBasis: 12, VolatilityPct: models.Float(30)},
		{Symbol: "R", Quantity: 1, LastPrice: models.Float(10), CostBasis: 10, RiskScore: models.Float(150)},
	}, params)

	g, v, r := p.Positions[0], p.Positions[1], p.Positions[2]
	require.NotNil(t, g.ExpectedReturnPct)
	assert.InDelta(t, 20, *g.ExpectedReturnPct, 1e-9)
	assert.InDelta(t, 2, g.UnrealizedPnLUSD, 1e-9)

	require.NotNil(t, v.RiskScore)
	assert.InDelta(t, 60, *v.RiskScore, 1e-9)
	assert.Nil(t, v.ExpectedReturnPct)

	require.NotNil(t, r.RiskScore)
	assert.Equal(t, 100.0, *r.RiskScore)

	assert.InDelta(t, 30, p.Summary.TotalEquityUSD, 1e-9)
	assert.InDelta(t, 30, p.Summary.TotalCostBasisUSD, 1e-9)
	assert.InDelta(t, 0, p.Summary.UnrealizedPnLUSD, 1e-9)
}

func TestPrepare_RiskAlignment(t *testing.T) {
	risky := []models.Position{{Symbol: "X", Quantity: 1, LastPrice: models.Float(10), RiskScore: models.Float(90)}}

	for profile, want := range map[string]string{
		models.RiskProfileConservative: models.AlignmentAbove,
		models.RiskProfileBalanced:     models.AlignmentAbove,
		models.RiskProfileAggressive:   models.AlignmentWithin,
	} {
		params := balanced()
		params.RiskProfile = profile
		assert.Equal(t, want, Prepare(risky, params).Summary.RiskAlignment, profile)
	}

	safe := []models.Position{{Symbol: "T", Quantity: 1, LastPrice: models.Float(10), RiskScore: models.Float(5)}}
	params := balanced()
	params.RiskProfile = models.RiskProfileAggressive
	assert.Equal(t, models.AlignmentBelow, Prepare(safe, params).Summary.RiskAlignment)
}

func TestPrepare_DoesNotMutateInput(t *testing.T) {
	positions := []models.Position{{Symbol: " aapl ", Quantity: 1, LastPrice: models.Float(10), RiskScore: models.Float(150)}}
	Prepare(positions, balanced())
	assert.Equal(t, " aapl ", positions[0].Symbol)
	assert.Equal(t, 150.0, *positions[0].RiskScore)
}
