package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/vire-insights/internal/models"
)

func annotation(symbol, action string) models.NarrativeAnnotation {
	return models.NarrativeAnnotation{
		Symbol:  symbol,
		Thesis:  symbol + " thesis",
		Risks:   []string{"risk"},
		Action:  action,
		Signals: models.NarrativeSignals{Valuation: "fair", Momentum: "neutral", Quality: "medium"},
	}
}

func twoPositions() *models.PreparedInsights {
	return Prepare([]models.Position{pos("AAPL", 6, 10), pos("MSFT", 4, 10)}, balanced())
}

func TestMerge_PartialCoverage(t *testing.T) {
	prepared := twoPositions()
	require.InDelta(t, 60, prepared.Positions[0].WeightPct, 1e-9)

	merged := Merge(prepared, []models.NarrativeAnnotation{annotation("AAPL", models.ActionHold)})

	require.Len(t, merged, 2)
	assert.Equal(t, "AAPL", merged[0].Symbol)
	assert.NotNil(t, merged[0].Insights)
	assert.False(t, merged[0].DataGap)
	assert.Equal(t, "MSFT", merged[1].Symbol)
	assert.Nil(t, merged[1].Insights)
	assert.True(t, merged[1].DataGap)
	assert.Equal(t, models.StatusPartial, CoverageStatus(merged))
}

func TestMerge_Totality(t *testing.T) {
	prepared := twoPositions()
	inputs := [][]models.NarrativeAnnotation{
		nil,
		{},
		{annotation("AAPL", models.ActionAdd), annotation("MSFT", models.ActionTrim), annotation("NVDA", models.ActionAdd)},
		{annotation("GHOST", models.ActionAdd)},
	}
	for _, in := range inputs {
		assert.Len(t, Merge(prepared, in), len(prepared.Positions))
	}
}

func TestMerge_FirstSeenWins(t *testing.T) {
	merged := Merge(twoPositions(), []models.NarrativeAnnotation{
		annotation("AAPL", models.ActionAdd),
		annotation("aapl ", models.ActionTrim),
		annotation("MSFT", models.ActionHedge),
	})

	require.NotNil(t, merged[0].Insights)
	assert.Equal(t, models.ActionAdd, merged[0].Insights.Action)
	assert.Equal(t, models.ActionHedge, merged[1].Insights.Action)
	assert.Equal(t, models.StatusOK, CoverageStatus(merged))
}

func TestMerge_JoinIsCaseInsensitive(t *testing.T) {
	merged := Merge(twoPositions(), []models.NarrativeAnnotation{annotation("  msft", models.ActionHold)})
	assert.Nil(t, merged[0].Insights)
	require.NotNil(t, merged[1].Insights)
	assert.Equal(t, models.ActionHold, merged[1].Insights.Action)
}

func TestMerge_UnknownSymbolsDropped(t *testing.T) {
	merged := Merge(twoPositions(), []models.NarrativeAnnotation{annotation("NVDA", models.ActionAdd)})
	for _, m := range merged {
		assert.Nil(t, m.Insights)
		assert.True(t, m.DataGap)
	}
}

func TestMerge_DoesNotAliasAnnotations(t *testing.T) {
	in := []models.NarrativeAnnotation{annotation("AAPL", models.ActionHold)}
	merged := Merge(twoPositions(), in)
	in[0].Risks[0] = "changed"
	in[0].Action = models.ActionTrim

	assert.Equal(t, "risk", merged[0].Insights.Risks[0])
	assert.Equal(t, models.ActionHold, merged[0].Insights.Action)
}

func TestMerge_EmptyPortfolio(t *testing.T) {
	merged := Merge(Prepare(nil, balanced()), []models.NarrativeAnnotation{annotation("AAPL", models.ActionHold)})
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
	assert.Equal(t, models.StatusOK, CoverageStatus(merged))
}
