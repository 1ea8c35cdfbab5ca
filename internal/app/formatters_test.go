package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/vire-insights/internal/models"
)

func TestFormatInsights_PayloadError(t *testing.T) {
	resp := &models.InsightsResponse{
		Status:  models.StatusPartial,
		Model:   "m1",
		TraceID: "trace-1",
		PositionsWithInsights: []models.PositionAnalysis{
			{PreparedPosition: models.PreparedPosition{Symbol: "AAPL", WeightPct: 100, MarketValueUSD: 1900}, DataGap: true},
		},
		Errors: []models.PipelineError{
			{Kind: models.ErrorKindPayload, Code: "invalid_payload", Message: "response is not JSON", RawText: "Sorry, I cannot"},
		},
	}

	out := formatInsights(resp)

	assert.Contains(t, out, "**Status:** partial")
	assert.Contains(t, out, "| AAPL | 100.00% | $1900.00 | - |")
	assert.Contains(t, out, "_no annotation_")
	assert.Contains(t, out, "**payload** `invalid_payload`")
	assert.Contains(t, out, "Sorry, I cannot")
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$12.50", formatMoney(12.5))
	assert.Equal(t, "-$3.00", formatMoney(-3))
	assert.Equal(t, "+1.50%", formatSignedPct(1.5))
	assert.Equal(t, "-", formatOptPct(nil))
}
