package insights

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// DefaultPromptCharCap bounds the serialized position block embedded in the user prompt.
const DefaultPromptCharCap = 5000

const systemPrompt = `You are a portfolio analyst writing short, factual commentary on individual holdings.
Use only the data provided plus general knowledge of the listed companies.
Return ONLY a JSON object that matches the supplied schema: no markdown, no code fences, no prose.

Rules:
- One entry in "annotations" per symbol you were given. Do not invent symbols.
- "thesis" is at most 240 characters.
- "risks" has between 1 and 3 short items.
- "action" is exactly one of Add, Hold, Trim, Hedge.
- "signals.valuation" is cheap|fair|expensive, "signals.momentum" is positive|neutral|negative,
  "signals.quality" is high|medium|low.
- Weigh each action against the investor's risk profile and horizon.`

// promptRow is the compact per-position record embedded in the prompt.
type promptRow struct {
	Symbol            string   `json:"symbol"`
	WeightPct         float64  `json:"weight_pct"`
	Industry          string   `json:"industry"`
	GrowthForecastPct *float64 `json:"growth_forecast_pct,omitempty"`
	RiskScore         *float64 `json:"risk_score,omitempty"`
	ExpectedReturnPct *float64 `json:"expected_return_pct,omitempty"`
	VolatilityPct     *float64 `json:"volatility_pct,omitempty"`
	UnrealizedPnLUSD  float64  `json:"unrealized_pnl_usd"`
	PriceGap          bool     `json:"price_gap,omitempty"`
}

// Prompt is a fully built narrative request before transport.
type Prompt struct {
	System    string
	User      string
	Included  []string // symbols serialized into the prompt
	Truncated bool
}

// BuildPrompt renders the prompt for a prepared analysis. Positions are serialized heaviest
// first and rows are dropped once the block would exceed charCap.
func BuildPrompt(prepared *models.PreparedInsights, charCap int) Prompt {
	if charCap <= 0 {
		charCap = DefaultPromptCharCap
	}

	ordered := make([]models.PreparedPosition, len(prepared.Positions))
	copy(ordered, prepared.Positions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].WeightPct > ordered[j].WeightPct
	})

	var block strings.Builder
	block.WriteString("[")
	var included []string
	truncated := false
	for _, p := range ordered {
		row, err := json.Marshal(toPromptRow(p))
		if err != nil {
			continue
		}
		// +2 for the separator and the closing bracket
		if block.Len()+len(row)+2 > charCap {
			truncated = true
			break
		}
		if len(included) > 0 {
			block.WriteString(",")
		}
		block.Write(row)
		included = append(included, p.Symbol)
	}
	block.WriteString("]")

	s := prepared.Summary
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Investor risk profile: %s. Horizon: %d months.\n", prepared.Params.RiskProfile, prepared.Params.HorizonMonths))
	sb.WriteString(fmt.Sprintf("Portfolio: equity $%.2f, %d positions, risk %s (%.0f/100, %s the profile), concentration %s (HHI %.3f).\n",
		s.TotalEquityUSD, s.PositionCount, s.RiskClass, s.RiskScore, s.RiskAlignment, s.ConcentrationClass, s.ConcentrationIndex))
	if len(s.PriceGaps) > 0 {
		sb.WriteString(fmt.Sprintf("No current price for: %s.\n", strings.Join(s.PriceGaps, ", ")))
	}
	if truncated {
		sb.WriteString(fmt.Sprintf("Only the %d largest of %d positions are listed.\n", len(included), len(ordered)))
	}
	sb.WriteString("\nPositions:\n")
	sb.WriteString(block.String())
	sb.WriteString("\n\nAnnotate every listed symbol.")

	return Prompt{
		System:    systemPrompt,
		User:      sb.String(),
		Included:  included,
		Truncated: truncated,
	}
}

func toPromptRow(p models.PreparedPosition) promptRow {
	return promptRow{
		Symbol:            p.Symbol,
		WeightPct:         round2(p.WeightPct),
		Industry:          p.Industry,
		GrowthForecastPct: roundPtr(p.GrowthForecastPct),
		RiskScore:         roundPtr(p.RiskScore),
		ExpectedReturnPct: roundPtr(p.ExpectedReturnPct),
		VolatilityPct:     roundPtr(p.VolatilityPct),
		UnrealizedPnLUSD:  round2(p.UnrealizedPnLUSD),
		PriceGap:          p.PriceGap,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(round2(*v))
}
